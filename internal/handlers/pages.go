package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/HammerMeetNail/memeboard/internal/logging"
	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
)

// PageHandler owns the parsed templates and renders every HTML page.
type PageHandler struct {
	templates *template.Template
	publicURL string
}

func NewPageHandler(templatesDir string) (*PageHandler, error) {
	templates, err := template.New("").Funcs(templateFuncs).ParseGlob(filepath.Join(templatesDir, "*.html"))
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: templates}, nil
}

// SetPublicURL fixes the origin used for absolute links such as og:image.
func (h *PageHandler) SetPublicURL(u string) *PageHandler {
	h.publicURL = strings.TrimRight(u, "/")
	return h
}

var templateFuncs = template.FuncMap{
	"areaTitle": areaTitle,
	"singular":  func(a models.Area) string { return a.Singular() },
	"isMemes":   func(a models.Area) bool { return a == models.AreaMemes },
}

func areaTitle(a models.Area) string {
	switch a {
	case models.AreaTemplates:
		return "Templates"
	case models.AreaMemes:
		return "Memes"
	}
	return string(a)
}

type PageData struct {
	Title    string
	BaseURL  string
	Identity *models.Identity
	Error    string

	// Login form.
	Name string

	// Listings and detail.
	Area     models.Area
	Areas    []models.Area
	Asset    *models.AssetWithReactions
	ImageURL string
	Assets   []models.AssetWithReactions
	Total    int
	Page     int
	PrevPage int
	NextPage int

	Stats   *models.BoardStats
	Allowed string
}

// Render executes name into a buffer first so a template error can still
// produce a clean 500.
func (h *PageHandler) Render(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	data.BaseURL = h.baseURL(r)
	if data.Identity == nil {
		data.Identity = middleware.IdentityFromContext(r.Context())
	}
	data.Areas = models.Areas

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("Template error", map[string]interface{}{
			"template":   name,
			"error":      err.Error(),
			"request_id": middleware.RequestID(r.Context()),
		})
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// baseURL prefers the configured public URL. Without one it falls back to
// the request's own Host and ignores X-Forwarded-* headers, which any client
// can set.
func (h *PageHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := strings.ToLower(r.Host)
	if !validHost(host) {
		host = "localhost"
	}
	return scheme + "://" + host
}

// validHost accepts a bare host[:port] and nothing that parses with extra
// URL parts attached.
func validHost(host string) bool {
	if host == "" || strings.ContainsAny(host, " \t\r\n\\") {
		return false
	}
	u, err := url.Parse("http://" + host)
	if err != nil || u.User != nil || u.Host != host || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return u.Hostname() != ""
}

// NotFound renders the 404 error page.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := h.templates.ExecuteTemplate(w, "404.html", PageData{Title: "Not found"}); err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
	}
}

// InternalError renders the 500 error page. Details stay in the log.
func (h *PageHandler) InternalError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := h.templates.ExecuteTemplate(w, "500.html", PageData{Title: "Something went wrong"}); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// absoluteURL turns a store URL into one usable in og:image tags.
func (h *PageHandler) absoluteURL(r *http.Request, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return h.baseURL(r) + u
}
