package handlers

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
)

func TestPageHandler_RenderAndErrors(t *testing.T) {
	handler := newTestPages(t)

	t.Run("render", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		rr := httptest.NewRecorder()

		handler.Render(rr, req, http.StatusOK, "login.html", PageData{Title: "Log in", Name: "alice"})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Fatalf("unexpected content-type %q", ct)
		}
		if !containsAll(rr.Body.String(), []string{`name="name"`, `value="alice"`, "Log in"}) {
			t.Fatalf("expected login form, got %s", rr.Body.String())
		}
	})

	t.Run("identity in header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &models.Identity{Name: "<bob>"}))
		rr := httptest.NewRecorder()

		handler.Render(rr, req, http.StatusOK, "404.html", PageData{Title: "x"})

		body := rr.Body.String()
		if !containsAll(body, []string{"&lt;bob&gt;", `action="/logout"`, `href="/memes"`, `href="/upload/templates"`}) {
			t.Fatalf("expected escaped identity and nav, got %s", body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		rr := httptest.NewRecorder()

		handler.NotFound(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("internal error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/err", nil)
		rr := httptest.NewRecorder()

		handler.InternalError(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rr.Code)
		}
		if strings.Contains(rr.Body.String(), "sql") {
			t.Fatal("error page must not leak details")
		}
	})
}

func TestPageHandler_NewPageHandler_InvalidDir(t *testing.T) {
	_, err := NewPageHandler(filepath.Join(os.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPageHandler_Render_TemplateError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "404.html"), []byte("not found"), 0o644); err != nil {
		t.Fatalf("write 404: %v", err)
	}
	handler, err := NewPageHandler(dir)
	if err != nil {
		t.Fatalf("failed to create page handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.Render(rr, req, http.StatusOK, "index.html", PageData{})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestPageHandler_AbsoluteURL(t *testing.T) {
	h := newTestPages(t)
	req := httptest.NewRequest(http.MethodGet, "http://memes.example/", nil)
	req.Header.Set("X-Forwarded-Host", "evil.example")

	assert.Equal(t, "http://memes.example/assets/memes/a.png", h.absoluteURL(req, "/assets/memes/a.png"))
	assert.Equal(t, "http://memes.example/assets/memes/a.png", h.absoluteURL(req, "assets/memes/a.png"))
	assert.Equal(t, "https://cdn.example/memes/a.png", h.absoluteURL(req, "https://cdn.example/memes/a.png"))

	h.SetPublicURL("https://board.example/")
	assert.Equal(t, "https://board.example/assets/memes/a.png", h.absoluteURL(req, "/assets/memes/a.png"))
}

func TestPageHandler_BaseURLFromRequest(t *testing.T) {
	h := newTestPages(t)
	cases := []struct {
		name string
		host string
		tls  bool
		want string
	}{
		{"plain host", "example.com", false, "http://example.com"},
		{"tls", "example.com", true, "https://example.com"},
		{"port kept", "localhost:8080", false, "http://localhost:8080"},
		{"lower cased", "Memes.Example", false, "http://memes.example"},
		{"ipv6", "[::1]:8080", false, "http://[::1]:8080"},
		{"path rejected", "evil.example.com/path", false, "http://localhost"},
		{"userinfo rejected", "user@evil.example", false, "http://localhost"},
		{"query rejected", "evil.example?x=1", false, "http://localhost"},
		{"empty", "", false, "http://localhost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://placeholder/", nil)
			req.Host = tc.host
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			assert.Equal(t, tc.want, h.baseURL(req))
		})
	}
}

func containsAll(s string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(s, needle) {
			return false
		}
	}
	return true
}
