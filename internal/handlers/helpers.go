package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/HammerMeetNail/memeboard/internal/logging"
	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// viewerName is the resolved identity's name, or "" when anonymous.
func viewerName(r *http.Request) string {
	if id := middleware.IdentityFromContext(r.Context()); id != nil {
		return id.Name
	}
	return ""
}

func parseAssetID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func logRequestError(r *http.Request, msg string, err error) {
	logging.Error(msg, map[string]interface{}{
		"error":      err.Error(),
		"path":       r.URL.Path,
		"request_id": middleware.RequestID(r.Context()),
	})
}

func setIdentityCookies(w http.ResponseWriter, ticket *services.Ticket, ttl time.Duration, secure bool) {
	maxAge := int(ttl.Seconds())
	for name, value := range map[string]string{
		middleware.TicketCookie: ticket.Token,
		middleware.NameCookie:   ticket.EscapedName,
		middleware.AuthCookie:   ticket.Tag,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Expires:  ticket.ExpiresAt,
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func clearIdentityCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{middleware.TicketCookie, middleware.NameCookie, middleware.AuthCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
