package middleware

import (
	"context"
	"net/http"

	"github.com/HammerMeetNail/memeboard/internal/models"
)

// Cookie names. The ticket is the primary credential; the name/auth pair is
// still accepted so older cookies keep working.
const (
	TicketCookie = "meme_ticket"
	NameCookie   = "meme_name"
	AuthCookie   = "meme_auth"
)

type identityKey struct{}

type IdentityResolver interface {
	Resolve(token *string, nameClaim, tagClaim *string) *models.Identity
}

type IdentityMiddleware struct {
	resolver IdentityResolver
}

func NewIdentityMiddleware(resolver IdentityResolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// Authenticate resolves the identity cookies, if any, into the request
// context. It never rejects a request.
func (m *IdentityMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.resolver.Resolve(
			cookieValue(r, TicketCookie),
			cookieValue(r, NameCookie),
			cookieValue(r, AuthCookie),
		)
		if id != nil {
			noteIdentity(r.Context(), id.Name)
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity sends anonymous visitors to the login page.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityKey{}).(*models.Identity)
	return id
}

func cookieValue(r *http.Request, name string) *string {
	c, err := r.Cookie(name)
	if err != nil {
		return nil
	}
	v := c.Value
	return &v
}
