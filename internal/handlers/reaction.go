package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

type ReactionHandler struct {
	reactionService services.ReactionServiceInterface
	pages           *PageHandler
}

func NewReactionHandler(reactionService services.ReactionServiceInterface, pages *PageHandler) *ReactionHandler {
	return &ReactionHandler{reactionService: reactionService, pages: pages}
}

// React records a like or dislike and sends the browser back to the meme.
func (h *ReactionHandler) React(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	memeID, ok := parseAssetID(r)
	if !ok {
		http.Redirect(w, r, listingPath(models.AreaMemes), http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	kind, ok := models.ParseReactionKind(r.PostFormValue("kind"))
	if !ok {
		http.Error(w, "Invalid reaction", http.StatusBadRequest)
		return
	}

	err := h.reactionService.Upsert(r.Context(), memeID, identity.Name, kind)
	if errors.Is(err, services.ErrAssetNotFound) {
		http.Redirect(w, r, listingPath(models.AreaMemes), http.StatusSeeOther)
		return
	}
	if err != nil {
		logRequestError(r, "Error recording reaction", err)
		h.pages.InternalError(w, r)
		return
	}

	http.Redirect(w, r, reactRedirect(r, memeID), http.StatusSeeOther)
}

// reactRedirect honors a local "next" path so listings can react in place.
func reactRedirect(r *http.Request, memeID int64) string {
	if next := r.PostFormValue("next"); isLocalPath(next) {
		return next
	}
	return detailPath(models.AreaMemes, memeID)
}

// isLocalPath accepts only same-origin absolute paths. Browsers drop tabs
// and newlines and read backslashes as slashes, so "/\t/evil" would
// otherwise become a protocol-relative URL.
func isLocalPath(p string) bool {
	if len(p) < 2 || p[0] != '/' || p[1] == '/' {
		return false
	}
	for i := 0; i < len(p); i++ {
		if c := p[i]; c < 0x20 || c == 0x7f || c == '\\' {
			return false
		}
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
