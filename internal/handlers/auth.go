package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

type AuthHandler struct {
	auth   services.AuthServiceInterface
	pages  *PageHandler
	ttl    time.Duration
	secure bool
}

func NewAuthHandler(auth services.AuthServiceInterface, pages *PageHandler, ttl time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{auth: auth, pages: pages, ttl: ttl, secure: secure}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "login.html", PageData{Title: "Log in"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pages.Render(w, r, http.StatusBadRequest, "login.html", PageData{Title: "Log in", Error: "Invalid form submission."})
		return
	}
	name := r.PostFormValue("name")

	ticket, err := h.auth.Login(name, r.PostFormValue("password"))
	if err != nil {
		// The password is never echoed back into the form.
		data := PageData{Title: "Log in", Name: name}
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, services.ErrEmptyName):
			data.Error = "Please enter a display name."
		case errors.Is(err, services.ErrWrongSitePassword):
			data.Error = "Wrong site password."
			status = http.StatusUnauthorized
		default:
			logRequestError(r, "Login failed", err)
			h.pages.InternalError(w, r)
			return
		}
		h.pages.Render(w, r, status, "login.html", data)
		return
	}

	setIdentityCookies(w, ticket, h.ttl, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearIdentityCookies(w, h.secure)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
