package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

const maxJSONBytes = 64 << 10

// Register creates an identity from a multipart form (email, password, avatar?) and starts a session
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		badForm(w, r, err)
		return
	}

	avatar, closeAvatar, err := formFile(r, "avatar")
	defer closeAvatar()
	if err != nil {
		badForm(w, r, err)
		return
	}

	identity, err := h.service.Register(r.Context(), simpleblog.RegisterRequest{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Avatar:   avatar,
	})
	if err != nil {
		renderError(w, r, "register", err)
		return
	}

	// the account exists either way; without a cookie the client logs in next
	if err := h.sessions.Issue(w, identity.ID); err != nil {
		slog.Error("Identity registered without a session", "identity_id", identity.ID.String(), "error", err)
	}

	slog.Info("Identity registered", "identity_id", identity.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, identity.Summary())
}

// Login verifies credentials sent as JSON or a form and starts a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req simpleblog.LoginRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			renderError(w, r, "decode login", simpleblog.NewValidationError("body", "Invalid request body"))
			return
		}
	} else {
		cleanup, err := h.parseForm(w, r)
		defer cleanup()
		if err != nil {
			badForm(w, r, err)
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	identity, err := h.service.Login(r.Context(), req)
	if err != nil {
		renderError(w, r, "login", err)
		return
	}

	if err := h.sessions.Issue(w, identity.ID); err != nil {
		renderError(w, r, "issue session", err)
		return
	}

	render.JSON(w, r, identity.Summary())
}

// Logout clears the session cookie. It succeeds with or without a session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Revoke(w)
	render.Render(w, r, message(http.StatusOK, "Logged out successfully"))
}

// Me returns the authenticated identity
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, "me", simpleblog.ErrUnauthenticated)
		return
	}
	render.JSON(w, r, identity)
}
