package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// UpdateProfile changes the password and/or avatar of the authenticated identity
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, "update profile", simpleblog.ErrUnauthenticated)
		return
	}

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

	updated, err := h.service.UpdateProfile(r.Context(), simpleblog.UpdateProfileRequest{
		IdentityID: identity.ID,
		Password:   r.FormValue("password"),
		Avatar:     avatar,
	})
	if err != nil {
		renderError(w, r, "update profile", err)
		return
	}

	render.JSON(w, r, updated.Summary())
}

// DeleteAccount removes the authenticated identity with its posts and assets, then ends the session
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, "delete account", simpleblog.ErrUnauthenticated)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), identity.ID); err != nil {
		renderError(w, r, "delete account", err)
		return
	}

	h.sessions.Revoke(w)
	render.Render(w, r, message(http.StatusOK, "Account deleted successfully"))
}
