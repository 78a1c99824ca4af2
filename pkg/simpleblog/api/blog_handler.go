package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// CreateBlog creates a post owned by the authenticated identity from a multipart form (title, content, image?)
func (h *Handler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, "create blog", simpleblog.ErrUnauthenticated)
		return
	}

	cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		badForm(w, r, err)
		return
	}

	image, closeImage, err := formFile(r, "image")
	defer closeImage()
	if err != nil {
		badForm(w, r, err)
		return
	}

	post, err := h.service.CreatePost(r.Context(), simpleblog.CreatePostRequest{
		OwnerID: identity.ID,
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
		Image:   image,
	})
	if err != nil {
		renderError(w, r, "create blog", err)
		return
	}

	slog.Info("Blog created", "blog_id", post.ID.String(), "owner_id", identity.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, post)
}

// ListBlogs returns every post with its owner, newest first
func (h *Handler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListPosts(r.Context())
	if err != nil {
		renderError(w, r, "list blogs", err)
		return
	}
	if views == nil {
		views = []*simpleblog.PostView{}
	}
	render.JSON(w, r, views)
}

// GetBlog returns one post with its owner. Malformed ids are reported as not found.
func (h *Handler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "get blog", simpleblog.ErrPostNotFound)
		return
	}

	view, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		renderError(w, r, "get blog", err)
		return
	}
	render.JSON(w, r, view)
}

// DeleteBlog deletes a post owned by the authenticated identity
func (h *Handler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, "delete blog", simpleblog.ErrUnauthenticated)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "delete blog", simpleblog.ErrPostNotFound)
		return
	}

	if err := h.service.DeletePost(r.Context(), simpleblog.DeletePostRequest{PostID: id, ActorID: identity.ID}); err != nil {
		renderError(w, r, "delete blog", err)
		return
	}

	render.Render(w, r, message(http.StatusOK, "Blog deleted successfully"))
}
