package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// DefaultMaxUploadBytes caps multipart request bodies.
const DefaultMaxUploadBytes int64 = 5 << 20

// Handler serves the auth, profile and blog endpoints
type Handler struct {
	service        simpleblog.Service
	sessions       Sessions
	maxUploadBytes int64
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithMaxUploadBytes sets the largest accepted multipart body
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandler creates a new handler
func NewHandler(service simpleblog.Service, sessions Sessions, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:        service,
		sessions:       sessions,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for every endpoint
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.With(h.RequireIdentity).Get("/me", h.Me)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(h.RequireIdentity)
		r.Put("/profile", h.UpdateProfile)
		r.Delete("/profile", h.DeleteAccount)
	})

	r.Route("/blogs", func(r chi.Router) {
		r.Get("/", h.ListBlogs)
		r.Get("/{id}", h.GetBlog)
		r.With(h.RequireIdentity).Post("/", h.CreateBlog)
		r.With(h.RequireIdentity).Delete("/{id}", h.DeleteBlog)
	})

	return r
}
