package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-blog/pkg/simpleblog/api"
	"github.com/tendant/simple-blog/pkg/simpleblog/config"
	"github.com/tendant/simple-blog/pkg/simpleblog/metrics"
)

func newRouter(cfg *config.ServerConfig, rt *config.Runtime) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Get("/default-avatar.png", serveDefaultAvatar)

	if rt.MediaHandler != nil {
		r.Handle("/media/*", http.StripPrefix("/media", rt.MediaHandler))
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", metrics.Handler(rt.Metrics))
	}

	handler := api.NewHandler(rt.Service, rt.Sessions, api.WithMaxUploadBytes(cfg.MaxUploadBytes))
	r.Mount("/", handler.Routes())

	return r
}

var (
	avatarOnce sync.Once
	avatarPNG  []byte
)

// serveDefaultAvatar renders a neutral placeholder for identities without an avatar.
func serveDefaultAvatar(w http.ResponseWriter, r *http.Request) {
	avatarOnce.Do(func() {
		const size = 128
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		bg := color.RGBA{R: 0xd9, G: 0xdd, B: 0xe3, A: 0xff}
		fg := color.RGBA{R: 0x9a, G: 0xa3, B: 0xaf, A: 0xff}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, bg)
				dx, dy := x-size/2, y-size*2/5
				if dx*dx+dy*dy < (size/5)*(size/5) {
					img.Set(x, y, fg)
				}
				if y > size*7/10 {
					dx, dy = x-size/2, y-size
					if dx*dx+dy*dy < (size*2/5)*(size*2/5) {
						img.Set(x, y, fg)
					}
				}
			}
		}
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		avatarPNG = buf.Bytes()
	})

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(avatarPNG)
}
