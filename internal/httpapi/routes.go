package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/raffle-backend/internal/history"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/roster"
	"github.com/DoyleJ11/raffle-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	History        history.Store
	Loader         *roster.Loader
	MaxUploadBytes int64
	// AllowedOrigins are host patterns for cross-origin browsers, shared by
	// CORS and the websocket origin check.
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	hs := NewHandlers(h, opts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORS(opts.AllowedOrigins))

	// The websocket skips request logging: it lives as long as the client.
	r.Get("/ws", ws.Handler(h, ws.Options{OriginPatterns: opts.AllowedOrigins, Logger: hs.log}))

	r.Group(func(r chi.Router) {
		r.Use(RequestLogger(hs.log))

		r.Get("/healthz", Healthz)
		r.Post("/sessions", hs.CreateSession)
		r.Route("/sessions/{code}", func(r chi.Router) {
			r.Get("/", hs.GetSession)
			r.Delete("/", hs.DeleteSession)
			r.Post("/roster", hs.UploadRoster)
			r.Put("/branding", hs.SetBranding)
			r.Post("/draws", hs.StartDraw)
			r.Post("/new-draw", hs.NewDraw)
			r.Post("/reset", hs.Reset)
			r.Get("/history", hs.History)
		})
	})
	return r
}
