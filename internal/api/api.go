package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/bayerngomez/retouchlab/internal/analysis"
	"github.com/bayerngomez/retouchlab/internal/auth"
	"github.com/bayerngomez/retouchlab/internal/config"
	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Archiver mirrors storage.Archiver; nil disables report archival.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) error
}

type Api struct {
	Config   *config.Config
	Router   *chi.Mux
	gate     *auth.Gate
	tokens   *auth.TokenManager
	sessions *session.Manager
	analysis *analysis.Service
	ledger   *quota.Ledger
	archiver Archiver
}

func NewApi(cfg *config.Config, gate *auth.Gate, tokens *auth.TokenManager, sessions *session.Manager, svc *analysis.Service, ledger *quota.Ledger, archiver Archiver) *Api {
	api := &Api{
		Config:   cfg,
		Router:   chi.NewRouter(),
		gate:     gate,
		tokens:   tokens,
		sessions: sessions,
		analysis: svc,
		ledger:   ledger,
		archiver: archiver,
	}
	api.setupRoutes()
	return api
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://*.local:*", "http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/heartbeat"))

	// Public routes
	r.Post("/auth/login", api.LoginHandler)
	r.Post("/auth/guest", api.GuestTrialHandler)
	r.Get("/modes", api.ModesHandler)

	// Session-bound routes
	r.Group(func(r chi.Router) {
		r.Use(api.SessionMiddleware)
		r.Post("/auth/logout", api.LogoutHandler)
		r.Post("/image", api.UploadImageHandler)
		r.Delete("/image", api.ClearImageHandler)
		r.Post("/analyze", api.AnalyzeHandler)
		r.Get("/history", api.HistoryHandler)
		r.Get("/favorites", api.ListFavoritesHandler)
		r.Post("/favorites/{recordID}", api.AddFavoriteHandler)
		r.Get("/export", api.ExportHandler)
		r.Get("/quota", api.QuotaHandler)
		r.Put("/prefs", api.PrefsHandler)
	})
}

// Serve blocks, listening on the configured port.
func (api *Api) Serve() {
	addr := fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort)
	log.Printf("Starting API server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, api.Router))
}
