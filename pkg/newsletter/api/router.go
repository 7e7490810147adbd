package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// RouterConfig collects what NewRouter mounts
type RouterConfig struct {
	Newsletters *NewsletterHandler
	Health      *HealthHandler

	// Files serves locally stored assets below /files/{namespace}/
	Files map[newsletter.AssetClass]http.Handler

	// EnableCORS allows any origin, for development
	EnableCORS bool
	Timeout    time.Duration
}

// NewRouter wires middleware and every route of the server
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware())
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	if cfg.EnableCORS {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/health/setup", cfg.Health.Setup)
		r.Get("/metrics", cfg.Health.Metrics)
	}

	if cfg.Newsletters != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/newsletters", cfg.Newsletters.PublicRoutes())
			r.Mount("/admin", cfg.Newsletters.AdminRoutes())
		})
	}

	for ns, handler := range cfg.Files {
		prefix := "/files/" + string(ns)
		r.Handle(prefix+"/*", http.StripPrefix(prefix, handler))
	}

	return r
}
