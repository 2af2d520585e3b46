package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wardbook/portalsync/internal/http/handlers"
	httpmiddleware "github.com/wardbook/portalsync/internal/http/middleware"
	"github.com/wardbook/portalsync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Lists              *handlers.ListsHandler
	Session            *handlers.SessionHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Lists != nil {
			api.Get("/admissions", cfg.Lists.ListAdmissions)
			api.Post("/admissions", cfg.Lists.CreateAdmission)
			api.Put("/admissions/{id}", cfg.Lists.UpdateAdmission)
			api.Put("/admissions/{id}/discharge", cfg.Lists.DischargeAdmission)
			api.Delete("/admissions/{id}", cfg.Lists.DeleteAdmission)

			api.Get("/appointments", cfg.Lists.ListAppointments)
			api.Post("/appointments", cfg.Lists.CreateAppointment)
			api.Delete("/appointments/{id}", cfg.Lists.DeleteAppointment)
		}
		if cfg.Session != nil {
			api.Get("/session-user", cfg.Session.GetSessionUser)
			api.Post("/logout", cfg.Session.Logout)
		}
	})

	return r
}
