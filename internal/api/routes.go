package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
)

// SetupRoutes configures all routes. /api sits behind the maintenance
// gate and the per-session mutation guard; health, metrics and the admin
// settings stay reachable during maintenance.
func SetupRoutes(cfg config.ServerConfig, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/live", h.health.HandleLiveness)
	r.Get("/health/ready", h.health.HandleReadiness)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	if cfg.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(bearerAuth(cfg.AdminToken))
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.maintenanceGate)
		r.Use(h.sessionGuard)

		r.Route("/personas", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.CreatePerson)
			r.Put("/", h.UpdatePersonByLocator)
			r.Delete("/", h.DeletePersonByLocator)
			r.Get("/search", h.SearchPersons)
			r.Get("/export.xlsx", h.ExportPersons)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPerson)
				r.Put("/", h.UpdatePerson)
				r.Delete("/", h.DeletePerson)
				r.Post("/photo", h.UploadPhoto)
			})
		})

		r.Post("/import", h.ImportPersons)

		r.Get("/birthdays/today", h.TodayBirthdays)
		r.Get("/birthdays/tomorrow", h.TomorrowBirthdays)
		r.Get("/graph/issues", h.GraphIssues)

		r.Route("/notify", func(r chi.Router) {
			r.Post("/birthday-emails", h.SendBirthdayEmails)
			r.Post("/birthday-sms", h.SendBirthdaySMS)
			r.Post("/reminders", h.SendReminders)
		})
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/sent", h.WasAlreadySent)

		r.Post("/chat", h.Chat)
		r.Get("/context", h.FamilyContext)
	})

	return r
}

// bearerAuth requires "Authorization: Bearer <token>".
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
