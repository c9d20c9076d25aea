// Package server exposes the registration front-end as a JSON HTTP API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"club-registration/internal/api"
	"club-registration/internal/coaches"
	"club-registration/internal/config"
	"club-registration/internal/loading"
	"club-registration/internal/metrics"
	"club-registration/internal/registration"
	"club-registration/internal/sessions"
)

type Deps struct {
	API           *api.Client
	Options       *sessions.Service
	Registrations *registration.Service
	Coaches       *coaches.Service
	Loading       *loading.Tracker
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Club          config.Club
	// ExportSecret signs the report download links.
	ExportSecret string
	CORSOrigins  []string
	Now          func() time.Time
}

type handlers struct {
	Deps
}

func New(cfg config.Config, d Deps) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Loading == nil {
		d.Loading = &loading.Tracker{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d}
	tokens := d.Coaches.Tokens()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(NewSlogLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(NewCORSHandler(d.CORSOrigins))

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/options", h.options)
		r.Get("/coach-options", h.coachOptions)
		r.Get("/age-groups", h.ageGroups)
		r.Get("/upcoming", h.upcoming)
		r.Post("/registrations/{role}", h.register)

		r.Post("/coach/register", h.coachRegister)
		r.Post("/coach/login", h.coachLogin)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(tokens, coaches.RoleCoach))
			r.Patch("/coach/me", h.coachUpdate)
			r.Delete("/coach/me", h.coachDelete)
		})

		r.Post("/admin/login", h.adminLogin)
		// Download links carry their own signature instead of a bearer token.
		r.Get("/admin/report.csv", h.reportCSV)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(tokens, coaches.RoleAdmin))
			r.Get("/admin/schedule", h.schedule)
			r.Get("/admin/camps", h.listCamps)
			r.Post("/admin/camps", h.addCamp)
			r.Put("/admin/camps/{id}", h.updateCamp)
			r.Delete("/admin/camps/{id}", h.deleteCamp)
			r.Get("/admin/courses", h.listCourses)
			r.Post("/admin/courses", h.addCourse)
			r.Put("/admin/courses/{id}", h.updateCourse)
			r.Delete("/admin/courses/{id}", h.deleteCourse)
			r.Get("/admin/coaches", h.listCoaches)
			r.Delete("/admin/coaches/{id}", h.deleteCoach)
			r.Get("/admin/report", h.report)
			r.Post("/admin/cache/refresh", h.refreshCache)
		})
	})

	return r
}
