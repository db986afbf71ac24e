package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service  SchedulingService
	Postgres Pinger
	Redis    Pinger
	Logger   *logrus.Logger
	Location *time.Location
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandler(cfg.Service, cfg.Logger, cfg.Location)

	r.Route("/practitioners/{id}", func(r chi.Router) {
		r.Get("/availability", h.availability)
		r.Post("/slots", h.defineSlot)
		r.Delete("/slots/{slotID}", h.deleteSlot)
		r.Put("/slots/{slotID}/notes", h.practitionerNotes)
		r.Get("/appointments", h.appointments(appointment.PartyPractitioner))
	})

	r.Get("/patients/{id}/appointments", h.appointments(appointment.PartyPatient))

	r.Route("/baskets/{session}", func(r chi.Router) {
		r.Get("/", h.getBasket)
		r.Post("/review", h.review)
		r.Delete("/items/{line}", h.removeBasketItem)
		r.Post("/checkout", h.checkout)
	})

	r.Post("/slots/{id}/cancel", h.cancel)
	r.Put("/slots/{id}/notes", h.patientNotes)

	return r
}
