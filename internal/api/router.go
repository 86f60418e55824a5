package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/payment"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Allocator
	Catalog      catalog.Repository
	Checkout     *payment.Checkout
	Location     *time.Location
	Logger       zerolog.Logger
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Store        string
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Store, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(svc, loc))
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/summary", appointmentSummaryHandler(svc, loc))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc))
			r.Patch("/", updateAppointmentHandler(svc))
			r.Delete("/", deleteAppointmentHandler(svc))
			r.Post("/cancel", cancelAppointmentHandler(svc))
			r.Post("/reschedule", rescheduleAppointmentHandler(svc))
			r.Post("/refund", refundAppointmentHandler(svc))
			r.Post("/notifications", recordNotificationHandler(svc))
			r.Post("/notifications/resend", resendNotificationHandler(svc))
		})
	})

	r.Get("/slots", openSlotsHandler(svc, loc))
	r.Get("/stats/sales", salesStatsHandler(svc, loc))

	r.Get("/availability", listAvailabilityHandler(cfg.Availability, loc))
	r.Post("/availability", createAvailabilityHandler(cfg.Availability))
	r.Delete("/availability/{provider}/{start}/{service}", deleteAvailabilityHandler(cfg.Availability))

	r.Get("/services", listServicesHandler(cfg.Catalog))
	r.Put("/services", putServiceHandler(cfg.Catalog))
	r.Get("/services/preferences", listPreferencesHandler(cfg.Catalog))
	r.Put("/services/preferences/{id}", putPreferencesHandler(cfg.Catalog))
	r.Get("/providers", listProvidersHandler(cfg.Catalog))
	r.Put("/providers/{id}", putProviderHandler(cfg.Catalog))

	r.Post("/checkout", checkoutHandler(cfg.Checkout))

	return r
}
