package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medhub-labs/hospital-scheduling/internal/directory"
	"github.com/medhub-labs/hospital-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service   *schedule.Service
	Directory directory.Store
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Registry  *prometheus.Registry
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/availability", availabilityHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Put("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
	r.Put("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Prescription endpoints
	r.Post("/prescriptions", createPrescriptionHandler(cfg.Service))
	r.Get("/prescriptions/appointment/{appointmentID}", getPrescriptionHandler(cfg.Service))

	// Billing endpoints
	r.Get("/bills", listBillsHandler(cfg.Service))
	r.Put("/bills/{id}/pay", payBillHandler(cfg.Service))
	r.Get("/bills/patient/{patientID}/summary", billingSummaryHandler(cfg.Service))

	// Doctor directory endpoints
	r.Get("/doctors", listDoctorsHandler(cfg.Directory))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Directory))

	return r
}
