package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// HealthHandler serves liveness, setup check and metrics endpoints
type HealthHandler struct {
	service     newsletter.Service
	environment string
	logger      *slog.Logger
	promHandler http.Handler
}

// NewHealthHandler creates a health handler
func NewHealthHandler(service newsletter.Service, environment string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		service:     service,
		environment: environment,
		logger:      logger,
		promHandler: promhttp.Handler(),
	}
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment,omitempty"`
	Timestamp   string `json:"timestamp"`
	Message     string `json:"message,omitempty"`
}

// Health reports that the process is up
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:      "healthy",
		Environment: h.environment,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Setup verifies the table and both storage namespaces are reachable
func (h *HealthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.service.CheckSetup(r.Context()); err != nil {
		h.logger.Error("Setup check failed", "error", err)
		resp.Status = "fail"
		resp.Message = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}

// Metrics exposes Prometheus metrics
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
