package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Step  string `json:"step,omitempty"`
}

// statusFor maps library errors onto HTTP status codes.
func statusFor(err error) int {
	var validation *newsletter.ValidationError
	var maxBytes *http.MaxBytesError
	var step *newsletter.StepError
	var upload *newsletter.AssetUploadError

	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, newsletter.ErrNotFound), errors.Is(err, newsletter.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, newsletter.ErrAssetExists):
		return http.StatusConflict
	case errors.Is(err, newsletter.ErrStorageBackendNotFound):
		return http.StatusNotFound
	case errors.As(err, &upload):
		return http.StatusBadGateway
	case errors.As(err, &step) && step.Step == newsletter.StepUploadDocument:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var validation *newsletter.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	var step *newsletter.StepError
	if errors.As(err, &step) {
		resp.Step = string(step.Step)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		logger.Info("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
