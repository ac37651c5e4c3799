package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"msgharness/pkg/harness"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WarnContext(r.Context(), "encode response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps the harness error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	response := errorResponse{Error: err.Error()}
	if message, ok := harness.UserMessage(err); ok {
		response.Message = message
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	h.writeJSON(w, r, status, response)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, harness.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, harness.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, harness.ErrSessionNotReady):
		return http.StatusConflict
	case errors.Is(err, harness.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, harness.ErrBackendTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads one JSON body into dst and validates its struct tags.
// An empty body decodes as the zero value before validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, harness.ErrValidation)
		}
		return fmt.Errorf("decode request body: %v: %w", err, harness.ErrValidation)
	}

	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %s: %w", describeValidation(err), harness.ErrValidation)
	}

	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		if param := fieldErr.Param(); param != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fieldErr.Namespace(), fieldErr.Tag(), param))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return strings.Join(parts, "; ")
}
