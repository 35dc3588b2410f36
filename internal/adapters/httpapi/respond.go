package httpapi

import (
	"bizdesk/pkg/domain"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// statusFor classifies err.
func statusFor(err error) int {
	var violation domain.RuleViolationError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReferenceNotFound), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"message": ...}. Unclassified errors are logged
// and hidden behind a generic message; delivery failures keep their text.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if !errors.Is(err, domain.ErrDeliveryFailure) {
			message = "Internal server error"
		}
	}
	writeMessage(w, status, message)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err)
}

// decodeBody reads a JSON object into dst. An empty body leaves dst as is.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.InputError{Field: "body", Reason: err.Error()}
	}
	return nil
}
