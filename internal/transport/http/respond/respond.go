package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/food-ordering/order/internal/service/errs"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error writes err classified by its type.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		JSON(w, status, ErrorBody{Code: code, Message: "Unexpected error"})

		return
	}

	slog.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	JSON(w, status, ErrorBody{Code: code, Message: err.Error()})
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Code: "BAD_REQUEST", Message: message})
}

func classify(err error) (int, string) {
	var (
		validationErr *errs.ValidationError
		notFoundErr   *errs.NotFoundError
		transitionErr *errs.InvalidStateTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &transitionErr):
		return http.StatusConflict, "INVALID_STATE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
