package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bankcards/card-service/internal/errs"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Internal
// failures are reported without detail.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrUserNotFound), errors.Is(err, errs.ErrCardNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidCardNumber), errors.Is(err, errs.ErrInvalidTransfer):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrBusy):
		w.Header().Set("Retry-After", "1")
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
