package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/slots"
	"github.com/lox/gendash/internal/store"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, compliance.ErrInvalidInput),
		errors.Is(err, slots.ErrInvalidLabel),
		errors.Is(err, ingest.ErrMalformedFile),
		errors.Is(err, models.ErrInvalidResponsible),
		errors.Is(err, models.ErrInvalidSetpoint),
		errors.Is(err, store.ErrEmptyNote):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
