package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/services"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// wantsJSON reports whether the client asked for or sent JSON. HTMX requests
// always get HTML.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest
	}
	return id, nil
}

// classifyError maps an error to a status code and a user-facing message.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, scenarios.ErrNotFound), errors.Is(err, scenarios.ErrSnapshotNotFound):
		return http.StatusNotFound, "Scenario non trovato"
	case errors.Is(err, errBadRequest), errors.Is(err, scenarios.ErrMalformed):
		return http.StatusBadRequest, "Formato richiesta non valido"
	case core.IsValidationError(err),
		errors.Is(err, services.ErrRangeTooLong),
		errors.Is(err, services.ErrPaymentTooLow),
		errors.Is(err, services.ErrInvalidMonths):
		return http.StatusUnprocessableEntity, "Dati non validi: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Calcolo troppo lungo, riduci l'intervallo"
	default:
		return http.StatusInternalServerError, "Errore interno"
	}
}
