package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parley-ai/parley/internal/errs"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeDomainError maps a domain error to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errs.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseIntQuery reads an integer query parameter, keeping it within bounds.
func parseIntQuery(r *http.Request, name string, def, min, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
