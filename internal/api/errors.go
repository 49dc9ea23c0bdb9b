package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
	"github.com/p-arndt/ipyboxd/internal/mcpproxy"
	"github.com/p-arndt/ipyboxd/internal/resourceclient"
)

// apiError is the structured error body written for any non-2xx response.
type apiError struct {
	Detail string `json:"detail"`
}

// writeAPIError maps a domain error to an HTTP status and writes the
// envelope. errors.Is chains against the sentinels each collaborator
// package exports; anything unrecognized is a 500.
func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, containermgr.ErrNotFound),
		errors.Is(err, resourceclient.ErrNotFound),
		errors.Is(err, mcpproxy.ErrContainerNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, apiError{Detail: err.Error()})
}

// writeValidationError writes a 400 with the given message as detail.
func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, apiError{Detail: message})
}

// writeUnauthorizedError writes a 401.
func writeUnauthorizedError(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, apiError{Detail: "invalid or missing API key"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
