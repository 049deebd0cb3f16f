// Package handlers exposes the case gateway and token lifecycle over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"case-gateway/internal/common/errors"
	"case-gateway/internal/common/logging"
	"case-gateway/internal/crm"
	"case-gateway/internal/token"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	gateway *crm.Gateway
	tokens  *token.Service
	columns []crm.Column
	logger  logging.Logger
}

// DefaultColumns is the table shape served when no columns are configured.
var DefaultColumns = []crm.Column{
	{Key: "id", Header: "Case"},
	{Key: "name", Header: "Name"},
	{Key: "status", Header: "Status"},
	{Key: "priority", Header: "Priority"},
}

// New creates the handler set.
func New(gateway *crm.Gateway, tokens *token.Service, columns []crm.Column, logger logging.Logger) *Handlers {
	if columns == nil {
		columns = DefaultColumns
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		gateway: gateway,
		tokens:  tokens,
		columns: columns,
		logger:  logger,
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps an error onto an HTTP status through the error taxonomy
// and writes a structured error body.
func writeError(w http.ResponseWriter, err error) {
	appErr := errors.AsAppError(err)

	var status int
	switch appErr.Type {
	case errors.ErrTypeAuth:
		status = http.StatusUnauthorized
	case errors.ErrTypeForbidden:
		status = http.StatusForbidden
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeValidation:
		status = http.StatusUnprocessableEntity
	case errors.ErrTypeInvariant:
		status = http.StatusBadRequest
	case errors.ErrTypeTransient, errors.ErrTypeConnection:
		status = http.StatusServiceUnavailable
	case errors.ErrTypeTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{
		"error": appErr.Message,
		"type":  string(appErr.Type),
	})
}
