package handlers

import (
	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// paramUUID parses a UUID route parameter, writing a validation error when it is malformed.
func paramUUID(c *drift.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validation("invalid "+label))
		return uuid.Nil, false
	}
	return id, true
}

// queryScope reads the optional scope_id query parameter.
func queryScope(c *drift.Context) (*uuid.UUID, bool) {
	raw := c.Request.URL.Query().Get("scope_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperr.Validation("invalid scope ID"))
		return nil, false
	}
	return &id, true
}
