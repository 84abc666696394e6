package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ToolDocument struct {
	ProjectID uuid.UUID       `json:"project_id"`
	ToolKey   string          `json:"tool_key"`
	ScopeID   *uuid.UUID      `json:"scope_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Version   int             `json:"version"`
	UpdatedBy *uuid.UUID      `json:"updated_by,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
