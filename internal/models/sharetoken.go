package models

import (
	"time"

	"github.com/google/uuid"
)

// DisclosureFlags control which content fields an anonymous viewer receives.
type DisclosureFlags struct {
	Photos    bool `json:"photos"`
	Notes     bool `json:"notes"`
	Comments  bool `json:"comments"`
	SourceURL bool `json:"source_url"`
}

type ShareToken struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"project_id"`
	ToolKey   string          `json:"tool_key"`
	ScopeID   *uuid.UUID      `json:"scope_id,omitempty"`
	Token     string          `json:"token"`
	Flags     DisclosureFlags `json:"flags"`
	CreatedBy uuid.UUID       `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// ResolvedShare is the context needed to build a redacted read projection.
type ResolvedShare struct {
	ProjectID uuid.UUID       `json:"project_id"`
	ToolKey   string          `json:"tool_key"`
	ScopeID   *uuid.UUID      `json:"scope_id,omitempty"`
	Flags     DisclosureFlags `json:"flags"`
}
