package dto

import (
	"encoding/json"

	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
)

type CreateInviteRequest struct {
	Email string             `json:"email" validate:"required,max=255"`
	Level models.AccessLevel `json:"level" validate:"required,oneof=view edit"`
}

type GrantAccessRequest struct {
	UserID uuid.UUID          `json:"user_id" validate:"required"`
	Level  models.AccessLevel `json:"level" validate:"required,oneof=view edit"`
}

type CreateShareTokenRequest struct {
	ScopeID          *uuid.UUID `json:"scope_id,omitempty"`
	IncludePhotos    bool       `json:"include_photos"`
	IncludeNotes     bool       `json:"include_notes"`
	IncludeComments  bool       `json:"include_comments"`
	IncludeSourceURL bool       `json:"include_source_url"`
}

func (r CreateShareTokenRequest) Flags() models.DisclosureFlags {
	return models.DisclosureFlags{
		Photos:    r.IncludePhotos,
		Notes:     r.IncludeNotes,
		Comments:  r.IncludeComments,
		SourceURL: r.IncludeSourceURL,
	}
}

type ShareTokenResponse struct {
	models.ShareToken
	URL string `json:"url"`
}

type ShareTokenListResponse struct {
	Tokens []models.ShareToken `json:"tokens"`
}

type InviteListResponse struct {
	Invites []models.InviteDetails `json:"invites"`
}

// SharedContentResponse is the anonymous read projection behind a share link.
type SharedContentResponse struct {
	ToolKey  string                 `json:"tool_key"`
	ToolName string                 `json:"tool_name"`
	ScopeID  *uuid.UUID             `json:"scope_id,omitempty"`
	Flags    models.DisclosureFlags `json:"flags"`
	Data     json.RawMessage        `json:"data"`
}
