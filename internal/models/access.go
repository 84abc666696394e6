package models

import (
	"time"

	"github.com/google/uuid"
)

type AccessLevel string

const (
	LevelView AccessLevel = "view"
	LevelEdit AccessLevel = "edit"
)

func (l AccessLevel) Valid() bool {
	return l == LevelView || l == LevelEdit
}

type ToolAccess struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	ToolKey   string      `json:"tool_key"`
	UserID    uuid.UUID   `json:"user_id"`
	Level     AccessLevel `json:"level"`
	GrantedBy *uuid.UUID  `json:"granted_by,omitempty"`
	UserEmail string      `json:"user_email,omitempty"`
	UserName  string      `json:"user_name,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// QuotaUsage counts EDIT grants and pending EDIT invites against the per-tool limit.
type QuotaUsage struct {
	EditUsed    int `json:"edit_used"`
	EditPending int `json:"edit_pending"`
	EditLimit   int `json:"edit_limit"`
}

func (q QuotaUsage) Total() int {
	return q.EditUsed + q.EditPending
}

func (q QuotaUsage) Remaining() int {
	if r := q.EditLimit - q.Total(); r > 0 {
		return r
	}
	return 0
}

type SharingState struct {
	ProjectID      uuid.UUID    `json:"project_id"`
	ToolKey        string       `json:"tool_key"`
	Access         []ToolAccess `json:"access"`
	PendingInvites []Invite     `json:"pending_invites"`
	Quota          QuotaUsage   `json:"quota"`
}
