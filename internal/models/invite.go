package models

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
	InviteExpired  InviteStatus = "expired"
)

type Invite struct {
	ID         uuid.UUID    `json:"id"`
	ProjectID  uuid.UUID    `json:"project_id"`
	ToolKey    string       `json:"tool_key"`
	Email      string       `json:"email"`
	Level      AccessLevel  `json:"level"`
	Token      string       `json:"token,omitempty"`
	Status     InviteStatus `json:"status"`
	InvitedBy  uuid.UUID    `json:"invited_by"`
	AcceptedBy *uuid.UUID   `json:"accepted_by,omitempty"`
	ExpiresAt  time.Time    `json:"expires_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// EffectiveStatus reports a pending invite past its deadline as expired.
func (i *Invite) EffectiveStatus(now time.Time) InviteStatus {
	if i.Status == InvitePending && now.After(i.ExpiresAt) {
		return InviteExpired
	}
	return i.Status
}

// InviteDetails is what an invitee sees before accepting.
type InviteDetails struct {
	ID          uuid.UUID    `json:"id"`
	ProjectID   uuid.UUID    `json:"project_id"`
	ProjectName string       `json:"project_name"`
	ToolKey     string       `json:"tool_key"`
	ToolName    string       `json:"tool_name"`
	InviterName string       `json:"inviter_name"`
	Email       string       `json:"email"`
	Level       AccessLevel  `json:"level"`
	Status      InviteStatus `json:"status"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

type AcceptResult struct {
	ProjectID uuid.UUID   `json:"project_id"`
	ToolKey   string      `json:"tool_key"`
	Level     AccessLevel `json:"level"`
}
