package models

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
	ProjectTrashed  ProjectStatus = "trashed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectArchived, ProjectTrashed:
		return true
	}
	return false
}

// Membership roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

var toolKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// ValidToolKey reports whether key is a well-formed tool key such as "mood_boards".
func ValidToolKey(key string) bool {
	return toolKeyPattern.MatchString(key)
}

// ToolDisplayName turns a tool key into a human label: "mood_boards" becomes "Mood Boards".
func ToolDisplayName(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

type Project struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Status      ProjectStatus `json:"status"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	ActiveTools []string      `json:"active_tools"`
	Role        string        `json:"role,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsToolActive treats an empty allow-list as every tool being active.
func (p *Project) IsToolActive(toolKey string) bool {
	if len(p.ActiveTools) == 0 {
		return true
	}
	return slices.Contains(p.ActiveTools, toolKey)
}

func (p *Project) IsTrashed() bool {
	return p.Status == ProjectTrashed
}

type ProjectMember struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
