// Package authz decides whether a principal may read, write or manage sharing
// on a tool within a project. Decisions are evaluated per request against the
// access registry and never cached.
package authz

import (
	"context"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
)

type Operation string

const (
	OpRead          Operation = "read"
	OpWrite         Operation = "write"
	OpManageSharing Operation = "manage_sharing"
)

var (
	ErrUnauthenticated = apperr.Unauthorized("authentication required")
	ErrNotOwner        = apperr.Forbidden("only the project owner can manage sharing")
	ErrNoEditAccess    = apperr.Forbidden("edit access required")
	ErrNoAccess        = apperr.Forbidden("you do not have access to this tool")
	ErrProjectNotFound = apperr.NotFound("project not found")
	ErrToolInactive    = apperr.New(apperr.KindNotFound, apperr.ReasonToolInactive, "tool is not active in this project")
	ErrProjectInactive = apperr.Conflict(apperr.ReasonProjectInactive, "project is in the trash")
	ErrUnknownOp       = apperr.Validation("unknown operation")
)

// Principal is the caller as supplied by the identity layer. A zero UserID is anonymous.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

func (p Principal) Anonymous() bool {
	return p.UserID == uuid.Nil
}

// Facts is everything the decision table needs about one caller on one tool.
type Facts struct {
	Authenticated bool
	ProjectExists bool
	ProjectStatus models.ProjectStatus
	ToolActive    bool
	IsOwner       bool
	Level         models.AccessLevel
}

// FactsFor derives facts from a loaded project and the caller's grant level.
func FactsFor(project *models.Project, toolKey string, userID uuid.UUID, level models.AccessLevel) Facts {
	if project == nil {
		return Facts{Authenticated: userID != uuid.Nil}
	}
	return Facts{
		Authenticated: userID != uuid.Nil,
		ProjectExists: true,
		ProjectStatus: project.Status,
		ToolActive:    project.IsToolActive(toolKey),
		IsOwner:       userID != uuid.Nil && project.OwnerID == userID,
		Level:         level,
	}
}

type Decision struct {
	Allowed bool
	Err     *apperr.Error
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(err *apperr.Error) Decision {
	return Decision{Err: err}
}

// Decide evaluates the decision table. Anonymous callers are always denied here;
// anonymous reads go through share token resolution instead.
func Decide(f Facts, op Operation) Decision {
	if !f.Authenticated {
		return deny(ErrUnauthenticated)
	}
	if !f.ProjectExists {
		return deny(ErrProjectNotFound)
	}
	if !f.IsOwner && f.Level == "" {
		// Non-participants learn nothing about the project's tools.
		return deny(ErrNoAccess)
	}
	if !f.ToolActive {
		return deny(ErrToolInactive)
	}

	switch op {
	case OpManageSharing:
		if !f.IsOwner {
			return deny(ErrNotOwner)
		}
		if f.ProjectStatus == models.ProjectTrashed {
			return deny(ErrProjectInactive)
		}
		return allow()
	case OpWrite:
		if !f.IsOwner && f.Level != models.LevelEdit {
			return deny(ErrNoEditAccess)
		}
		if f.ProjectStatus == models.ProjectTrashed {
			return deny(ErrProjectInactive)
		}
		return allow()
	case OpRead:
		return allow()
	}
	return deny(ErrUnknownOp)
}

type ProjectLookup interface {
	GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
}

type AccessLookup interface {
	Level(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID) (models.AccessLevel, error)
}

// Guard loads facts from the registry on every call.
type Guard struct {
	projects ProjectLookup
	access   AccessLookup
	metrics  *metrics.Metrics
}

func NewGuard(projects ProjectLookup, access AccessLookup, m *metrics.Metrics) *Guard {
	return &Guard{projects: projects, access: access, metrics: m}
}

// Authorize returns nil when p may perform op, otherwise an *apperr.Error.
func (g *Guard) Authorize(ctx context.Context, p Principal, projectID uuid.UUID, toolKey string, op Operation) error {
	facts, err := g.load(ctx, p, projectID, toolKey)
	if err != nil {
		return err
	}

	d := Decide(facts, op)
	g.record(op, d)
	if !d.Allowed {
		return d.Err
	}
	return nil
}

func (g *Guard) load(ctx context.Context, p Principal, projectID uuid.UUID, toolKey string) (Facts, error) {
	if p.Anonymous() {
		return Facts{}, nil
	}

	project, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return FactsFor(nil, toolKey, p.UserID, ""), nil
		}
		return Facts{}, apperr.FromStore(err)
	}

	var level models.AccessLevel
	if project.OwnerID != p.UserID {
		level, err = g.access.Level(ctx, projectID, toolKey, p.UserID)
		if err != nil {
			return Facts{}, apperr.FromStore(err)
		}
	}

	return FactsFor(project, toolKey, p.UserID, level), nil
}

func (g *Guard) record(op Operation, d Decision) {
	if g.metrics == nil {
		return
	}
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Err.Kind)
	}
	g.metrics.AuthzDecisionsTotal.WithLabelValues(string(op), outcome).Inc()
}
