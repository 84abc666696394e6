package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrProjectNotFound    = authz.ErrProjectNotFound
	ErrNotProjectOwner    = apperr.Forbidden("only the project owner can change the project")
	ErrInvalidProjectName = apperr.Validation("project name is required")
	ErrInvalidStatus      = apperr.Validation("status must be active, archived or trashed")
	ErrInvalidToolKey     = apperr.Validation("invalid tool key")
)

type ProjectUpdate struct {
	Name        *string
	Status      *models.ProjectStatus
	ActiveTools *[]string
}

type ProjectService struct {
	db *database.DB
}

func NewProjectService(db *database.DB) *ProjectService {
	return &ProjectService{db: db}
}

// Create inserts the project together with its single OWNER membership.
func (s *ProjectService) Create(ctx context.Context, ownerID uuid.UUID, name string, activeTools []string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidProjectName
	}
	if err := validateToolKeys(activeTools); err != nil {
		return nil, err
	}
	if activeTools == nil {
		activeTools = []string{}
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var project models.Project
	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, owner_id, active_tools)
		VALUES ($1, $2, $3)
		RETURNING id, name, status, owner_id, active_tools, created_at, updated_at
	`, name, ownerID, activeTools).Scan(
		&project.ID, &project.Name, &project.Status, &project.OwnerID, &project.ActiveTools,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, project.ID, ownerID, models.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	project.Role = models.RoleOwner
	return &project, nil
}

func (s *ProjectService) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	return loadProject(ctx, s.db.Pool, projectID)
}

// Get returns the project when the caller is its owner or a member.
func (s *ProjectService) Get(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	project, err := loadProject(ctx, s.db.Pool, projectID)
	if err != nil {
		return nil, err
	}

	role, err := s.Role(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrProjectNotFound
	}
	project.Role = role
	return project, nil
}

func (s *ProjectService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT p.id, p.name, p.status, p.owner_id, p.active_tools, pm.role, p.created_at, p.updated_at
		FROM projects p
		INNER JOIN project_members pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.OwnerID, &p.ActiveTools, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update changes name, status or active tools. Only the owner may do so.
func (s *ProjectService) Update(ctx context.Context, projectID, callerID uuid.UUID, upd ProjectUpdate) (*models.Project, error) {
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return nil, ErrInvalidProjectName
		}
		upd.Name = &trimmed
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if upd.ActiveTools != nil {
		if err := validateToolKeys(*upd.ActiveTools); err != nil {
			return nil, err
		}
	}

	current, err := loadProject(ctx, s.db.Pool, projectID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != callerID {
		return nil, ErrNotProjectOwner
	}

	var status *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}

	var project models.Project
	err = s.db.Pool.QueryRow(ctx, `
		UPDATE projects SET
			name = COALESCE($1, name),
			status = COALESCE($2, status),
			active_tools = COALESCE($3, active_tools),
			updated_at = NOW()
		WHERE id = $4 AND owner_id = $5
		RETURNING id, name, status, owner_id, active_tools, created_at, updated_at
	`, upd.Name, status, upd.ActiveTools, projectID, callerID).Scan(
		&project.ID, &project.Name, &project.Status, &project.OwnerID, &project.ActiveTools,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	project.Role = models.RoleOwner
	return &project, nil
}

// Role returns the caller's membership role, or "" when they have none.
func (s *ProjectService) Role(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	var role string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get membership: %w", err)
	}
	return role, nil
}

func loadProject(ctx context.Context, q database.Querier, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := q.QueryRow(ctx, `
		SELECT id, name, status, owner_id, active_tools, created_at, updated_at
		FROM projects WHERE id = $1
	`, projectID).Scan(
		&project.ID, &project.Name, &project.Status, &project.OwnerID, &project.ActiveTools,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// authorizeSharing loads the project on q and applies the MANAGE_SHARING rule.
// Listing is allowed on a trashed project; mutations are not.
func authorizeSharing(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, callerID uuid.UUID, mutation bool) (*models.Project, error) {
	if !models.ValidToolKey(toolKey) {
		return nil, ErrInvalidToolKey
	}

	project, err := loadProject(ctx, q, projectID)
	if err != nil {
		return nil, err
	}

	level := models.AccessLevel("")
	if project.OwnerID != callerID {
		// Non-owners only need to be told they are not the owner.
		level = models.LevelView
	}

	facts := authz.FactsFor(project, toolKey, callerID, level)
	if !mutation {
		facts.ProjectStatus = models.ProjectActive
	}

	d := authz.Decide(facts, authz.OpManageSharing)
	if !d.Allowed {
		return nil, d.Err
	}
	return project, nil
}

func validateToolKeys(keys []string) error {
	for _, k := range keys {
		if !models.ValidToolKey(k) {
			return ErrInvalidToolKey
		}
	}
	return nil
}
