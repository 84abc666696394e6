package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email: fmt.Sprintf("user%d@example.com", f.counter),
		Name:  fmt.Sprintf("Test User %d", f.counter),
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, avatar_url)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, avatar_url, created_at, updated_at
	`, user.Email, user.Name, user.AvatarURL).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// WithName sets the user's name
func WithName(name string) UserOption {
	return func(u *models.User) {
		u.Name = name
	}
}

// CreateProject creates a test project with the given owner
func (f *Fixtures) CreateProject(t *testing.T, owner *models.User, opts ...ProjectOption) *models.Project {
	t.Helper()
	f.counter++

	project := &models.Project{
		Name:        fmt.Sprintf("Test Project %d", f.counter),
		Status:      models.ProjectActive,
		OwnerID:     owner.ID,
		ActiveTools: []string{},
	}

	for _, opt := range opts {
		opt(project)
	}

	ctx := context.Background()
	tx, err := f.db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, status, owner_id, active_tools)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, status, owner_id, active_tools, created_at, updated_at
	`, project.Name, project.Status, project.OwnerID, project.ActiveTools).Scan(
		&project.ID, &project.Name, &project.Status, &project.OwnerID, &project.ActiveTools,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, project.ID, owner.ID, models.RoleOwner)
	if err != nil {
		t.Fatalf("failed to add owner as member: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	project.Role = models.RoleOwner
	return project
}

// ProjectOption configures a test project
type ProjectOption func(*models.Project)

// WithProjectName sets the project's name
func WithProjectName(name string) ProjectOption {
	return func(p *models.Project) {
		p.Name = name
	}
}

// WithProjectStatus sets the project's lifecycle status
func WithProjectStatus(status models.ProjectStatus) ProjectOption {
	return func(p *models.Project) {
		p.Status = status
	}
}

// WithActiveTools restricts which tools are enabled in the project
func WithActiveTools(tools ...string) ProjectOption {
	return func(p *models.Project) {
		p.ActiveTools = tools
	}
}

// MemberRole returns the user's membership role, or "" when they have none
func (f *Fixtures) MemberRole(t *testing.T, projectID, userID uuid.UUID) string {
	t.Helper()
	var role string
	err := f.db.Pool.QueryRow(context.Background(), `
		SELECT COALESCE((SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2), '')
	`, projectID, userID).Scan(&role)
	if err != nil {
		t.Fatalf("failed to read membership: %v", err)
	}
	return role
}

// CountGrants counts grants for a tool at the given level ("" for any level)
func (f *Fixtures) CountGrants(t *testing.T, projectID uuid.UUID, toolKey string, level models.AccessLevel) int {
	t.Helper()
	var n int
	err := f.db.Pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM tool_access
		WHERE project_id = $1 AND tool_key = $2 AND ($3 = '' OR level = $3)
	`, projectID, toolKey, string(level)).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count grants: %v", err)
	}
	return n
}

// ExpireInvite moves an invite's deadline into the past
func (f *Fixtures) ExpireInvite(t *testing.T, inviteID uuid.UUID) {
	t.Helper()
	_, err := f.db.Pool.Exec(context.Background(), `
		UPDATE invites SET expires_at = NOW() - INTERVAL '1 minute' WHERE id = $1
	`, inviteID)
	if err != nil {
		t.Fatalf("failed to expire invite: %v", err)
	}
}
