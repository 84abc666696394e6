package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var testSharing = config.SharingConfig{MaxEditShares: 3, InviteTTL: 7 * 24 * time.Hour}

type recordingDispatcher struct {
	mu      sync.Mutex
	effects []outbox.Effect
}

func (d *recordingDispatcher) Dispatch(_ context.Context, effects ...outbox.Effect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.effects = append(d.effects, effects...)
}

func (d *recordingDispatcher) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]string, len(d.effects))
	for i, e := range d.effects {
		kinds[i] = e.Kind
	}
	return kinds
}

func (d *recordingDispatcher) sharingEvents(t *testing.T) []outbox.SharingEvent {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	var events []outbox.SharingEvent
	for _, e := range d.effects {
		if e.Kind != outbox.KindSharingEvent {
			continue
		}
		var ev outbox.SharingEvent
		require.NoError(t, e.Decode(&ev))
		events = append(events, ev)
	}
	return events
}

func newMockDB(t *testing.T) (*database.DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &database.DB{Pool: mock}, mock
}

func testProject(ownerID uuid.UUID) *models.Project {
	now := time.Now()
	return &models.Project{
		ID:          uuid.New(),
		Name:        "Kitchen Remodel",
		Status:      models.ProjectActive,
		OwnerID:     ownerID,
		ActiveTools: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func projectColumns() []string {
	return []string{"id", "name", "status", "owner_id", "active_tools", "created_at", "updated_at"}
}

func expectProject(mock pgxmock.PgxPoolIface, p *models.Project) {
	mock.ExpectQuery(`SELECT .+ FROM projects WHERE id`).
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(projectColumns()).
			AddRow(p.ID, p.Name, p.Status, p.OwnerID, p.ActiveTools, p.CreatedAt, p.UpdatedAt))
}

func expectLock(mock pgxmock.PgxPoolIface, key, sub string) {
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(key, sub).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func expectMembershipLock(mock pgxmock.PgxPoolIface, projectID, userID uuid.UUID) {
	expectLock(mock, "membership:"+projectID.String(), userID.String())
}

func expectQuotaLock(mock pgxmock.PgxPoolIface, projectID uuid.UUID, toolKey string) {
	expectLock(mock, "quota:"+projectID.String(), toolKey)
}

func expectEditUsage(mock pgxmock.PgxPoolIface, projectID uuid.UUID, toolKey string, used, pending int) {
	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM tool_access`).
		WithArgs(projectID, toolKey, fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"used", "pending"}).AddRow(used, pending))
}

func expectRetirePending(mock pgxmock.PgxPoolIface, projectID uuid.UUID, toolKey, email string, ids ...uuid.UUID) {
	rows := pgxmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`UPDATE invites SET status = 'revoked'`).
		WithArgs(projectID, toolKey, email).
		WillReturnRows(rows)
}

func expectGrant(mock pgxmock.PgxPoolIface, projectID uuid.UUID, toolKey string, userID uuid.UUID, level models.AccessLevel, grantedBy uuid.UUID) {
	now := time.Now()
	expectMembershipLock(mock, projectID, userID)
	mock.ExpectExec(`INSERT INTO project_members .+ ON CONFLICT \(project_id, user_id\) DO NOTHING`).
		WithArgs(projectID, userID, models.RoleMember).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO tool_access`).
		WithArgs(projectID, toolKey, userID, level, grantedBy).
		WillReturnRows(pgxmock.NewRows([]string{"id", "project_id", "tool_key", "user_id", "level", "granted_by", "created_at", "updated_at"}).
			AddRow(uuid.New(), projectID, toolKey, userID, level, &grantedBy, now, now))
}
