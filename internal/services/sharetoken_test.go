package services

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShareTokenService(t *testing.T) (*ShareTokenService, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()
	db, mock := newMockDB(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewShareTokenService(db, m), mock, m
}

func shareTokenColumns() []string {
	return []string{"id", "project_id", "tool_key", "scope_id", "token", "include_photos", "include_notes", "include_comments", "include_source_url", "created_by", "created_at"}
}

func TestShareTokenService_CreateToken(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("owner creates a scoped link", func(t *testing.T) {
		svc, mock, m := newShareTokenService(t)
		project := testProject(ownerID)
		scopeID := uuid.New()
		flags := models.DisclosureFlags{Photos: true}

		expectProject(mock, project)
		mock.ExpectQuery(`INSERT INTO share_tokens`).
			WithArgs(project.ID, testTool, &scopeID, pgxmock.AnyArg(), true, false, false, false, ownerID).
			WillReturnRows(pgxmock.NewRows(shareTokenColumns()).
				AddRow(uuid.New(), project.ID, testTool, &scopeID, "share-token", true, false, false, false, ownerID, time.Now()))

		st, err := svc.CreateToken(ctx, project.ID, testTool, &scopeID, flags, ownerID)
		require.NoError(t, err)
		assert.Equal(t, "share-token", st.Token)
		assert.Equal(t, flags, st.Flags)
		require.NotNil(t, st.ScopeID)
		assert.Equal(t, scopeID, *st.ScopeID)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ShareTokensTotal.WithLabelValues("create")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		svc, mock, _ := newShareTokenService(t)
		project := testProject(ownerID)

		expectProject(mock, project)

		_, err := svc.CreateToken(ctx, project.ID, testTool, nil, models.DisclosureFlags{}, uuid.New())
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive tool", func(t *testing.T) {
		svc, mock, _ := newShareTokenService(t)
		project := testProject(ownerID)
		project.ActiveTools = []string{"notes"}

		expectProject(mock, project)

		_, err := svc.CreateToken(ctx, project.ID, testTool, nil, models.DisclosureFlags{}, ownerID)
		assert.ErrorIs(t, err, authz.ErrToolInactive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestShareTokenService_ResolveToken(t *testing.T) {
	ctx := context.Background()
	columns := []string{"project_id", "tool_key", "scope_id", "include_photos", "include_notes", "include_comments", "include_source_url"}

	t.Run("found", func(t *testing.T) {
		svc, mock, m := newShareTokenService(t)
		projectID := uuid.New()

		mock.ExpectQuery(`FROM share_tokens WHERE token`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(projectID, testTool, (*uuid.UUID)(nil), false, true, false, true))

		r, err := svc.ResolveToken(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, projectID, r.ProjectID)
		assert.Nil(t, r.ScopeID)
		assert.Equal(t, models.DisclosureFlags{Notes: true, SourceURL: true}, r.Flags)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ShareResolutionsTotal.WithLabelValues("ok")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoked or unknown", func(t *testing.T) {
		svc, mock, m := newShareTokenService(t)

		mock.ExpectQuery(`FROM share_tokens WHERE token`).
			WithArgs("gone").
			WillReturnError(pgx.ErrNoRows)

		_, err := svc.ResolveToken(ctx, "gone")
		assert.ErrorIs(t, err, ErrShareTokenNotFound)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ShareResolutionsTotal.WithLabelValues("not_found")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty token never hits the store", func(t *testing.T) {
		svc, mock, _ := newShareTokenService(t)

		_, err := svc.ResolveToken(ctx, "")
		assert.ErrorIs(t, err, ErrShareTokenNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestShareTokenService_RevokeToken(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("deletes the token", func(t *testing.T) {
		svc, mock, _ := newShareTokenService(t)
		project := testProject(ownerID)
		tokenID := uuid.New()

		expectProject(mock, project)
		mock.ExpectExec(`DELETE FROM share_tokens`).
			WithArgs(tokenID, project.ID, testTool).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, svc.RevokeToken(ctx, project.ID, testTool, tokenID, ownerID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, mock, _ := newShareTokenService(t)
		project := testProject(ownerID)
		tokenID := uuid.New()

		expectProject(mock, project)
		mock.ExpectExec(`DELETE FROM share_tokens`).
			WithArgs(tokenID, project.ID, testTool).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, svc.RevokeToken(ctx, project.ID, testTool, tokenID, ownerID), ErrShareTokenNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestShareTokenService_ListTokens(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	svc, mock, _ := newShareTokenService(t)
	project := testProject(ownerID)
	project.Status = models.ProjectTrashed

	expectProject(mock, project)
	mock.ExpectQuery(`FROM share_tokens`).
		WithArgs(project.ID, testTool).
		WillReturnRows(pgxmock.NewRows(shareTokenColumns()).
			AddRow(uuid.New(), project.ID, testTool, (*uuid.UUID)(nil), "t1", false, false, false, false, ownerID, time.Now()).
			AddRow(uuid.New(), project.ID, testTool, (*uuid.UUID)(nil), "t2", true, true, true, true, ownerID, time.Now()))

	tokens, err := svc.ListTokens(ctx, project.ID, testTool, ownerID)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	assert.True(t, tokens[1].Flags.Comments)
	assert.NoError(t, mock.ExpectationsWereMet())
}
