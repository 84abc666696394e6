package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func documentColumns() []string {
	return []string{"data", "version", "updated_by", "updated_at"}
}

func TestContentService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("existing document", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, userID := uuid.New(), uuid.New()
		data := json.RawMessage(`{"items":[{"name":"tiles"}]}`)

		mock.ExpectQuery(`FROM tool_documents`).
			WithArgs(projectID, testTool, (*uuid.UUID)(nil)).
			WillReturnRows(pgxmock.NewRows(documentColumns()).AddRow(data, 4, &userID, time.Now()))

		doc, err := svc.Get(ctx, projectID, testTool, nil)
		require.NoError(t, err)
		assert.JSONEq(t, string(data), string(doc.Data))
		assert.Equal(t, 4, doc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing document is empty at version zero", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, scopeID := uuid.New(), uuid.New()

		mock.ExpectQuery(`FROM tool_documents`).
			WithArgs(projectID, testTool, &scopeID).
			WillReturnError(pgx.ErrNoRows)

		doc, err := svc.Get(ctx, projectID, testTool, &scopeID)
		require.NoError(t, err)
		assert.Equal(t, 0, doc.Version)
		assert.JSONEq(t, `{}`, string(doc.Data))
		assert.Equal(t, &scopeID, doc.ScopeID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContentService_Save(t *testing.T) {
	ctx := context.Background()
	data := json.RawMessage(`{"notes":"buy grout"}`)

	t.Run("version zero creates", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, userID := uuid.New(), uuid.New()

		mock.ExpectQuery(`INSERT INTO tool_documents`).
			WithArgs(projectID, testTool, (*uuid.UUID)(nil), data, userID).
			WillReturnRows(pgxmock.NewRows(documentColumns()).AddRow(data, 1, &userID, time.Now()))

		doc, err := svc.Save(ctx, projectID, testTool, nil, data, 0, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent create conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, userID := uuid.New(), uuid.New()

		mock.ExpectQuery(`INSERT INTO tool_documents`).
			WithArgs(projectID, testTool, (*uuid.UUID)(nil), data, userID).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := svc.Save(ctx, projectID, testTool, nil, data, 0, userID)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("matching version updates", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, userID := uuid.New(), uuid.New()

		mock.ExpectQuery(`UPDATE tool_documents`).
			WithArgs(data, userID, projectID, testTool, (*uuid.UUID)(nil), 3).
			WillReturnRows(pgxmock.NewRows(documentColumns()).AddRow(data, 4, &userID, time.Now()))

		doc, err := svc.Save(ctx, projectID, testTool, nil, data, 3, userID)
		require.NoError(t, err)
		assert.Equal(t, 4, doc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)
		projectID, userID := uuid.New(), uuid.New()

		mock.ExpectQuery(`UPDATE tool_documents`).
			WithArgs(data, userID, projectID, testTool, (*uuid.UUID)(nil), 2).
			WillReturnError(pgx.ErrNoRows)

		_, err := svc.Save(ctx, projectID, testTool, nil, data, 2, userID)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-object payload", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := NewContentService(db)

		for _, bad := range []string{`[1,2]`, `"text"`, `null`, `{broken`} {
			_, err := svc.Save(ctx, uuid.New(), testTool, nil, json.RawMessage(bad), 0, uuid.New())
			assert.ErrorIs(t, err, ErrInvalidDocument, bad)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
