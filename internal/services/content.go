package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrVersionConflict = apperr.Conflict(apperr.ReasonVersionConflict, "document has been modified")
	ErrInvalidDocument = apperr.Validation("document must be a JSON object")
)

// ContentService stores each tool's document as opaque JSON. Callers are
// authorized by the guard before reaching it.
type ContentService struct {
	db *database.DB
}

func NewContentService(db *database.DB) *ContentService {
	return &ContentService{db: db}
}

// Get returns the document, or an empty version-0 document when none exists yet.
func (s *ContentService) Get(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID) (*models.ToolDocument, error) {
	doc := models.ToolDocument{ProjectID: projectID, ToolKey: toolKey, ScopeID: scopeID}
	err := s.db.Pool.QueryRow(ctx, `
		SELECT data, version, updated_by, updated_at
		FROM tool_documents
		WHERE project_id = $1 AND tool_key = $2 AND scope_id IS NOT DISTINCT FROM $3
	`, projectID, toolKey, scopeID).Scan(&doc.Data, &doc.Version, &doc.UpdatedBy, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			doc.Data = json.RawMessage("{}")
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// Save writes data when expectedVersion matches the stored version; version 0 creates.
func (s *ContentService) Save(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, data json.RawMessage, expectedVersion int, userID uuid.UUID) (*models.ToolDocument, error) {
	if !isJSONObject(data) {
		return nil, ErrInvalidDocument
	}

	doc := models.ToolDocument{ProjectID: projectID, ToolKey: toolKey, ScopeID: scopeID}

	if expectedVersion == 0 {
		err := s.db.Pool.QueryRow(ctx, `
			INSERT INTO tool_documents (project_id, tool_key, scope_id, data, updated_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING data, version, updated_by, updated_at
		`, projectID, toolKey, scopeID, data, userID).Scan(&doc.Data, &doc.Version, &doc.UpdatedBy, &doc.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrVersionConflict
			}
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		return &doc, nil
	}

	err := s.db.Pool.QueryRow(ctx, `
		UPDATE tool_documents
		SET data = $1, version = version + 1, updated_by = $2, updated_at = NOW()
		WHERE project_id = $3 AND tool_key = $4 AND scope_id IS NOT DISTINCT FROM $5 AND version = $6
		RETURNING data, version, updated_by, updated_at
	`, data, userID, projectID, toolKey, scopeID, expectedVersion).Scan(&doc.Data, &doc.Version, &doc.UpdatedBy, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return &doc, nil
}

func isJSONObject(data json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(data, &obj) == nil && obj != nil
}
