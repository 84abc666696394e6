package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrShareTokenNotFound = apperr.NotFound("share link not found")

// ShareTokenService manages anonymous read-only links. Tokens never expire;
// revocation deletes the row and resolution always reads the store.
type ShareTokenService struct {
	db      *database.DB
	metrics *metrics.Metrics
}

func NewShareTokenService(db *database.DB, m *metrics.Metrics) *ShareTokenService {
	return &ShareTokenService{db: db, metrics: m}
}

func (s *ShareTokenService) CreateToken(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, flags models.DisclosureFlags, callerID uuid.UUID) (*models.ShareToken, error) {
	if _, err := authorizeSharing(ctx, s.db.Pool, projectID, toolKey, callerID, true); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var st models.ShareToken
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO share_tokens (project_id, tool_key, scope_id, token, include_photos, include_notes, include_comments, include_source_url, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, project_id, tool_key, scope_id, token, include_photos, include_notes, include_comments, include_source_url, created_by, created_at
	`, projectID, toolKey, scopeID, token, flags.Photos, flags.Notes, flags.Comments, flags.SourceURL, callerID).Scan(
		&st.ID, &st.ProjectID, &st.ToolKey, &st.ScopeID, &st.Token,
		&st.Flags.Photos, &st.Flags.Notes, &st.Flags.Comments, &st.Flags.SourceURL,
		&st.CreatedBy, &st.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create share token: %w", err)
	}

	s.count("create")
	return &st, nil
}

// ResolveToken is public. A missing or revoked token is NotFound.
func (s *ShareTokenService) ResolveToken(ctx context.Context, token string) (*models.ResolvedShare, error) {
	if token == "" {
		s.resolved("not_found")
		return nil, ErrShareTokenNotFound
	}

	var r models.ResolvedShare
	err := s.db.Pool.QueryRow(ctx, `
		SELECT project_id, tool_key, scope_id, include_photos, include_notes, include_comments, include_source_url
		FROM share_tokens WHERE token = $1
	`, token).Scan(
		&r.ProjectID, &r.ToolKey, &r.ScopeID,
		&r.Flags.Photos, &r.Flags.Notes, &r.Flags.Comments, &r.Flags.SourceURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.resolved("not_found")
			return nil, ErrShareTokenNotFound
		}
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}

	s.resolved("ok")
	return &r, nil
}

func (s *ShareTokenService) RevokeToken(ctx context.Context, projectID uuid.UUID, toolKey string, tokenID, callerID uuid.UUID) error {
	if _, err := authorizeSharing(ctx, s.db.Pool, projectID, toolKey, callerID, true); err != nil {
		return err
	}

	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM share_tokens WHERE id = $1 AND project_id = $2 AND tool_key = $3
	`, tokenID, projectID, toolKey)
	if err != nil {
		return fmt.Errorf("failed to revoke share token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrShareTokenNotFound
	}

	s.count("revoke")
	return nil
}

func (s *ShareTokenService) ListTokens(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) ([]models.ShareToken, error) {
	if _, err := authorizeSharing(ctx, s.db.Pool, projectID, toolKey, callerID, false); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, project_id, tool_key, scope_id, token, include_photos, include_notes, include_comments, include_source_url, created_by, created_at
		FROM share_tokens
		WHERE project_id = $1 AND tool_key = $2
		ORDER BY created_at DESC
	`, projectID, toolKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list share tokens: %w", err)
	}
	defer rows.Close()

	tokens := []models.ShareToken{}
	for rows.Next() {
		var st models.ShareToken
		if err := rows.Scan(
			&st.ID, &st.ProjectID, &st.ToolKey, &st.ScopeID, &st.Token,
			&st.Flags.Photos, &st.Flags.Notes, &st.Flags.Comments, &st.Flags.SourceURL,
			&st.CreatedBy, &st.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share token: %w", err)
		}
		tokens = append(tokens, st)
	}
	return tokens, rows.Err()
}

func (s *ShareTokenService) count(op string) {
	if s.metrics != nil {
		s.metrics.ShareTokensTotal.WithLabelValues(op).Inc()
	}
}

func (s *ShareTokenService) resolved(result string) {
	if s.metrics != nil {
		s.metrics.ShareResolutionsTotal.WithLabelValues(result).Inc()
	}
}
