package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrAccessNotFound = apperr.NotFound("user has no access to this tool")
	ErrOwnerAccess    = apperr.Conflict(apperr.ReasonOwnerAccess, "the project owner's access cannot be changed")
	ErrQuotaExceeded  = apperr.Conflict(apperr.ReasonQuotaExceeded, "edit access limit reached for this tool")
	ErrInvalidLevel   = apperr.Validation("level must be view or edit")
)

// AccessService owns membership rows and per-tool grants. MEMBER rows exist
// exactly when the user holds at least one grant on the project; every grant
// mutation maintains that inside its own transaction.
type AccessService struct {
	db            *database.DB
	maxEditShares int
	dispatcher    outbox.Dispatcher
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewAccessService(db *database.DB, cfg config.SharingConfig, dispatcher outbox.Dispatcher, m *metrics.Metrics) *AccessService {
	return &AccessService{
		db:            db,
		maxEditShares: cfg.MaxEditShares,
		dispatcher:    dispatcher,
		metrics:       m,
		now:           time.Now,
	}
}

func (s *AccessService) MaxEditShares() int {
	return s.maxEditShares
}

// ListSharing returns grants, pending invites and quota counters from one snapshot.
func (s *AccessService) ListSharing(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) (*models.SharingState, error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := authorizeSharing(ctx, tx, projectID, toolKey, callerID, false); err != nil {
		return nil, err
	}

	access, err := listAccess(ctx, tx, projectID, toolKey)
	if err != nil {
		return nil, err
	}

	invites, err := listPendingInvites(ctx, tx, projectID, toolKey, s.now())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	quota := models.QuotaUsage{EditLimit: s.maxEditShares}
	for _, a := range access {
		if a.Level == models.LevelEdit {
			quota.EditUsed++
		}
	}
	for _, inv := range invites {
		if inv.Level == models.LevelEdit {
			quota.EditPending++
		}
	}

	return &models.SharingState{
		ProjectID:      projectID,
		ToolKey:        toolKey,
		Access:         access,
		PendingInvites: invites,
		Quota:          quota,
	}, nil
}

// GrantAccess upserts the grant and the MEMBER row on the caller's transaction.
// It never touches an OWNER membership row.
func (s *AccessService) GrantAccess(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, userID uuid.UUID, level models.AccessLevel, grantedBy uuid.UUID) (*models.ToolAccess, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	if err := lockMembership(ctx, q, projectID, userID); err != nil {
		return nil, err
	}

	_, err := q.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID, models.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure membership: %w", err)
	}

	var access models.ToolAccess
	err = q.QueryRow(ctx, `
		INSERT INTO tool_access (project_id, tool_key, user_id, level, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, tool_key, user_id)
		DO UPDATE SET level = EXCLUDED.level, granted_by = EXCLUDED.granted_by, updated_at = NOW()
		RETURNING id, project_id, tool_key, user_id, level, granted_by, created_at, updated_at
	`, projectID, toolKey, userID, level, grantedBy).Scan(
		&access.ID, &access.ProjectID, &access.ToolKey, &access.UserID, &access.Level,
		&access.GrantedBy, &access.CreatedAt, &access.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant access: %w", err)
	}

	return &access, nil
}

// GrantDirect lets the owner grant or change a registered user's level without
// an invite. EDIT grants are quota-checked under the (project, tool) lock.
// Pending invites addressed to the user on this tool are revoked in the same
// transaction.
func (s *AccessService) GrantDirect(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID, level models.AccessLevel, callerID uuid.UUID) (*models.ToolAccess, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	project, err := authorizeSharing(ctx, tx, projectID, toolKey, callerID, true)
	if err != nil {
		return nil, err
	}
	if userID == project.OwnerID {
		return nil, ErrOwnerAccess
	}

	var email string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	if level == models.LevelEdit {
		if err := lockQuota(ctx, tx, projectID, toolKey); err != nil {
			return nil, err
		}
	}

	retired, err := retirePendingInvites(ctx, tx, projectID, toolKey, email)
	if err != nil {
		return nil, err
	}

	if level == models.LevelEdit {
		current, err := levelOn(ctx, tx, projectID, toolKey, userID)
		if err != nil {
			return nil, err
		}

		if current != models.LevelEdit {
			usage, err := s.CountEditUsage(ctx, tx, projectID, toolKey, s.now())
			if err != nil {
				return nil, err
			}
			if usage.Total() >= s.maxEditShares {
				s.rejected(apperr.ReasonQuotaExceeded)
				return nil, ErrQuotaExceeded
			}
		}
	}

	access, err := s.GrantAccess(ctx, tx, projectID, toolKey, userID, level, callerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i := range retired {
		if s.metrics != nil {
			s.metrics.InvitesRevokedTotal.Inc()
		}
		s.emit(ctx, outbox.SharingEvent{
			Type:      outbox.EventInviteRevoked,
			ProjectID: projectID,
			ToolKey:   toolKey,
			InviteID:  &retired[i],
			Email:     email,
		})
	}
	s.emit(ctx, outbox.SharingEvent{
		Type:      outbox.EventAccessGranted,
		ProjectID: projectID,
		ToolKey:   toolKey,
		UserID:    &userID,
		Level:     level,
	})

	return access, nil
}

// RevokeAccess deletes the grant and, if it was the user's last one on the
// project, their MEMBER row. The owner's access is not revocable.
func (s *AccessService) RevokeAccess(ctx context.Context, projectID uuid.UUID, toolKey string, userID, callerID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	project, err := authorizeSharing(ctx, tx, projectID, toolKey, callerID, true)
	if err != nil {
		return err
	}
	if userID == project.OwnerID {
		return ErrOwnerAccess
	}

	if err := s.removeGrant(ctx, tx, projectID, toolKey, userID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AccessRevokedTotal.Inc()
	}
	s.emit(ctx, outbox.SharingEvent{
		Type:      outbox.EventAccessRevoked,
		ProjectID: projectID,
		ToolKey:   toolKey,
		UserID:    &userID,
	})
	return nil
}

// LeaveTool drops the caller's own grant with the same membership cleanup.
func (s *AccessService) LeaveTool(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID) error {
	if !models.ValidToolKey(toolKey) {
		return ErrInvalidToolKey
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	project, err := loadProject(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if userID == project.OwnerID {
		return ErrOwnerAccess
	}

	if err := s.removeGrant(ctx, tx, projectID, toolKey, userID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.emit(ctx, outbox.SharingEvent{
		Type:      outbox.EventAccessRevoked,
		ProjectID: projectID,
		ToolKey:   toolKey,
		UserID:    &userID,
	})
	return nil
}

// CountEditUsage reads EDIT grants and pending EDIT invites still live at
// asOf on q. Callers that write based on the result must hold the quota lock.
func (s *AccessService) CountEditUsage(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, asOf time.Time) (models.QuotaUsage, error) {
	usage := models.QuotaUsage{EditLimit: s.maxEditShares}
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tool_access
				WHERE project_id = $1 AND tool_key = $2 AND level = 'edit'),
			(SELECT COUNT(*) FROM invites
				WHERE project_id = $1 AND tool_key = $2 AND level = 'edit'
				AND status = 'pending' AND expires_at > $3)
	`, projectID, toolKey, asOf).Scan(&usage.EditUsed, &usage.EditPending)
	if err != nil {
		return usage, fmt.Errorf("failed to count edit usage: %w", err)
	}
	return usage, nil
}

// Level returns the user's grant on the tool, or "" when there is none.
func (s *AccessService) Level(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID) (models.AccessLevel, error) {
	return levelOn(ctx, s.db.Pool, projectID, toolKey, userID)
}

func (s *AccessService) removeGrant(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, userID uuid.UUID) error {
	if err := lockMembership(ctx, q, projectID, userID); err != nil {
		return err
	}

	result, err := q.Exec(ctx, `
		DELETE FROM tool_access
		WHERE project_id = $1 AND tool_key = $2 AND user_id = $3
	`, projectID, toolKey, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccessNotFound
	}

	_, err = q.Exec(ctx, `
		DELETE FROM project_members
		WHERE project_id = $1 AND user_id = $2 AND role = $3
		AND NOT EXISTS (
			SELECT 1 FROM tool_access WHERE project_id = $1 AND user_id = $2
		)
	`, projectID, userID, models.RoleMember)
	if err != nil {
		return fmt.Errorf("failed to clean up membership: %w", err)
	}
	return nil
}

func (s *AccessService) emit(ctx context.Context, event outbox.SharingEvent) {
	effect, err := outbox.NewEffect(outbox.KindSharingEvent, event)
	if err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("failed to build sharing event")
		return
	}
	s.dispatcher.Dispatch(ctx, effect)
}

func (s *AccessService) rejected(reason apperr.Reason) {
	if s.metrics != nil {
		s.metrics.InviteRejectionsTotal.WithLabelValues(string(reason)).Inc()
	}
}

func levelOn(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, userID uuid.UUID) (models.AccessLevel, error) {
	var level models.AccessLevel
	err := q.QueryRow(ctx, `
		SELECT level FROM tool_access
		WHERE project_id = $1 AND tool_key = $2 AND user_id = $3
	`, projectID, toolKey, userID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get access level: %w", err)
	}
	return level, nil
}

func listAccess(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string) ([]models.ToolAccess, error) {
	rows, err := q.Query(ctx, `
		SELECT ta.id, ta.project_id, ta.tool_key, ta.user_id, ta.level, ta.granted_by,
			u.email, u.name, ta.created_at, ta.updated_at
		FROM tool_access ta
		INNER JOIN users u ON u.id = ta.user_id
		WHERE ta.project_id = $1 AND ta.tool_key = $2
		ORDER BY ta.created_at
	`, projectID, toolKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list access: %w", err)
	}
	defer rows.Close()

	access := []models.ToolAccess{}
	for rows.Next() {
		var a models.ToolAccess
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.ToolKey, &a.UserID, &a.Level, &a.GrantedBy,
			&a.UserEmail, &a.UserName, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access: %w", err)
		}
		access = append(access, a)
	}
	return access, rows.Err()
}

// lockMembership serializes grant and revoke for one user on one project.
func lockMembership(ctx context.Context, q database.Querier, projectID, userID uuid.UUID) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		"membership:"+projectID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to lock membership: %w", err)
	}
	return nil
}

// lockQuota serializes quota-checked writes for one (project, tool) pair.
func lockQuota(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		"quota:"+projectID.String(), toolKey)
	if err != nil {
		return fmt.Errorf("failed to lock quota: %w", err)
	}
	return nil
}
