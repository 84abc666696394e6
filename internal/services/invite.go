package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrInviteNotFound        = apperr.NotFound("invite not found")
	ErrInvalidEmail          = apperr.Validation("a valid email address is required")
	ErrSelfInvite            = apperr.Conflict(apperr.ReasonSelfInvite, "you cannot invite yourself")
	ErrAlreadyHasAccess      = apperr.Conflict(apperr.ReasonAlreadyHasAccess, "this user already has access to the tool")
	ErrDuplicateInvite       = apperr.Conflict(apperr.ReasonDuplicateInvite, "a pending invite already exists for this email")
	ErrInviteAlreadyAccepted = apperr.Gone(apperr.ReasonAlreadyAccepted, "this invite has already been accepted")
	ErrInviteRevoked         = apperr.Gone(apperr.ReasonRevoked, "this invite has been revoked")
	ErrInviteExpired         = apperr.Gone(apperr.ReasonExpired, "this invite has expired")
	ErrInviteEmailMismatch   = apperr.New(apperr.KindForbidden, apperr.ReasonEmailMismatch, "this invite was sent to a different email address")
)

var validate = validator.New()

const allowlistSourceInvite = "invite"

type CreateInviteInput struct {
	ProjectID uuid.UUID
	ToolKey   string
	Email     string
	Level     models.AccessLevel
	Inviter   authz.Principal
}

// InviteService owns the invite state machine:
//
//	PENDING -> ACCEPTED | REVOKED | EXPIRED (read lazily from expires_at)
type InviteService struct {
	db         *database.DB
	access     *AccessService
	inviteTTL  time.Duration
	dispatcher outbox.Dispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewInviteService(db *database.DB, access *AccessService, cfg config.SharingConfig, dispatcher outbox.Dispatcher, m *metrics.Metrics) *InviteService {
	return &InviteService{
		db:         db,
		access:     access,
		inviteTTL:  cfg.InviteTTL,
		dispatcher: dispatcher,
		metrics:    m,
		now:        time.Now,
	}
}

// CreateInvite validates in order: email syntax, self-invite, existing access,
// duplicate pending invite, then the EDIT quota. The quota read and the insert
// happen under the (project, tool) lock so concurrent creations cannot both pass.
func (s *InviteService) CreateInvite(ctx context.Context, in CreateInviteInput) (*models.Invite, error) {
	if !in.Level.Valid() {
		return nil, ErrInvalidLevel
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	project, err := authorizeSharing(ctx, tx, in.ProjectID, in.ToolKey, in.Inviter.UserID, true)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, s.reject(ErrInvalidEmail)
	}

	inviter, err := inviterProfile(ctx, tx, in.Inviter)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(email, inviter.Email) {
		return nil, s.reject(ErrSelfInvite)
	}

	if err := lockQuota(ctx, tx, in.ProjectID, in.ToolKey); err != nil {
		return nil, err
	}

	var hasAccess bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tool_access ta
			INNER JOIN users u ON u.id = ta.user_id
			WHERE ta.project_id = $1 AND ta.tool_key = $2 AND lower(u.email) = $3
		)
	`, in.ProjectID, in.ToolKey, email).Scan(&hasAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing access: %w", err)
	}
	if hasAccess {
		return nil, s.reject(ErrAlreadyHasAccess)
	}

	if err := s.claimPendingSlot(ctx, tx, in.ProjectID, in.ToolKey, email); err != nil {
		return nil, err
	}

	if in.Level == models.LevelEdit {
		usage, err := s.access.CountEditUsage(ctx, tx, in.ProjectID, in.ToolKey, s.now())
		if err != nil {
			return nil, err
		}
		if usage.Total()+1 > s.access.MaxEditShares() {
			return nil, s.reject(ErrQuotaExceeded)
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var invite models.Invite
	err = tx.QueryRow(ctx, `
		INSERT INTO invites (project_id, tool_key, email, level, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, project_id, tool_key, email, level, token, status, invited_by, accepted_by, expires_at, created_at, updated_at
	`, in.ProjectID, in.ToolKey, email, in.Level, token, in.Inviter.UserID, s.now().Add(s.inviteTTL)).Scan(
		&invite.ID, &invite.ProjectID, &invite.ToolKey, &invite.Email, &invite.Level, &invite.Token,
		&invite.Status, &invite.InvitedBy, &invite.AcceptedBy, &invite.ExpiresAt, &invite.CreatedAt, &invite.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, s.reject(ErrDuplicateInvite)
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.InvitesCreatedTotal.WithLabelValues(string(invite.Level)).Inc()
	}

	s.dispatch(ctx, invite.ID,
		effect(outbox.KindAllowlistAdd, outbox.AllowlistEntry{
			InviteID: invite.ID,
			Email:    invite.Email,
			Source:   allowlistSourceInvite,
		}),
		effect(outbox.KindInviteNotify, outbox.InviteNotification{
			InviteID:    invite.ID,
			Email:       invite.Email,
			Token:       invite.Token,
			InviterName: inviter.Name,
			ProjectName: project.Name,
			ToolName:    models.ToolDisplayName(invite.ToolKey),
			Level:       invite.Level,
			ExpiresAt:   invite.ExpiresAt,
		}),
		effect(outbox.KindSharingEvent, outbox.SharingEvent{
			Type:      outbox.EventInviteCreated,
			ProjectID: invite.ProjectID,
			ToolKey:   invite.ToolKey,
			InviteID:  &invite.ID,
			Email:     invite.Email,
			Level:     invite.Level,
		}),
	)

	return &invite, nil
}

// claimPendingSlot fails when a live pending invite exists for the email and
// retires a stale one so the new invite can take the single pending slot.
func (s *InviteService) claimPendingSlot(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, toolKey, email string) error {
	var existingID uuid.UUID
	var expiresAt time.Time
	err := tx.QueryRow(ctx, `
		SELECT id, expires_at FROM invites
		WHERE project_id = $1 AND tool_key = $2 AND lower(email) = $3 AND status = 'pending'
		FOR UPDATE
	`, projectID, toolKey, email).Scan(&existingID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check pending invites: %w", err)
	}

	if !s.now().After(expiresAt) {
		return s.reject(ErrDuplicateInvite)
	}

	_, err = tx.Exec(ctx, `
		UPDATE invites SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, existingID)
	if err != nil {
		return fmt.Errorf("failed to retire expired invite: %w", err)
	}
	return nil
}

// AcceptInvite consumes a pending invite and grants its level to the caller.
// The status flip is a conditional update; only the call that flips it grants.
func (s *InviteService) AcceptInvite(ctx context.Context, token string, principal authz.Principal) (*models.AcceptResult, error) {
	if principal.Anonymous() {
		return nil, authz.ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invite, err := inviteByToken(ctx, tx, token)
	if err != nil {
		return nil, err
	}

	if err := s.checkAcceptable(invite); err != nil {
		return nil, err
	}

	if !strings.EqualFold(normalizeEmail(principal.Email), invite.Email) {
		return nil, s.reject(ErrInviteEmailMismatch)
	}

	project, err := loadProject(ctx, tx, invite.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.IsTrashed() {
		return nil, authz.ErrProjectInactive
	}

	result, err := tx.Exec(ctx, `
		UPDATE invites SET status = 'accepted', accepted_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND expires_at > $3
	`, invite.ID, principal.UserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to accept invite: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, s.lostRace(ctx, tx, invite.ID)
	}

	if _, err := s.access.GrantAccess(ctx, tx, invite.ProjectID, invite.ToolKey, principal.UserID, invite.Level, invite.InvitedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.InvitesAcceptedTotal.Inc()
	}

	userID := principal.UserID
	s.dispatch(ctx, invite.ID, effect(outbox.KindSharingEvent, outbox.SharingEvent{
		Type:      outbox.EventAccessGranted,
		ProjectID: invite.ProjectID,
		ToolKey:   invite.ToolKey,
		UserID:    &userID,
		InviteID:  &invite.ID,
		Email:     invite.Email,
		Level:     invite.Level,
	}))

	return &models.AcceptResult{
		ProjectID: invite.ProjectID,
		ToolKey:   invite.ToolKey,
		Level:     invite.Level,
	}, nil
}

func (s *InviteService) checkAcceptable(invite *models.Invite) error {
	switch invite.EffectiveStatus(s.now()) {
	case models.InviteAccepted:
		return s.reject(ErrInviteAlreadyAccepted)
	case models.InviteRevoked:
		return s.reject(ErrInviteRevoked)
	case models.InviteExpired:
		return s.reject(ErrInviteExpired)
	}
	return nil
}

// lostRace classifies an accept whose conditional update matched nothing.
func (s *InviteService) lostRace(ctx context.Context, q database.Querier, inviteID uuid.UUID) error {
	var invite models.Invite
	err := q.QueryRow(ctx, `
		SELECT status, expires_at FROM invites WHERE id = $1
	`, inviteID).Scan(&invite.Status, &invite.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to reload invite: %w", err)
	}

	if err := s.checkAcceptable(&invite); err != nil {
		return err
	}
	return s.reject(ErrInviteAlreadyAccepted)
}

// RevokeInvite withdraws a pending invite. Revoking an invite that is no
// longer pending is a successful no-op.
func (s *InviteService) RevokeInvite(ctx context.Context, projectID uuid.UUID, toolKey string, inviteID, callerID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := authorizeSharing(ctx, tx, projectID, toolKey, callerID, true); err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `
		UPDATE invites SET status = 'revoked', updated_at = NOW()
		WHERE id = $1 AND project_id = $2 AND tool_key = $3 AND status = 'pending'
	`, inviteID, projectID, toolKey)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM invites WHERE id = $1 AND project_id = $2 AND tool_key = $3)
		`, inviteID, projectID, toolKey).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check invite: %w", err)
		}
		if !exists {
			return ErrInviteNotFound
		}
		return nil
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.InvitesRevokedTotal.Inc()
	}
	s.dispatch(ctx, inviteID, effect(outbox.KindSharingEvent, outbox.SharingEvent{
		Type:      outbox.EventInviteRevoked,
		ProjectID: projectID,
		ToolKey:   toolKey,
		InviteID:  &inviteID,
	}))
	return nil
}

// GetInvite returns what an invitee needs to see before accepting. Public.
func (s *InviteService) GetInvite(ctx context.Context, token string) (*models.InviteDetails, error) {
	var d models.InviteDetails
	var invite models.Invite
	err := s.db.Pool.QueryRow(ctx, `
		SELECT i.id, i.project_id, p.name, i.tool_key, u.name, i.email, i.level, i.status, i.expires_at
		FROM invites i
		INNER JOIN projects p ON p.id = i.project_id
		INNER JOIN users u ON u.id = i.invited_by
		WHERE i.token = $1
	`, token).Scan(
		&d.ID, &d.ProjectID, &d.ProjectName, &d.ToolKey, &d.InviterName, &d.Email, &d.Level,
		&invite.Status, &invite.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	d.ToolName = models.ToolDisplayName(d.ToolKey)
	d.Status = invite.EffectiveStatus(s.now())
	d.ExpiresAt = invite.ExpiresAt
	return &d, nil
}

// ListPendingForEmail returns live invites addressed to email.
func (s *InviteService) ListPendingForEmail(ctx context.Context, email string) ([]models.InviteDetails, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT i.id, i.project_id, p.name, i.tool_key, u.name, i.email, i.level, i.status, i.expires_at
		FROM invites i
		INNER JOIN projects p ON p.id = i.project_id
		INNER JOIN users u ON u.id = i.invited_by
		WHERE lower(i.email) = $1 AND i.status = 'pending' AND i.expires_at > $2
		ORDER BY i.created_at DESC
	`, normalizeEmail(email), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []models.InviteDetails{}
	for rows.Next() {
		var d models.InviteDetails
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.ProjectName, &d.ToolKey, &d.InviterName, &d.Email, &d.Level, &d.Status, &d.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		d.ToolName = models.ToolDisplayName(d.ToolKey)
		invites = append(invites, d)
	}
	return invites, rows.Err()
}

func (s *InviteService) reject(err *apperr.Error) *apperr.Error {
	if s.metrics != nil && err.Reason != apperr.ReasonNone {
		s.metrics.InviteRejectionsTotal.WithLabelValues(string(err.Reason)).Inc()
	}
	return err
}

func (s *InviteService) dispatch(ctx context.Context, inviteID uuid.UUID, effects ...*outbox.Effect) {
	ready := make([]outbox.Effect, 0, len(effects))
	for _, e := range effects {
		if e == nil {
			logger.Error().Str("invite_id", inviteID.String()).Msg("dropping effect that could not be encoded")
			continue
		}
		ready = append(ready, *e)
	}
	s.dispatcher.Dispatch(ctx, ready...)
}

func effect(kind string, payload any) *outbox.Effect {
	e, err := outbox.NewEffect(kind, payload)
	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Msg("failed to encode effect")
		return nil
	}
	return &e
}

type inviterInfo struct {
	Email string
	Name  string
}

// inviterProfile prefers the stored profile and falls back to the token's email.
func inviterProfile(ctx context.Context, q database.Querier, p authz.Principal) (inviterInfo, error) {
	info := inviterInfo{Email: normalizeEmail(p.Email)}
	err := q.QueryRow(ctx, `SELECT email, name FROM users WHERE id = $1`, p.UserID).Scan(&info.Email, &info.Name)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return info, fmt.Errorf("failed to get inviter: %w", err)
	}
	if info.Name == "" {
		info.Name = displayNameFromEmail(info.Email)
	}
	return info, nil
}

func inviteByToken(ctx context.Context, q database.Querier, token string) (*models.Invite, error) {
	if token == "" {
		return nil, ErrInviteNotFound
	}

	var invite models.Invite
	err := q.QueryRow(ctx, `
		SELECT id, project_id, tool_key, email, level, status, invited_by, accepted_by, expires_at, created_at, updated_at
		FROM invites WHERE token = $1
	`, token).Scan(
		&invite.ID, &invite.ProjectID, &invite.ToolKey, &invite.Email, &invite.Level, &invite.Status,
		&invite.InvitedBy, &invite.AcceptedBy, &invite.ExpiresAt, &invite.CreatedAt, &invite.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return &invite, nil
}

func listPendingInvites(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey string, asOf time.Time) ([]models.Invite, error) {
	rows, err := q.Query(ctx, `
		SELECT id, project_id, tool_key, email, level, token, status, invited_by, accepted_by, expires_at, created_at, updated_at
		FROM invites
		WHERE project_id = $1 AND tool_key = $2 AND status = 'pending' AND expires_at > $3
		ORDER BY created_at
	`, projectID, toolKey, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		var i models.Invite
		if err := rows.Scan(
			&i.ID, &i.ProjectID, &i.ToolKey, &i.Email, &i.Level, &i.Token, &i.Status,
			&i.InvitedBy, &i.AcceptedBy, &i.ExpiresAt, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, i)
	}
	return invites, rows.Err()
}

// retirePendingInvites revokes every pending invite for email on the tool and
// returns their ids. Expired-but-pending rows are revoked too.
func retirePendingInvites(ctx context.Context, q database.Querier, projectID uuid.UUID, toolKey, email string) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		UPDATE invites SET status = 'revoked', updated_at = NOW()
		WHERE project_id = $1 AND tool_key = $2 AND lower(email) = $3 AND status = 'pending'
		RETURNING id
	`, projectID, toolKey, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to retire pending invites: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan invite id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
