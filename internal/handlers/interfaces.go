package handlers

import (
	"context"
	"encoding/json"

	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	Ensure(ctx context.Context, id uuid.UUID, email, name string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProjectServiceInterface defines the methods used by handlers from ProjectService
type ProjectServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string, activeTools []string) (*models.Project, error)
	Get(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	Update(ctx context.Context, projectID, callerID uuid.UUID, upd services.ProjectUpdate) (*models.Project, error)
	Role(ctx context.Context, projectID, userID uuid.UUID) (string, error)
}

// AccessServiceInterface defines the methods used by handlers from AccessService
type AccessServiceInterface interface {
	ListSharing(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) (*models.SharingState, error)
	GrantDirect(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID, level models.AccessLevel, callerID uuid.UUID) (*models.ToolAccess, error)
	RevokeAccess(ctx context.Context, projectID uuid.UUID, toolKey string, userID, callerID uuid.UUID) error
	LeaveTool(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID) error
}

// InviteServiceInterface defines the methods used by handlers from InviteService
type InviteServiceInterface interface {
	CreateInvite(ctx context.Context, in services.CreateInviteInput) (*models.Invite, error)
	AcceptInvite(ctx context.Context, token string, principal authz.Principal) (*models.AcceptResult, error)
	RevokeInvite(ctx context.Context, projectID uuid.UUID, toolKey string, inviteID, callerID uuid.UUID) error
	GetInvite(ctx context.Context, token string) (*models.InviteDetails, error)
	ListPendingForEmail(ctx context.Context, email string) ([]models.InviteDetails, error)
}

// ShareTokenServiceInterface defines the methods used by handlers from ShareTokenService
type ShareTokenServiceInterface interface {
	CreateToken(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, flags models.DisclosureFlags, callerID uuid.UUID) (*models.ShareToken, error)
	ResolveToken(ctx context.Context, token string) (*models.ResolvedShare, error)
	RevokeToken(ctx context.Context, projectID uuid.UUID, toolKey string, tokenID, callerID uuid.UUID) error
	ListTokens(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) ([]models.ShareToken, error)
}

// ContentServiceInterface defines the methods used by handlers from ContentService
type ContentServiceInterface interface {
	Get(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID) (*models.ToolDocument, error)
	Save(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, data json.RawMessage, expectedVersion int, userID uuid.UUID) (*models.ToolDocument, error)
}

// Ensure services implement interfaces
var (
	_ UserServiceInterface       = (*services.UserService)(nil)
	_ ProjectServiceInterface    = (*services.ProjectService)(nil)
	_ AccessServiceInterface     = (*services.AccessService)(nil)
	_ InviteServiceInterface     = (*services.InviteService)(nil)
	_ ShareTokenServiceInterface = (*services.ShareTokenService)(nil)
	_ ContentServiceInterface    = (*services.ContentService)(nil)
)
