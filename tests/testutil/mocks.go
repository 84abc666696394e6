package testutil

import (
	"context"
	"encoding/json"

	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Ensure(ctx context.Context, id uuid.UUID, email, name string) (*models.User, error) {
	args := m.Called(ctx, id, email, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockProjectService mocks the ProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, ownerID uuid.UUID, name string, activeTools []string) (*models.Project, error) {
	args := m.Called(ctx, ownerID, name, activeTools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, projectID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Project), args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, projectID, callerID uuid.UUID, upd services.ProjectUpdate) (*models.Project, error) {
	args := m.Called(ctx, projectID, callerID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) Role(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, projectID, userID)
	return args.String(0), args.Error(1)
}

// MockAccessService mocks the AccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) ListSharing(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) (*models.SharingState, error) {
	args := m.Called(ctx, projectID, toolKey, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SharingState), args.Error(1)
}

func (m *MockAccessService) GrantDirect(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID, level models.AccessLevel, callerID uuid.UUID) (*models.ToolAccess, error) {
	args := m.Called(ctx, projectID, toolKey, userID, level, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolAccess), args.Error(1)
}

func (m *MockAccessService) RevokeAccess(ctx context.Context, projectID uuid.UUID, toolKey string, userID, callerID uuid.UUID) error {
	args := m.Called(ctx, projectID, toolKey, userID, callerID)
	return args.Error(0)
}

func (m *MockAccessService) LeaveTool(ctx context.Context, projectID uuid.UUID, toolKey string, userID uuid.UUID) error {
	args := m.Called(ctx, projectID, toolKey, userID)
	return args.Error(0)
}

// MockInviteService mocks the InviteService
type MockInviteService struct {
	mock.Mock
}

func (m *MockInviteService) CreateInvite(ctx context.Context, in services.CreateInviteInput) (*models.Invite, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invite), args.Error(1)
}

func (m *MockInviteService) AcceptInvite(ctx context.Context, token string, principal authz.Principal) (*models.AcceptResult, error) {
	args := m.Called(ctx, token, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AcceptResult), args.Error(1)
}

func (m *MockInviteService) RevokeInvite(ctx context.Context, projectID uuid.UUID, toolKey string, inviteID, callerID uuid.UUID) error {
	args := m.Called(ctx, projectID, toolKey, inviteID, callerID)
	return args.Error(0)
}

func (m *MockInviteService) GetInvite(ctx context.Context, token string) (*models.InviteDetails, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InviteDetails), args.Error(1)
}

func (m *MockInviteService) ListPendingForEmail(ctx context.Context, email string) ([]models.InviteDetails, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InviteDetails), args.Error(1)
}

// MockShareTokenService mocks the ShareTokenService
type MockShareTokenService struct {
	mock.Mock
}

func (m *MockShareTokenService) CreateToken(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, flags models.DisclosureFlags, callerID uuid.UUID) (*models.ShareToken, error) {
	args := m.Called(ctx, projectID, toolKey, scopeID, flags, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShareToken), args.Error(1)
}

func (m *MockShareTokenService) ResolveToken(ctx context.Context, token string) (*models.ResolvedShare, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolvedShare), args.Error(1)
}

func (m *MockShareTokenService) RevokeToken(ctx context.Context, projectID uuid.UUID, toolKey string, tokenID, callerID uuid.UUID) error {
	args := m.Called(ctx, projectID, toolKey, tokenID, callerID)
	return args.Error(0)
}

func (m *MockShareTokenService) ListTokens(ctx context.Context, projectID uuid.UUID, toolKey string, callerID uuid.UUID) ([]models.ShareToken, error) {
	args := m.Called(ctx, projectID, toolKey, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShareToken), args.Error(1)
}

// MockContentService mocks the ContentService
type MockContentService struct {
	mock.Mock
}

func (m *MockContentService) Get(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID) (*models.ToolDocument, error) {
	args := m.Called(ctx, projectID, toolKey, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolDocument), args.Error(1)
}

func (m *MockContentService) Save(ctx context.Context, projectID uuid.UUID, toolKey string, scopeID *uuid.UUID, data json.RawMessage, expectedVersion int, userID uuid.UUID) (*models.ToolDocument, error) {
	args := m.Called(ctx, projectID, toolKey, scopeID, data, expectedVersion, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ToolDocument), args.Error(1)
}

// MockGuard mocks the authorization guard consulted by RequireTool
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Authorize(ctx context.Context, p authz.Principal, projectID uuid.UUID, toolKey string, op authz.Operation) error {
	args := m.Called(ctx, p, projectID, toolKey, op)
	return args.Error(0)
}
