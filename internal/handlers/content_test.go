package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/dimitrije/toolshare/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupContentTest(t *testing.T) (*testutil.MockContentService, *testutil.MockGuard, *testutil.HTTPTestClient, *services.JWTService) {
	t.Helper()
	mockContent := new(testutil.MockContentService)
	guard := new(testutil.MockGuard)
	handler := NewContentHandler(mockContent)
	jwtSvc := testutil.TestJWTService()

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))

	read := app.Group("/projects/:projectId/tools/:tool")
	read.Use(middleware.RequireTool(guard, authz.OpRead))
	read.Get("/content", handler.Get)

	write := app.Group("/projects/:projectId/tools/:tool")
	write.Use(middleware.RequireTool(guard, authz.OpWrite))
	write.Patch("/content", handler.Save)

	return mockContent, guard, testutil.NewHTTPTestClient(t, app), jwtSvc
}

func TestContentHandler_Get_Scoped(t *testing.T) {
	mockContent, guard, client, jwtSvc := setupContentTest(t)
	userID := uuid.New()
	projectID := uuid.New()
	scopeID := uuid.New()

	guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpRead).Return(nil)
	doc := &models.ToolDocument{ProjectID: projectID, ToolKey: testTool, ScopeID: &scopeID, Data: json.RawMessage(`{"a":1}`), Version: 2}
	mockContent.On("Get", mock.Anything, projectID, testTool, &scopeID).Return(doc, nil)

	rec := client.GET(toolPath(projectID, "/content?scope_id="+scopeID.String()), bearer(generateTestToken(t, jwtSvc, userID, "v@example.com")))

	assert.Equal(t, http.StatusOK, rec.Code)
	var response models.ToolDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Version)
	assert.JSONEq(t, `{"a":1}`, string(response.Data))
}

func TestContentHandler_Get_InvalidScope(t *testing.T) {
	mockContent, guard, client, jwtSvc := setupContentTest(t)
	projectID := uuid.New()
	guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpRead).Return(nil)

	rec := client.GET(toolPath(projectID, "/content?scope_id=nope"), bearer(generateTestToken(t, jwtSvc, uuid.New(), "v@example.com")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockContent.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContentHandler_Save_ViewerDenied(t *testing.T) {
	mockContent, guard, client, jwtSvc := setupContentTest(t)
	projectID := uuid.New()
	guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpWrite).Return(authz.ErrNoEditAccess)

	rec := client.PATCH(toolPath(projectID, "/content"), dto.SaveContentRequest{Data: json.RawMessage(`{}`), Version: 1},
		bearer(generateTestToken(t, jwtSvc, uuid.New(), "v@example.com")))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "edit access required", decodeError(t, rec).Message)
	mockContent.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContentHandler_Save(t *testing.T) {
	mockContent, guard, client, jwtSvc := setupContentTest(t)
	userID := uuid.New()
	projectID := uuid.New()
	data := json.RawMessage(`{"items":[]}`)

	guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpWrite).Return(nil)
	mockContent.On("Save", mock.Anything, projectID, testTool, (*uuid.UUID)(nil), mock.Anything, 1, userID).
		Return(&models.ToolDocument{ProjectID: projectID, ToolKey: testTool, Data: data, Version: 2}, nil)

	rec := client.PATCH(toolPath(projectID, "/content"), dto.SaveContentRequest{Data: data, Version: 1},
		bearer(generateTestToken(t, jwtSvc, userID, "e@example.com")))

	assert.Equal(t, http.StatusOK, rec.Code)
	mockContent.AssertExpectations(t)
}

func TestContentHandler_Save_VersionConflict(t *testing.T) {
	mockContent, guard, client, jwtSvc := setupContentTest(t)
	userID := uuid.New()
	projectID := uuid.New()

	guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpWrite).Return(nil)
	mockContent.On("Save", mock.Anything, projectID, testTool, (*uuid.UUID)(nil), mock.Anything, 4, userID).Return(nil, services.ErrVersionConflict)

	rec := client.PATCH(toolPath(projectID, "/content"), dto.SaveContentRequest{Data: json.RawMessage(`{}`), Version: 4},
		bearer(generateTestToken(t, jwtSvc, userID, "e@example.com")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.ReasonVersionConflict, decodeError(t, rec).Reason)
}
