package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

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

const testBaseURL = "https://api.example.com"

type shareFixture struct {
	tokens  *testutil.MockShareTokenService
	content *testutil.MockContentService
	guard   *testutil.MockGuard
	client  *testutil.HTTPTestClient
	jwtSvc  *services.JWTService
}

func setupShareTokenTest(t *testing.T) *shareFixture {
	t.Helper()
	f := &shareFixture{
		tokens:  new(testutil.MockShareTokenService),
		content: new(testutil.MockContentService),
		guard:   new(testutil.MockGuard),
		jwtSvc:  testutil.TestJWTService(),
	}
	handler := NewShareTokenHandler(f.tokens, f.content, testBaseURL)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Get("/shared/:token", handler.Shared)

	read := app.Group("/projects/:projectId/tools/:tool")
	read.Use(middleware.Auth(f.jwtSvc))
	read.Use(middleware.RequireTool(f.guard, authz.OpRead))
	read.Get("/share-tokens", handler.List)

	manage := app.Group("/projects/:projectId/tools/:tool")
	manage.Use(middleware.Auth(f.jwtSvc))
	manage.Use(middleware.RequireTool(f.guard, authz.OpManageSharing))
	manage.Post("/share-tokens", handler.Create)
	manage.Delete("/share-tokens/:tokenId", handler.Revoke)

	f.client = testutil.NewHTTPTestClient(t, app)
	return f
}

func TestShareTokenHandler_Create(t *testing.T) {
	f := setupShareTokenTest(t)
	ownerID := uuid.New()
	projectID := uuid.New()
	boardID := uuid.New()
	flags := models.DisclosureFlags{Photos: true}

	f.guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpManageSharing).Return(nil)
	st := &models.ShareToken{ID: uuid.New(), ProjectID: projectID, ToolKey: testTool, ScopeID: &boardID, Token: "abc", Flags: flags, CreatedBy: ownerID, CreatedAt: time.Now()}
	f.tokens.On("CreateToken", mock.Anything, projectID, testTool, &boardID, flags, ownerID).Return(st, nil)

	rec := f.client.POST(toolPath(projectID, "/share-tokens"),
		dto.CreateShareTokenRequest{ScopeID: &boardID, IncludePhotos: true},
		bearer(generateTestToken(t, f.jwtSvc, ownerID, "owner@example.com")))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var response dto.ShareTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "abc", response.Token)
	assert.Equal(t, testBaseURL+"/api/v1/shared/abc", response.URL)
	assert.Equal(t, flags, response.Flags)
	f.tokens.AssertExpectations(t)
}

func TestShareTokenHandler_List(t *testing.T) {
	f := setupShareTokenTest(t)
	ownerID := uuid.New()
	projectID := uuid.New()

	f.guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpRead).Return(nil)
	f.tokens.On("ListTokens", mock.Anything, projectID, testTool, ownerID).Return([]models.ShareToken{{Token: "a"}, {Token: "b"}}, nil)

	rec := f.client.GET(toolPath(projectID, "/share-tokens"), bearer(generateTestToken(t, f.jwtSvc, ownerID, "owner@example.com")))

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.ShareTokenListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Tokens, 2)
}

func TestShareTokenHandler_Revoke_NotFound(t *testing.T) {
	f := setupShareTokenTest(t)
	ownerID := uuid.New()
	projectID := uuid.New()
	tokenID := uuid.New()

	f.guard.On("Authorize", mock.Anything, mock.Anything, projectID, testTool, authz.OpManageSharing).Return(nil)
	f.tokens.On("RevokeToken", mock.Anything, projectID, testTool, tokenID, ownerID).Return(services.ErrShareTokenNotFound)

	rec := f.client.DELETE(toolPath(projectID, "/share-tokens/"+tokenID.String()), bearer(generateTestToken(t, f.jwtSvc, ownerID, "owner@example.com")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareTokenHandler_Shared_RedactsContent(t *testing.T) {
	f := setupShareTokenTest(t)
	projectID := uuid.New()
	boardID := uuid.New()
	share := &models.ResolvedShare{
		ProjectID: projectID,
		ToolKey:   testTool,
		ScopeID:   &boardID,
		Flags:     models.DisclosureFlags{Photos: true},
	}
	doc := &models.ToolDocument{
		ProjectID: projectID,
		ToolKey:   testTool,
		ScopeID:   &boardID,
		Data: json.RawMessage(`{"title":"Tiles","items":[
			{"label":"Terracotta","photo_url":"https://img/1.jpg","notes":"too orange","source_url":"https://shop/1","comments":[{"body":"hm"}]}
		]}`),
		Version: 3,
	}

	f.tokens.On("ResolveToken", mock.Anything, "pub").Return(share, nil)
	f.content.On("Get", mock.Anything, projectID, testTool, &boardID).Return(doc, nil)

	rec := f.client.GET("/shared/pub", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		ToolName string                 `json:"tool_name"`
		Flags    models.DisclosureFlags `json:"flags"`
		Data     struct {
			Title string           `json:"title"`
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Mood Boards", response.ToolName)
	assert.Equal(t, share.Flags, response.Flags)
	assert.Equal(t, "Tiles", response.Data.Title)
	require.Len(t, response.Data.Items, 1)

	item := response.Data.Items[0]
	assert.Equal(t, "https://img/1.jpg", item["photo_url"])
	assert.NotContains(t, item, "notes")
	assert.NotContains(t, item, "source_url")
	assert.NotContains(t, item, "comments")
}

func TestShareTokenHandler_Shared_RevokedTokenFailsClosed(t *testing.T) {
	f := setupShareTokenTest(t)
	f.tokens.On("ResolveToken", mock.Anything, "gone").Return(nil, services.ErrShareTokenNotFound)

	rec := f.client.GET("/shared/gone", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.KindNotFound, decodeError(t, rec).Kind)
	f.content.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
