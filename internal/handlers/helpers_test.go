package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testTool = "mood_boards"

func generateTestToken(t *testing.T, jwtSvc *services.JWTService, userID uuid.UUID, email string) string {
	t.Helper()
	token, err := jwtSvc.GenerateAccessToken(userID, email)
	require.NoError(t, err)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": testutil.AuthHeader(token)}
}

func toolPath(projectID uuid.UUID, suffix string) string {
	return "/projects/" + projectID.String() + "/tools/" + testTool + suffix
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperr.Detail {
	t.Helper()
	var body apperr.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}
