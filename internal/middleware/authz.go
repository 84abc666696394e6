package middleware

import (
	"context"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	ProjectIDKey = "project_id"
	ToolKeyKey   = "tool_key"
)

type Authorizer interface {
	Authorize(ctx context.Context, p authz.Principal, projectID uuid.UUID, toolKey string, op authz.Operation) error
}

// RequireTool runs the guard for the :projectId and :tool route params before
// the handler. Must be mounted after Auth.
func RequireTool(guard Authorizer, op authz.Operation) drift.HandlerFunc {
	return func(c *drift.Context) {
		projectID, err := uuid.Parse(c.Param("projectId"))
		if err != nil {
			abort(c, apperr.Validation("invalid project ID"))
			return
		}

		toolKey := c.Param("tool")
		if !models.ValidToolKey(toolKey) {
			abort(c, apperr.Validation("invalid tool key"))
			return
		}

		if err := guard.Authorize(c.Request.Context(), GetPrincipal(c), projectID, toolKey, op); err != nil {
			abort(c, err)
			return
		}

		c.Set(ProjectIDKey, projectID)
		c.Set(ToolKeyKey, toolKey)
		c.Next()
	}
}

// GetProjectID returns the project resolved by RequireTool.
func GetProjectID(c *drift.Context) uuid.UUID {
	if v, ok := c.Get(ProjectIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetToolKey returns the tool resolved by RequireTool.
func GetToolKey(c *drift.Context) string {
	if v, ok := c.Get(ToolKeyKey); ok {
		if k, ok := v.(string); ok {
			return k
		}
	}
	return ""
}
