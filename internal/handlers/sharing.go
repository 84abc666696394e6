package handlers

import (
	"net/http"

	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// SharingHandler serves the access registry routes under
// /projects/:projectId/tools/:tool. RequireTool has already resolved the
// project and tool.
type SharingHandler struct {
	accessService AccessServiceInterface
}

func NewSharingHandler(accessService AccessServiceInterface) *SharingHandler {
	return &SharingHandler{accessService: accessService}
}

func (h *SharingHandler) List(c *drift.Context) {
	state, err := h.accessService.ListSharing(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, state)
}

func (h *SharingHandler) Grant(c *drift.Context) {
	var req dto.GrantAccessRequest
	if !bind(c, &req) {
		return
	}

	access, err := h.accessService.GrantDirect(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), req.UserID, req.Level, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, access)
}

func (h *SharingHandler) Revoke(c *drift.Context) {
	userID, ok := paramUUID(c, "userId", "user ID")
	if !ok {
		return
	}

	err := h.accessService.RevokeAccess(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), userID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "access revoked"})
}

// Leave removes the caller's own grant on the tool.
func (h *SharingHandler) Leave(c *drift.Context) {
	err := h.accessService.LeaveTool(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "left tool"})
}
