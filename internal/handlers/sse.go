package handlers

import (
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/internal/sse"
	"github.com/m1z23r/drift/pkg/drift"
)

type SSEHandler struct {
	hub            *sse.Hub
	projectService ProjectServiceInterface
	metrics        *metrics.Metrics
}

func NewSSEHandler(hub *sse.Hub, projectService ProjectServiceInterface, m *metrics.Metrics) *SSEHandler {
	return &SSEHandler{
		hub:            hub,
		projectService: projectService,
		metrics:        m,
	}
}

// Connect streams sharing events for one project to its owner or a member.
// The stream ends once the caller's last grant on the project is revoked.
func (h *SSEHandler) Connect(c *drift.Context) {
	projectID, ok := paramUUID(c, "projectId", "project ID")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	role, err := h.projectService.Role(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if role == "" {
		respondError(c, services.ErrProjectNotFound)
		return
	}

	sseCtx := c.SSE()

	client := sse.NewClient(userID, projectID)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if h.metrics != nil {
		h.metrics.SSEConnectionsActive.Inc()
		defer h.metrics.SSEConnectionsActive.Dec()
	}

	if err := sseCtx.SendJSON(map[string]string{
		"type":       "connected",
		"client_id":  client.ID,
		"project_id": projectID.String(),
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
			if !h.hub.Subscribed(client.ID, projectID) {
				return
			}
		case <-done:
			return
		}
	}
}
