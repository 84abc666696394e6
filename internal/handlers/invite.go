package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type InviteHandler struct {
	inviteService InviteServiceInterface
	userService   UserServiceInterface
	appURL        string
}

func NewInviteHandler(inviteService InviteServiceInterface, userService UserServiceInterface, appURL string) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		userService:   userService,
		appURL:        appURL,
	}
}

func (h *InviteHandler) Create(c *drift.Context) {
	var req dto.CreateInviteRequest
	if !bind(c, &req) {
		return
	}

	invite, err := h.inviteService.CreateInvite(c.Request.Context(), services.CreateInviteInput{
		ProjectID: middleware.GetProjectID(c),
		ToolKey:   middleware.GetToolKey(c),
		Email:     req.Email,
		Level:     req.Level,
		Inviter:   middleware.GetPrincipal(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, invite)
}

func (h *InviteHandler) Revoke(c *drift.Context) {
	inviteID, ok := paramUUID(c, "inviteId", "invite ID")
	if !ok {
		return
	}

	err := h.inviteService.RevokeInvite(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), inviteID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "invite revoked"})
}

// Get is public: anyone holding the token may see who invited them and to what.
func (h *InviteHandler) Get(c *drift.Context) {
	details, err := h.inviteService.GetInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, details)
}

func (h *InviteHandler) Accept(c *drift.Context) {
	principal := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	if _, err := h.userService.Ensure(ctx, principal.UserID, principal.Email, ""); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.inviteService.AcceptInvite(ctx, c.Param("token"), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, result)
}

// Mine lists live invites addressed to the caller's email.
func (h *InviteHandler) Mine(c *drift.Context) {
	invites, err := h.inviteService.ListPendingForEmail(c.Request.Context(), middleware.GetUserEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.InviteListResponse{Invites: invites})
}

// ViewInvite renders the landing page linked from the invite email.
func (h *InviteHandler) ViewInvite(c *drift.Context) {
	details, err := h.inviteService.GetInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			h.renderError(c, http.StatusNotFound, "Invite not found")
			return
		}
		respondError(c, err)
		return
	}

	switch details.Status {
	case models.InvitePending:
		h.renderInvitePage(c, details)
	case models.InviteAccepted:
		h.renderMessage(c, "This invite has already been accepted")
	case models.InviteRevoked:
		h.renderError(c, http.StatusGone, "This invite has been revoked")
	default:
		h.renderError(c, http.StatusGone, "This invite has expired")
	}
}

func (h *InviteHandler) renderInvitePage(c *drift.Context, d *models.InviteDetails) {
	access := "view"
	if d.Level == models.LevelEdit {
		access = "edit"
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Invitation</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 400px; margin: 50px auto; padding: 20px; text-align: center; }
        h1 { color: #333; }
        p { color: #666; margin: 20px 0; }
        .project-name { font-weight: bold; color: #333; }
        .hint { font-size: 14px; }
        a.accept { display: inline-block; padding: 12px 24px; font-size: 16px; border-radius: 6px; background: #22c55e; color: white; text-decoration: none; }
        a.accept:hover { background: #16a34a; }
    </style>
</head>
<body>
    <h1>Invitation</h1>
    <p><strong>%s</strong> invited you to %s <strong>%s</strong> in</p>
    <p class="project-name">%s</p>
    <p class="hint">Sign in as %s to accept.</p>
    <a class="accept" href="%s">Open and accept</a>
</body>
</html>`,
		html.EscapeString(d.InviterName),
		access,
		html.EscapeString(d.ToolName),
		html.EscapeString(d.ProjectName),
		html.EscapeString(d.Email),
		html.EscapeString(h.acceptURL(c.Param("token"))),
	)

	_ = c.HTML(http.StatusOK, page)
}

func (h *InviteHandler) acceptURL(token string) string {
	return fmt.Sprintf("%s/invites/%s", h.appURL, token)
}

func (h *InviteHandler) renderMessage(c *drift.Context, message string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Invitation</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 400px; margin: 50px auto; padding: 20px; text-align: center; }
        h1 { color: #22c55e; }
        p { color: #666; }
    </style>
</head>
<body>
    <h1>%s</h1>
</body>
</html>`, html.EscapeString(message))

	_ = c.HTML(http.StatusOK, page)
}

func (h *InviteHandler) renderError(c *drift.Context, status int, message string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Error</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 400px; margin: 50px auto; padding: 20px; text-align: center; }
        h1 { color: #ef4444; }
        p { color: #666; }
    </style>
</head>
<body>
    <h1>Error</h1>
    <p>%s</p>
</body>
</html>`, html.EscapeString(message))

	_ = c.HTML(status, page)
}
