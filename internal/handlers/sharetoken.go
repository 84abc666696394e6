package handlers

import (
	"fmt"
	"net/http"

	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/redact"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type ShareTokenHandler struct {
	shareTokenService ShareTokenServiceInterface
	contentService    ContentServiceInterface
	baseURL           string
}

func NewShareTokenHandler(shareTokenService ShareTokenServiceInterface, contentService ContentServiceInterface, baseURL string) *ShareTokenHandler {
	return &ShareTokenHandler{
		shareTokenService: shareTokenService,
		contentService:    contentService,
		baseURL:           baseURL,
	}
}

func (h *ShareTokenHandler) Create(c *drift.Context) {
	var req dto.CreateShareTokenRequest
	if !bind(c, &req) {
		return
	}

	st, err := h.shareTokenService.CreateToken(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), req.ScopeID, req.Flags(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, dto.ShareTokenResponse{ShareToken: *st, URL: h.shareURL(st.Token)})
}

func (h *ShareTokenHandler) List(c *drift.Context) {
	tokens, err := h.shareTokenService.ListTokens(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.ShareTokenListResponse{Tokens: tokens})
}

func (h *ShareTokenHandler) Revoke(c *drift.Context) {
	tokenID, ok := paramUUID(c, "tokenId", "share token ID")
	if !ok {
		return
	}

	err := h.shareTokenService.RevokeToken(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), tokenID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "share link revoked"})
}

// Shared serves the redacted document behind a share token to anonymous callers.
func (h *ShareTokenHandler) Shared(c *drift.Context) {
	ctx := c.Request.Context()

	share, err := h.shareTokenService.ResolveToken(ctx, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	doc, err := h.contentService.Get(ctx, share.ProjectID, share.ToolKey, share.ScopeID)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := redact.Apply(doc.Data, share.Flags)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.SharedContentResponse{
		ToolKey:  share.ToolKey,
		ToolName: models.ToolDisplayName(share.ToolKey),
		ScopeID:  share.ScopeID,
		Flags:    share.Flags,
		Data:     data,
	})
}

func (h *ShareTokenHandler) shareURL(token string) string {
	return fmt.Sprintf("%s/api/v1/shared/%s", h.baseURL, token)
}
