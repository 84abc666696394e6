package handlers

import (
	"net/http"

	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// ContentHandler serves tool documents. Reads are mounted behind
// RequireTool(OpRead) and saves behind RequireTool(OpWrite).
type ContentHandler struct {
	contentService ContentServiceInterface
}

func NewContentHandler(contentService ContentServiceInterface) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

func (h *ContentHandler) Get(c *drift.Context) {
	scopeID, ok := queryScope(c)
	if !ok {
		return
	}

	doc, err := h.contentService.Get(c.Request.Context(), middleware.GetProjectID(c), middleware.GetToolKey(c), scopeID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, doc)
}

func (h *ContentHandler) Save(c *drift.Context) {
	scopeID, ok := queryScope(c)
	if !ok {
		return
	}

	var req dto.SaveContentRequest
	if !bind(c, &req) {
		return
	}

	doc, err := h.contentService.Save(c.Request.Context(),
		middleware.GetProjectID(c), middleware.GetToolKey(c), scopeID, req.Data, req.Version, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, doc)
}
