package handlers

import (
	"net/http"

	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type ProjectHandler struct {
	projectService ProjectServiceInterface
	userService    UserServiceInterface
}

func NewProjectHandler(projectService ProjectServiceInterface, userService UserServiceInterface) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		userService:    userService,
	}
}

func (h *ProjectHandler) List(c *drift.Context) {
	userID := middleware.GetUserID(c)

	projects, err := h.projectService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.ProjectListResponse{Projects: projects})
}

func (h *ProjectHandler) Create(c *drift.Context) {
	principal := middleware.GetPrincipal(c)

	var req dto.CreateProjectRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.userService.Ensure(ctx, principal.UserID, principal.Email, ""); err != nil {
		respondError(c, err)
		return
	}

	project, err := h.projectService.Create(ctx, principal.UserID, req.Name, req.ActiveTools)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) Get(c *drift.Context) {
	projectID, ok := paramUUID(c, "projectId", "project ID")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), projectID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Update(c *drift.Context) {
	projectID, ok := paramUUID(c, "projectId", "project ID")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if !bind(c, &req) {
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), projectID, middleware.GetUserID(c), services.ProjectUpdate{
		Name:        req.Name,
		Status:      req.Status,
		ActiveTools: req.ActiveTools,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, project)
}
