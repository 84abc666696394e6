package dto

import "github.com/dimitrije/toolshare/internal/models"

type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	ActiveTools []string `json:"active_tools,omitempty" validate:"omitempty,dive,required"`
}

// UpdateProjectRequest applies only the fields that are present.
type UpdateProjectRequest struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,max=255"`
	Status      *models.ProjectStatus `json:"status,omitempty"`
	ActiveTools *[]string             `json:"active_tools,omitempty"`
}

type ProjectListResponse struct {
	Projects []models.Project `json:"projects"`
}
