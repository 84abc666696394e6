package handlers

import (
	"net/http"

	"github.com/dimitrije/toolshare/internal/middleware"
	"github.com/m1z23r/drift/pkg/drift"
)

type UserHandler struct {
	userService UserServiceInterface
}

func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me records the caller on first sight and returns their user record.
func (h *UserHandler) Me(c *drift.Context) {
	principal := middleware.GetPrincipal(c)

	user, err := h.userService.Ensure(c.Request.Context(), principal.UserID, principal.Email, "")
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, user)
}
