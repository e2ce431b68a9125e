package handler

import (
	"net/http"

	"github.com/gymkey/gymkey/internal/auth"
	"github.com/gymkey/gymkey/internal/handler/dto"
)

// UserHandler serves the authenticated user's own profile.
type UserHandler struct{}

// NewUserHandler creates a new UserHandler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}
