package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
	engine         *toggle.Engine
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, engine *toggle.Engine) *UserHandler {
	return &UserHandler{userRepository: userRepo, engine: engine}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteUser)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns another user's profile and whether the caller follows them
func (h *UserHandler) GetUser(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(id)
	if err != nil {
		return respondError(c, err, "User profile not found")
	}

	isFollowing := false
	if id != currentUserID {
		isFollowing, err = h.engine.IsActive(c.Request().Context(), currentUserID, id, toggle.KindFollow)
		if err != nil {
			return respondError(c, err, "")
		}
	}

	return success(c, http.StatusOK, echo.Map{"user": user, "is_following": isFollowing})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return respondError(c, err, "User profile not found")
	}
	return success(c, http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return respondError(c, err, "User profile not found")
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if req.Age != 0 {
		user.Age = req.Age
	}

	if err := h.userRepository.UpdateUser(user); err != nil {
		return respondError(c, err, "User profile not found")
	}
	return success(c, http.StatusOK, user)
}

// DeleteUser deletes the authenticated user's account along with their
// follows, likes and saves
func (h *UserHandler) DeleteUser(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.userRepository.DeleteUser(currentUserID); err != nil {
		return respondError(c, err, "User profile not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchUsers finds users by name or email
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}

	users, err := h.userRepository.SearchUsers(query, 20)
	if err != nil {
		return respondError(c, err, "")
	}

	compact := make([]models.UserCompact, len(users))
	for i := range users {
		compact[i] = users[i].ToCompact()
	}
	return success(c, http.StatusOK, echo.Map{"users": compact})
}
