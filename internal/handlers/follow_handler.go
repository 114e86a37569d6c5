package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	engine           *toggle.Engine
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(engine *toggle.Engine, followRepo repositories.FollowRepository, userRepo repositories.UserRepository) *FollowHandler {
	return &FollowHandler{
		engine:           engine,
		followRepository: followRepo,
		userRepository:   userRepo,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.ToggleFollow)
	g.GET("/users/:id/follow/status", h.GetFollowStatus)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// ToggleFollow follows the user, or unfollows if already following
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}

	result, err := h.engine.Toggle(c.Request().Context(), currentUserID, targetID, toggle.KindFollow)
	if err != nil {
		return respondError(c, err, "User not found")
	}

	target, err := h.userRepository.GetUserByID(targetID)
	if err != nil {
		return respondError(c, err, "User not found")
	}

	return success(c, http.StatusOK, echo.Map{
		"following":       result.Active,
		"followers_count": target.FollowersCount,
	})
}

// GetFollowStatus reports whether the caller follows the user
func (h *FollowHandler) GetFollowStatus(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}

	following, err := h.engine.IsActive(c.Request().Context(), currentUserID, targetID, toggle.KindFollow)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"following": following})
}

// GetFollowers lists the users following :id
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	return h.listUsers(c, h.followRepository.GetFollowers, func(u *models.User) int64 { return u.FollowersCount })
}

// GetFollowing lists the users :id follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	return h.listUsers(c, h.followRepository.GetFollowing, func(u *models.User) int64 { return u.FollowingCount })
}

func (h *FollowHandler) listUsers(
	c echo.Context,
	fetch func(userID uint, page, limit int) ([]models.User, error),
	total func(u *models.User) int64,
) error {
	userID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20)

	user, err := h.userRepository.GetUserByID(userID)
	if err != nil {
		return respondError(c, err, "User not found")
	}

	users, err := fetch(userID, page, limit)
	if err != nil {
		return respondError(c, err, "")
	}

	compact := make([]models.UserCompact, len(users))
	for i := range users {
		compact[i] = users[i].ToCompact()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"users": compact},
		"meta":    paginationMeta(page, limit, total(user)),
	})
}
