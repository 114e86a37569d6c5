package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	engine         *toggle.Engine
	likeRepository repositories.LikeRepository
	userRepository repositories.UserRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(engine *toggle.Engine, likeRepo repositories.LikeRepository, userRepo repositories.UserRepository) *LikeHandler {
	return &LikeHandler{
		engine:         engine,
		likeRepository: likeRepo,
		userRepository: userRepo,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.ToggleLike)
	g.GET("/posts/:post_id/likes", h.GetLikers)
	g.GET("/posts/:post_id/likes/count", h.GetLikeCount)
	g.GET("/posts/:post_id/likes/status", h.GetLikeStatus)
}

// ToggleLike likes the post, or removes the like if present
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	return toggleAndRespond(c, h.engine, toggle.KindPostLike, "post_id", "post", "liked")
}

// GetLikeCount returns the number of likes on a post
func (h *LikeHandler) GetLikeCount(c echo.Context) error {
	postID, err := parseIDParam(c, "post_id", "post")
	if err != nil {
		return err
	}

	count, err := h.engine.Count(c.Request().Context(), postID, toggle.KindPostLike)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// GetLikeStatus reports whether the caller liked the post
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	postID, err := parseIDParam(c, "post_id", "post")
	if err != nil {
		return err
	}

	liked, err := h.engine.IsActive(c.Request().Context(), currentUserID, postID, toggle.KindPostLike)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"liked": liked})
}

// GetLikers lists the users who liked the post
func (h *LikeHandler) GetLikers(c echo.Context) error {
	postID, err := parseIDParam(c, "post_id", "post")
	if err != nil {
		return err
	}

	likes, err := h.likeRepository.GetLikesByPostID(postID)
	if err != nil {
		return respondError(c, err, "")
	}

	ids := make([]uint, len(likes))
	for i, l := range likes {
		ids[i] = l.UserID
	}
	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return respondError(c, err, "")
	}

	likers := make([]models.UserCompact, 0, len(likes))
	for _, l := range likes {
		if u, ok := users[l.UserID]; ok {
			likers = append(likers, u.ToCompact())
		}
	}
	return success(c, http.StatusOK, echo.Map{"users": likers, "count": len(likers)})
}

// toggleAndRespond runs a toggle for the caller against the :param target and
// reports the new state under stateKey
func toggleAndRespond(c echo.Context, engine *toggle.Engine, kind toggle.Kind, param, label, stateKey string) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID, err := parseIDParam(c, param, label)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	result, err := engine.Toggle(ctx, currentUserID, targetID, kind)
	if err != nil {
		return respondError(c, err, label+" not found")
	}

	count, err := engine.Count(ctx, targetID, kind)
	if err != nil {
		return respondError(c, err, "")
	}

	return success(c, http.StatusOK, echo.Map{
		stateKey: result.Active,
		"count":  count,
	})
}
