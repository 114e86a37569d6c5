package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
	enricher         *postEnricher
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	likeRepo repositories.LikeRepository,
	savedPostRepo repositories.SavedPostRepository,
) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		followRepository: followRepo,
		enricher:         &postEnricher{users: userRepo, likes: likeRepo, saves: savedPostRepo},
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns the caller's and followed users' posts, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10)

	authorIDs, err := h.followRepository.GetFollowingIDs(currentUserID)
	if err != nil {
		return respondError(c, err, "")
	}
	authorIDs = append(authorIDs, currentUserID)

	posts, total, err := h.postRepository.GetFeedPosts(c.Request().Context(), authorIDs, (page-1)*limit, limit)
	if err != nil {
		return respondError(c, err, "")
	}

	enriched, err := h.enricher.enrich(currentUserID, posts)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enriched},
		"meta":    paginationMeta(page, limit, total),
	})
}
