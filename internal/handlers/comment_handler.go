package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CommentNotifier is told about every new comment
type CommentNotifier interface {
	CommentAdded(ctx context.Context, comment *models.Comment) error
}

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository     repositories.CommentRepository
	commentLikeRepository repositories.CommentLikeRepository
	userRepository        repositories.UserRepository
	engine                *toggle.Engine
	notifier              CommentNotifier
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(
	commentRepo repositories.CommentRepository,
	commentLikeRepo repositories.CommentLikeRepository,
	userRepo repositories.UserRepository,
	engine *toggle.Engine,
	notifier CommentNotifier,
) *CommentHandler {
	return &CommentHandler{
		commentRepository:     commentRepo,
		commentLikeRepository: commentLikeRepo,
		userRepository:        userRepo,
		engine:                engine,
		notifier:              notifier,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
	g.PUT("/comments/:id", h.UpdateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
	g.POST("/comments/:id/like", h.ToggleCommentLike)
}

// EnrichedComment is a comment with its author and the caller's like state
type EnrichedComment struct {
	models.Comment
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// CreateComment creates a new comment on a post and notifies the post author
func (h *CommentHandler) CreateComment(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	postID, err := parseIDParam(c, "post_id", "post")
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  currentUserID,
		Content: req.Content,
	}
	if err := h.commentRepository.CreateComment(comment); err != nil {
		return respondError(c, err, "Post not found")
	}

	if h.notifier != nil {
		if err := h.notifier.CommentAdded(c.Request().Context(), comment); err != nil {
			logger.Log.Warn("comment notification failed",
				zap.Uint("comment_id", comment.ID),
				zap.Error(err),
			)
		}
	}

	return success(c, http.StatusCreated, comment)
}

// GetCommentsByPostID retrieves all comments for a specific post
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	postID, err := parseIDParam(c, "post_id", "post")
	if err != nil {
		return err
	}

	comments, err := h.commentRepository.GetCommentsByPostID(postID)
	if err != nil {
		return respondError(c, err, "")
	}

	userIDs := make([]uint, 0, len(comments))
	commentIDs := make([]uint, len(comments))
	for i, cm := range comments {
		userIDs = append(userIDs, cm.UserID)
		commentIDs[i] = cm.ID
	}

	authors, err := h.userRepository.GetUsersByIDs(userIDs)
	if err != nil {
		return respondError(c, err, "")
	}
	liked, err := h.commentLikeRepository.GetLikedCommentIDs(currentUserID, commentIDs)
	if err != nil {
		return respondError(c, err, "")
	}

	enriched := make([]EnrichedComment, len(comments))
	for i, cm := range comments {
		enriched[i] = EnrichedComment{Comment: cm, IsLiked: liked[cm.ID]}
		if author, ok := authors[cm.UserID]; ok {
			enriched[i].Author = author.ToCompact()
		}
	}
	return success(c, http.StatusOK, echo.Map{"comments": enriched})
}

// UpdateComment updates an existing comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	comment, err := h.ownedComment(c)
	if err != nil {
		return err
	}

	var req models.UpdateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment.Content = req.Content
	if err := h.commentRepository.UpdateComment(comment); err != nil {
		return respondError(c, err, "Comment not found")
	}
	return success(c, http.StatusOK, comment)
}

// DeleteComment deletes a comment
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	comment, err := h.ownedComment(c)
	if err != nil {
		return err
	}

	if err := h.commentRepository.DeleteComment(comment); err != nil {
		return respondError(c, err, "Comment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleCommentLike likes the comment, or removes the like if present
func (h *CommentHandler) ToggleCommentLike(c echo.Context) error {
	return toggleAndRespond(c, h.engine, toggle.KindCommentLike, "id", "comment", "liked")
}

// ownedComment loads :id and checks that the caller wrote it
func (h *CommentHandler) ownedComment(c echo.Context) (*models.Comment, error) {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return nil, err
	}
	commentID, err := parseIDParam(c, "id", "comment")
	if err != nil {
		return nil, err
	}

	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		return nil, respondError(c, err, "Comment not found")
	}
	if comment.UserID != currentUserID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this comment")
	}
	return comment, nil
}
