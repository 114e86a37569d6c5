package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	enricher       *postEnricher
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	likeRepo repositories.LikeRepository,
	savedPostRepo repositories.SavedPostRepository,
) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		enricher:       &postEnricher{users: userRepo, likes: likeRepo, saves: savedPostRepo},
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/users/:id/posts", h.GetUserPosts)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post := &models.Post{
		UserID:    currentUserID,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
	}
	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusCreated, post)
}

// GetPost retrieves a single post with its author and the caller's flags
func (h *PostHandler) GetPost(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	postID, err := parseIDParam(c, "id", "post")
	if err != nil {
		return err
	}

	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		return respondError(c, err, "Post not found")
	}

	enriched, err := h.enricher.enrich(currentUserID, []models.Post{*post})
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, enriched[0])
}

// GetUserPosts lists a user's posts, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	userID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10)

	posts, err := h.postRepository.GetPostsByUserID(c.Request().Context(), userID, (page-1)*limit, limit)
	if err != nil {
		return respondError(c, err, "")
	}

	enriched, err := h.enricher.enrich(currentUserID, posts)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"posts": enriched})
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if req.Content != "" {
		post.Content = req.Content
	}
	if req.ImageURLs != nil {
		post.ImageURLs = req.ImageURLs
	}

	if err := h.postRepository.UpdatePost(c.Request().Context(), post); err != nil {
		return respondError(c, err, "Post not found")
	}
	return success(c, http.StatusOK, post)
}

// DeletePost deletes a post with its comments, likes and saves
func (h *PostHandler) DeletePost(c echo.Context) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return err
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), post.ID); err != nil {
		return respondError(c, err, "Post not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PostHandler) ownedPost(c echo.Context) (*models.Post, error) {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return nil, err
	}
	postID, err := parseIDParam(c, "id", "post")
	if err != nil {
		return nil, err
	}

	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		return nil, respondError(c, err, "Post not found")
	}
	if post.UserID != currentUserID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this post")
	}
	return post, nil
}

// EnrichedPost is a post with author info and user-specific flags
type EnrichedPost struct {
	models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
	IsSaved bool               `json:"is_saved"`
}

type postEnricher struct {
	users repositories.UserRepository
	likes repositories.LikeRepository
	saves repositories.SavedPostRepository
}

func (e *postEnricher) enrich(viewerID uint, posts []models.Post) ([]EnrichedPost, error) {
	userIDs := make([]uint, 0, len(posts))
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		userIDs = append(userIDs, p.UserID)
		postIDs[i] = p.ID
	}

	authors, err := e.users.GetUsersByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	liked, err := e.likes.GetLikedPostIDs(viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	saved, err := e.saves.GetSavedPostIDs(viewerID, postIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedPost, len(posts))
	for i, p := range posts {
		enriched[i] = EnrichedPost{
			Post:    p,
			IsLiked: liked[p.ID],
			IsSaved: saved[p.ID],
		}
		if author, ok := authors[p.UserID]; ok {
			enriched[i].Author = author.ToCompact()
		}
	}
	return enriched, nil
}
