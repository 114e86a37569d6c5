package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmark HTTP requests
type SavedPostHandler struct {
	engine              *toggle.Engine
	savedPostRepository repositories.SavedPostRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(engine *toggle.Engine, savedPostRepo repositories.SavedPostRepository) *SavedPostHandler {
	return &SavedPostHandler{engine: engine, savedPostRepository: savedPostRepo}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/save", h.ToggleSave)
	g.GET("/saved-posts", h.GetSavedPosts)
}

// ToggleSave saves the post, or unsaves it if already saved
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	return toggleAndRespond(c, h.engine, toggle.KindPostSave, "post_id", "post", "saved")
}

// GetSavedPosts returns the caller's saved posts, most recently saved first
func (h *SavedPostHandler) GetSavedPosts(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20)

	posts, err := h.savedPostRepository.GetSavedPostsByUser(currentUserID, page, limit)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"posts": posts})
}
