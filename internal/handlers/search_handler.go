package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const searchLimit = 20

// SearchHandler runs keyword search across users, posts and projects
type SearchHandler struct {
	userRepository    repositories.UserRepository
	postRepository    repositories.PostRepository
	projectRepository repositories.ProjectRepository
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(userRepo repositories.UserRepository, postRepo repositories.PostRepository, projectRepo repositories.ProjectRepository) *SearchHandler {
	return &SearchHandler{
		userRepository:    userRepo,
		postRepository:    postRepo,
		projectRepository: projectRepo,
	}
}

// RegisterSearchRoutes registers search routes
func (h *SearchHandler) RegisterSearchRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
}

// Search handles GET /search?q=&scope=all|users|posts|projects
func (h *SearchHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}

	scope := c.QueryParam("scope")
	if scope == "" {
		scope = "all"
	}
	switch scope {
	case "all", "users", "posts", "projects":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid search scope")
	}

	ctx := c.Request().Context()
	result := echo.Map{}

	if scope == "all" || scope == "users" {
		users, err := h.userRepository.SearchUsers(query, searchLimit)
		if err != nil {
			return respondError(c, err, "")
		}
		compact := make([]models.UserCompact, len(users))
		for i := range users {
			compact[i] = users[i].ToCompact()
		}
		result["users"] = compact
	}

	if scope == "all" || scope == "posts" {
		posts, err := h.postRepository.SearchPosts(ctx, query, searchLimit)
		if err != nil {
			return respondError(c, err, "")
		}
		result["posts"] = posts
	}

	if scope == "all" || scope == "projects" {
		projects, err := h.projectRepository.SearchProjects(ctx, query, searchLimit)
		if err != nil {
			return respondError(c, err, "")
		}
		result["projects"] = projects
	}

	return success(c, http.StatusOK, result)
}
