package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/labstack/echo/v4"
)

// ProjectHandler serves the connection hub board
type ProjectHandler struct {
	projectRepository repositories.ProjectRepository
	engine            *toggle.Engine
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projectRepo repositories.ProjectRepository, engine *toggle.Engine) *ProjectHandler {
	return &ProjectHandler{projectRepository: projectRepo, engine: engine}
}

// RegisterProjectRoutes registers project routes
func (h *ProjectHandler) RegisterProjectRoutes(g *echo.Group) {
	g.POST("/projects", h.CreateProject)
	g.GET("/projects", h.ListProjects)
	g.GET("/projects/:id", h.GetProject)
	g.PUT("/projects/:id/status", h.UpdateStatus)
	g.DELETE("/projects/:id", h.DeleteProject)
	g.POST("/projects/:id/like", h.ToggleLike)
}

func (h *ProjectHandler) CreateProject(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project := &models.Project{
		OwnerID:     currentUserID,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Status:      models.ProjectStatusOpen,
	}
	if err := h.projectRepository.CreateProject(c.Request().Context(), project); err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusCreated, project)
}

// ListProjects lists projects, optionally filtered by ?status=open|closed
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != models.ProjectStatusOpen && status != models.ProjectStatusClosed {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid status filter")
	}
	page, limit := pagination(c, 20)

	projects, total, err := h.projectRepository.ListProjects(c.Request().Context(), status, (page-1)*limit, limit)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"projects": projects},
		"meta":    paginationMeta(page, limit, total),
	})
}

func (h *ProjectHandler) GetProject(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	projectID, err := parseIDParam(c, "id", "project")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	project, err := h.projectRepository.GetProjectByID(ctx, projectID)
	if err != nil {
		return respondError(c, err, "Project not found")
	}

	liked, err := h.engine.IsActive(ctx, currentUserID, projectID, toggle.KindProjectLike)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"project": project, "is_liked": liked})
}

// UpdateStatus opens or closes a project. Only the owner may do this.
func (h *ProjectHandler) UpdateStatus(c echo.Context) error {
	project, err := h.ownedProject(c)
	if err != nil {
		return err
	}

	var req models.UpdateProjectStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.projectRepository.UpdateStatus(c.Request().Context(), project.ID, req.Status); err != nil {
		return respondError(c, err, "Project not found")
	}
	project.Status = req.Status
	return success(c, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	project, err := h.ownedProject(c)
	if err != nil {
		return err
	}

	if err := h.projectRepository.DeleteProject(c.Request().Context(), project.ID); err != nil {
		return respondError(c, err, "Project not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleLike likes the project, or removes the like if present
func (h *ProjectHandler) ToggleLike(c echo.Context) error {
	return toggleAndRespond(c, h.engine, toggle.KindProjectLike, "id", "project", "liked")
}

func (h *ProjectHandler) ownedProject(c echo.Context) (*models.Project, error) {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return nil, err
	}
	projectID, err := parseIDParam(c, "id", "project")
	if err != nil {
		return nil, err
	}

	project, err := h.projectRepository.GetProjectByID(c.Request().Context(), projectID)
	if err != nil {
		return nil, respondError(c, err, "Project not found")
	}
	if project.OwnerID != currentUserID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this project")
	}
	return project, nil
}
