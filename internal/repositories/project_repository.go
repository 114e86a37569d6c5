package repositories

import (
	"context"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"gorm.io/gorm"
)

// ProjectRepository defines operations on the connection hub board
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProjectByID(ctx context.Context, id uint) (*models.Project, error)
	ListProjects(ctx context.Context, status string, skip, limit int) ([]models.Project, int64, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	DeleteProject(ctx context.Context, id uint) error
	SearchProjects(ctx context.Context, query string, limit int) ([]models.Project, error)
}

// PostgresProjectRepository implements ProjectRepository for PostgreSQL
type PostgresProjectRepository struct {
	db *gorm.DB
}

// NewPostgresProjectRepository creates a new PostgresProjectRepository
func NewPostgresProjectRepository(db *gorm.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{db: db}
}

func (r *PostgresProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *PostgresProjectRepository) GetProjectByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects lists projects newest first, optionally filtered by status
func (r *PostgresProjectRepository) ListProjects(ctx context.Context, status string, skip, limit int) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Project{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Offset(skip).Limit(limit).Find(&projects).Error
	return projects, total, err
}

func (r *PostgresProjectRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteProject deletes a project and its likes
func (r *PostgresProjectRepository) DeleteProject(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectLike{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Project{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SearchProjects matches the keyword against title and description
func (r *PostgresProjectRepository) SearchProjects(ctx context.Context, query string, limit int) ([]models.Project, error) {
	var projects []models.Project
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", pattern, pattern).
		Order("created_at DESC, id DESC").Limit(limit).
		Find(&projects).Error
	return projects, err
}
