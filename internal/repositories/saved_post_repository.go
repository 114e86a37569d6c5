package repositories

import (
	"github.com/anonto42/connect-hub/backend/internal/models"
	"gorm.io/gorm"
)

// SavedPostRepository defines read operations on saved posts. Saving and
// unsaving go through the toggle engine.
type SavedPostRepository interface {
	GetSavedPostsByUser(userID uint, page, limit int) ([]models.Post, error)
	GetSavedPostIDs(userID uint, postIDs []uint) (map[uint]bool, error)
}

// PostgresSavedPostRepository implements SavedPostRepository
type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

func (r *PostgresSavedPostRepository) GetSavedPostsByUser(userID uint, page, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Model(&models.Post{}).
		Joins("JOIN saved_posts ON saved_posts.post_id = posts.id").
		Where("saved_posts.user_id = ?", userID).
		Order("saved_posts.created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *PostgresSavedPostRepository) GetSavedPostIDs(userID uint, postIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var saved []uint
	err := r.db.Model(&models.SavedPost{}).Where("user_id = ? AND post_id IN ?", userID, postIDs).Pluck("post_id", &saved).Error
	if err != nil {
		return nil, err
	}
	for _, id := range saved {
		result[id] = true
	}
	return result, nil
}
