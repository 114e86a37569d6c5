package repositories

import (
	"github.com/anonto42/connect-hub/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines read operations on follow edges. Follow and
// unfollow go through the toggle engine.
type FollowRepository interface {
	GetFollowers(userID uint, page, limit int) ([]models.User, error)
	GetFollowing(userID uint, page, limit int) ([]models.User, error)
	GetFollowingIDs(userID uint) ([]uint, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) GetFollowers(userID uint, page, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("follower_id").Where("following_id = ?", userID),
	).Order("id").Offset((page - 1) * limit).Limit(limit).Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowing(userID uint, page, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("following_id").Where("follower_id = ?", userID),
	).Order("id").Offset((page - 1) * limit).Limit(limit).Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	return ids, err
}
