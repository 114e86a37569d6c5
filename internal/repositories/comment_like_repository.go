package repositories

import (
	"github.com/anonto42/connect-hub/backend/internal/models"
	"gorm.io/gorm"
)

// CommentLikeRepository defines read operations on comment likes
type CommentLikeRepository interface {
	GetLikedCommentIDs(userID uint, commentIDs []uint) (map[uint]bool, error)
}

type postgresCommentLikeRepository struct {
	db *gorm.DB
}

func NewPostgresCommentLikeRepository(db *gorm.DB) CommentLikeRepository {
	return &postgresCommentLikeRepository{db: db}
}

func (r *postgresCommentLikeRepository) GetLikedCommentIDs(userID uint, commentIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(commentIDs))
	if len(commentIDs) == 0 {
		return result, nil
	}
	var liked []uint
	err := r.db.Model(&models.CommentLike{}).Where("user_id = ? AND comment_id IN ?", userID, commentIDs).Pluck("comment_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}
