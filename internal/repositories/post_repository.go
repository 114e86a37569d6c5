package repositories

import (
	"context"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations. Like, save
// and comment counters are maintained elsewhere and never written here.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint, skip, limit int) ([]models.Post, error)
	GetFeedPosts(ctx context.Context, authorIDs []uint, skip, limit int) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id uint) error
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
}

// PostgresPostRepository implements PostRepository for PostgreSQL
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// CreatePost creates a new post
func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// GetPostByID returns gorm.ErrRecordNotFound when the post does not exist
func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostsByUserID retrieves posts by a specific user, newest first
func (r *PostgresPostRepository) GetPostsByUserID(ctx context.Context, userID uint, skip, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Offset(skip).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// GetFeedPosts returns posts authored by any of authorIDs with the total count
func (r *PostgresPostRepository) GetFeedPosts(ctx context.Context, authorIDs []uint, skip, limit int) ([]models.Post, int64, error) {
	var posts []models.Post
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Where("user_id IN ?", authorIDs).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Where("user_id IN ?", authorIDs).
		Order("created_at DESC, id DESC").Offset(skip).Limit(limit).
		Find(&posts).Error
	return posts, total, err
}

// UpdatePost updates the editable fields of a post
func (r *PostgresPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Model(post).Select("content", "image_urls").Updates(post).Error
}

// DeletePost deletes a post together with its likes, saves, comments and
// comment likes
func (r *PostgresPostRepository) DeletePost(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRow(tx, &models.Post{}, id); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SearchPosts does a case-insensitive keyword match on post content
func (r *PostgresPostRepository) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Where("LOWER(content) LIKE LOWER(?)", "%"+query+"%").
		Order("created_at DESC, id DESC").Limit(limit).
		Find(&posts).Error
	return posts, err
}
