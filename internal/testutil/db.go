// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database. A single connection is
// used so every query sees the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Project{},
		&models.Follow{},
		&models.Like{},
		&models.CommentLike{},
		&models.ProjectLike{},
		&models.SavedPost{},
		&models.Notification{},
	))
	return db
}

// CreateUser inserts a user named name with a unique email
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Name:        name,
		DisplayName: name,
		Email:       fmt.Sprintf("%s@example.com", name),
		Password:    "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreatePost(t *testing.T, db *gorm.DB, authorID uint, content string) *models.Post {
	t.Helper()
	post := &models.Post{UserID: authorID, Content: content}
	require.NoError(t, db.Create(post).Error)
	return post
}

func CreateComment(t *testing.T, db *gorm.DB, postID, authorID uint, content string) *models.Comment {
	t.Helper()
	comment := &models.Comment{PostID: postID, UserID: authorID, Content: content}
	require.NoError(t, db.Create(comment).Error)
	return comment
}

func CreateProject(t *testing.T, db *gorm.DB, ownerID uint, title string) *models.Project {
	t.Helper()
	project := &models.Project{OwnerID: ownerID, Title: title, Status: models.ProjectStatusOpen}
	require.NoError(t, db.Create(project).Error)
	return project
}

// Reload re-reads dest by primary key
func Reload(t *testing.T, db *gorm.DB, dest interface{}, id uint) {
	t.Helper()
	require.NoError(t, db.First(dest, id).Error)
}
