package repositories_test

import (
	"context"
	"testing"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/testutil"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func commentsCount(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var post models.Post
	testutil.Reload(t, db, &post, postID)
	return post.CommentsCount
}

func TestCreateAndDeleteCommentAdjustCommentsCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewPostgresCommentRepository(db)
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	first := &models.Comment{PostID: post.ID, UserID: reader.ID, Content: "first"}
	second := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "second"}
	require.NoError(t, repo.CreateComment(first))
	require.NoError(t, repo.CreateComment(second))
	assert.Equal(t, int64(2), commentsCount(t, db, post.ID))

	require.NoError(t, repo.DeleteComment(first))
	assert.Equal(t, int64(1), commentsCount(t, db, post.ID))

	_, err := repo.GetCommentByID(first.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	t.Run("deleting twice reports not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.DeleteComment(first), gorm.ErrRecordNotFound)
		assert.Equal(t, int64(1), commentsCount(t, db, post.ID))
	})
}

func TestCreateCommentOnMissingPostRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewPostgresCommentRepository(db)
	reader := testutil.CreateUser(t, db, "reader")

	err := repo.CreateComment(&models.Comment{PostID: 4242, UserID: reader.ID, Content: "orphan"})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var rows int64
	require.NoError(t, db.Unscoped().Model(&models.Comment{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestDeleteCommentRemovesItsLikes(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repositories.NewPostgresCommentRepository(db)
	engine := toggle.NewEngine(repositories.NewPostgresRelationRepository(db))
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	comment := &models.Comment{PostID: post.ID, UserID: reader.ID, Content: "nice"}
	require.NoError(t, repo.CreateComment(comment))
	_, err := engine.Toggle(ctx, author.ID, comment.ID, toggle.KindCommentLike)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteComment(comment))

	var likes int64
	require.NoError(t, db.Model(&models.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&likes).Error)
	assert.Zero(t, likes)
}

func TestRecountCommentsRepairsDrift(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repositories.NewPostgresCommentRepository(db)
	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, "hello")
	quiet := testutil.CreatePost(t, db, author.ID, "no comments")

	kept := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "kept"}
	removed := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "removed"}
	require.NoError(t, repo.CreateComment(kept))
	require.NoError(t, repo.CreateComment(removed))
	require.NoError(t, repo.DeleteComment(removed))

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("comments_count", 9).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", quiet.ID).UpdateColumn("comments_count", 3).Error)

	repaired, err := repo.RecountComments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), repaired)
	assert.Equal(t, int64(1), commentsCount(t, db, post.ID))
	assert.Zero(t, commentsCount(t, db, quiet.ID))

	repaired, err = repo.RecountComments(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}
