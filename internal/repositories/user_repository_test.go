package repositories_test

import (
	"context"
	"testing"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/testutil"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newReconcilingEngine(db *gorm.DB) *toggle.Engine {
	comments := repositories.NewPostgresCommentRepository(db)
	return toggle.NewEngine(repositories.NewPostgresRelationRepository(db),
		toggle.WithRecount(repositories.CommentsCountRecount, comments.RecountComments),
	)
}

func assertCountersInSync(t *testing.T, engine *toggle.Engine) {
	t.Helper()
	repaired, err := engine.Reconcile(context.Background())
	require.NoError(t, err)
	for name, n := range repaired {
		assert.Zerof(t, n, "%s counters diverged", name)
	}
}

func TestDeleteUserDetachesRelations(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	users := repositories.NewPostgresUserRepository(db)
	comments := repositories.NewPostgresCommentRepository(db)
	engine := newReconcilingEngine(db)

	leaving := testutil.CreateUser(t, db, "leaving")
	friend := testutil.CreateUser(t, db, "friend")
	post := testutil.CreatePost(t, db, friend.ID, "hello")
	project := testutil.CreateProject(t, db, friend.ID, "board")
	comment := &models.Comment{PostID: post.ID, UserID: friend.ID, Content: "mine"}
	require.NoError(t, comments.CreateComment(comment))

	toggles := []struct {
		actor, target uint
		kind          toggle.Kind
	}{
		{leaving.ID, friend.ID, toggle.KindFollow},
		{friend.ID, leaving.ID, toggle.KindFollow},
		{leaving.ID, post.ID, toggle.KindPostLike},
		{leaving.ID, post.ID, toggle.KindPostSave},
		{leaving.ID, comment.ID, toggle.KindCommentLike},
		{leaving.ID, project.ID, toggle.KindProjectLike},
	}
	for _, tc := range toggles {
		_, err := engine.Toggle(ctx, tc.actor, tc.target, tc.kind)
		require.NoError(t, err)
	}

	require.NoError(t, users.DeleteUser(leaving.ID))

	_, err := users.GetUserByID(leaving.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var f models.User
	testutil.Reload(t, db, &f, friend.ID)
	assert.Zero(t, f.FollowersCount)
	assert.Zero(t, f.FollowingCount)

	var p models.Post
	testutil.Reload(t, db, &p, post.ID)
	assert.Zero(t, p.LikesCount)
	assert.Zero(t, p.SavesCount)
	assert.Equal(t, int64(1), p.CommentsCount)

	var c models.Comment
	testutil.Reload(t, db, &c, comment.ID)
	assert.Zero(t, c.LikesCount)

	var pr models.Project
	testutil.Reload(t, db, &pr, project.ID)
	assert.Zero(t, pr.LikesCount)

	assertCountersInSync(t, engine)
}

func TestDeleteUnknownUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := repositories.NewPostgresUserRepository(db)

	assert.ErrorIs(t, users.DeleteUser(999), gorm.ErrRecordNotFound)
}

func TestTogglesAfterDeleteUserFindNoUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	users := repositories.NewPostgresUserRepository(db)
	engine := newReconcilingEngine(db)

	leaving := testutil.CreateUser(t, db, "leaving")
	friend := testutil.CreateUser(t, db, "friend")
	post := testutil.CreatePost(t, db, friend.ID, "hello")
	_, err := engine.Toggle(ctx, leaving.ID, post.ID, toggle.KindPostLike)
	require.NoError(t, err)

	require.NoError(t, users.DeleteUser(leaving.ID))

	_, err = engine.Toggle(ctx, leaving.ID, post.ID, toggle.KindPostLike)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = engine.Toggle(ctx, friend.ID, leaving.ID, toggle.KindFollow)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	assert.Zero(t, countRows(t, db, &models.Like{}, "user_id = ?", leaving.ID))
	assert.Zero(t, countRows(t, db, &models.Follow{}, "following_id = ?", leaving.ID))
	assertCountersInSync(t, engine)
}
