package toggle_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/testutil"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newEngine(t *testing.T, opts ...toggle.Option) (*toggle.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return toggle.NewEngine(repositories.NewPostgresRelationRepository(db), opts...), db
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var u models.User
	testutil.Reload(t, db, &u, id)
	return &u
}

func reloadPost(t *testing.T, db *gorm.DB, id uint) *models.Post {
	t.Helper()
	var p models.Post
	testutil.Reload(t, db, &p, id)
	return &p
}

func TestFollowToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	x := testutil.CreateUser(t, db, "x")
	y := testutil.CreateUser(t, db, "y")

	res, err := engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, int64(1), reloadUser(t, db, y.ID).FollowersCount)
	assert.Equal(t, int64(1), reloadUser(t, db, x.ID).FollowingCount)

	active, err := engine.IsActive(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.True(t, active)

	res, err = engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Zero(t, reloadUser(t, db, y.ID).FollowersCount)
	assert.Zero(t, reloadUser(t, db, x.ID).FollowingCount)

	count, err := engine.Count(ctx, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestToggleEveryKindKeepsCounterInSync(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")
	comment := testutil.CreateComment(t, db, post.ID, author.ID, "first")
	project := testutil.CreateProject(t, db, author.ID, "hub")

	tests := []struct {
		kind     toggle.Kind
		targetID uint
		counter  func() int64
	}{
		{toggle.KindPostLike, post.ID, func() int64 { return reloadPost(t, db, post.ID).LikesCount }},
		{toggle.KindPostSave, post.ID, func() int64 { return reloadPost(t, db, post.ID).SavesCount }},
		{toggle.KindCommentLike, comment.ID, func() int64 {
			var c models.Comment
			testutil.Reload(t, db, &c, comment.ID)
			return c.LikesCount
		}},
		{toggle.KindProjectLike, project.ID, func() int64 {
			var p models.Project
			testutil.Reload(t, db, &p, project.ID)
			return p.LikesCount
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res, err := engine.Toggle(ctx, reader.ID, tt.targetID, tt.kind)
			require.NoError(t, err)
			assert.True(t, res.Active)
			assert.Equal(t, int64(1), tt.counter())

			count, err := engine.Count(ctx, tt.targetID, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			res, err = engine.Toggle(ctx, reader.ID, tt.targetID, tt.kind)
			require.NoError(t, err)
			assert.False(t, res.Active)
			assert.Zero(t, tt.counter())
		})
	}
}

func TestSelfFollowIsRejected(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t, toggle.WithPolicy(toggle.KindFollow, toggle.Policy{AllowSelf: true}))
	x := testutil.CreateUser(t, db, "x")

	_, err := engine.Toggle(ctx, x.ID, x.ID, toggle.KindFollow)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidSelfReference))
	assert.Contains(t, err.Error(), "Cannot follow yourself")

	var rows int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&rows).Error)
	assert.Zero(t, rows)
	assert.Zero(t, reloadUser(t, db, x.ID).FollowersCount)
}

func TestSelfLikeFollowsPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed by default", func(t *testing.T) {
		engine, db := newEngine(t)
		author := testutil.CreateUser(t, db, "author")
		post := testutil.CreatePost(t, db, author.ID, "mine")

		res, err := engine.Toggle(ctx, author.ID, post.ID, toggle.KindPostLike)
		require.NoError(t, err)
		assert.True(t, res.Active)
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		engine, db := newEngine(t, toggle.WithPolicy(toggle.KindPostLike, toggle.Policy{AllowSelf: false}))
		author := testutil.CreateUser(t, db, "author")
		post := testutil.CreatePost(t, db, author.ID, "mine")

		_, err := engine.Toggle(ctx, author.ID, post.ID, toggle.KindPostLike)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidSelfReference))
		assert.Contains(t, err.Error(), "Cannot like your own content")
		assert.Zero(t, reloadPost(t, db, post.ID).LikesCount)
	})

	t.Run("ownership decides, not matching ids", func(t *testing.T) {
		engine, db := newEngine(t, toggle.WithPolicy(toggle.KindPostLike, toggle.Policy{AllowSelf: false}))
		author := testutil.CreateUser(t, db, "author")
		reader := testutil.CreateUser(t, db, "reader")
		testutil.CreatePost(t, db, author.ID, "first")
		post := testutil.CreatePost(t, db, author.ID, "second")
		require.Equal(t, reader.ID, post.ID)

		res, err := engine.Toggle(ctx, reader.ID, post.ID, toggle.KindPostLike)
		require.NoError(t, err)
		assert.True(t, res.Active)
	})
}

func TestToggleMissingEntities(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	x := testutil.CreateUser(t, db, "x")

	_, err := engine.Toggle(ctx, x.ID, 404, toggle.KindPostLike)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Contains(t, err.Error(), "post not found")

	_, err = engine.Toggle(ctx, 404, x.ID, toggle.KindFollow)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	var rows int64
	require.NoError(t, db.Model(&models.Like{}).Count(&rows).Error)
	assert.Zero(t, rows)
	assert.Zero(t, reloadUser(t, db, x.ID).FollowersCount)
}

func TestUnknownKind(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Toggle(context.Background(), 1, 2, toggle.Kind("poke"))
	assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))

	_, err = engine.Count(context.Background(), 1, toggle.Kind("poke"))
	assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))
}

func TestCounterFailureRollsBackRelation(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	x := testutil.CreateUser(t, db, "x")
	y := testutil.CreateUser(t, db, "y")

	var fail atomic.Bool
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_counter", func(tx *gorm.DB) {
		if fail.Load() {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	fail.Store(true)
	_, err := engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPersistence))

	fail.Store(false)
	active, err := engine.IsActive(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, reloadUser(t, db, y.ID).FollowersCount)
	assert.Zero(t, reloadUser(t, db, x.ID).FollowingCount)

	// the same toggle succeeds once storage recovers
	res, err := engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, int64(1), reloadUser(t, db, y.ID).FollowersCount)
}

func TestConcurrentTogglesBySeparateActors(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t, toggle.WithLockWait(10*time.Second))
	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, "popular")

	const n = 20
	readers := make([]*models.User, n)
	for i := range readers {
		readers[i] = testutil.CreateUser(t, db, "reader"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, r := range readers {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := engine.Toggle(ctx, id, post.ID, toggle.KindPostLike); err != nil {
				errs <- err
			}
		}(r.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(n), reloadPost(t, db, post.ID).LikesCount)
	count, err := engine.Count(ctx, post.ID, toggle.KindPostLike)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestConcurrentTogglesOnSameTripleSerialize(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t, toggle.WithLockWait(10*time.Second))
	x := testutil.CreateUser(t, db, "x")
	y := testutil.CreateUser(t, db, "y")

	const n = 10
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Zero(t, failures.Load())

	// an even number of flips leaves the relation off
	active, err := engine.IsActive(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, reloadUser(t, db, y.ID).FollowersCount)
	assert.Zero(t, reloadUser(t, db, x.ID).FollowingCount)
}

func TestToggleReportsConflictWhenLockIsHeld(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t, toggle.WithLockWait(50*time.Millisecond))
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:block_like", func(tx *gorm.DB) {
		if tx.Statement.Table != "likes" {
			return
		}
		once.Do(func() {
			close(entered)
			<-release
		})
	}))

	done := make(chan error, 1)
	go func() {
		_, err := engine.Toggle(ctx, reader.ID, post.ID, toggle.KindPostLike)
		done <- err
	}()
	<-entered

	_, err := engine.Toggle(ctx, reader.ID, post.ID, toggle.KindPostLike)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), reloadPost(t, db, post.ID).LikesCount)
}

func TestListenerReceivesOnlyAdditions(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	x := testutil.CreateUser(t, db, "x")
	y := testutil.CreateUser(t, db, "y")

	var events []toggle.Event
	engine.AddListener(toggle.ListenerFunc(func(_ context.Context, e toggle.Event) error {
		events = append(events, e)
		return errors.New("listener failures are not fatal")
	}))

	_, err := engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, toggle.KindFollow, events[0].Kind)
	assert.Equal(t, x.ID, events[0].ActorID)
	assert.Equal(t, y.ID, events[0].TargetID)
}

func TestReconcileRepairsDivergedCounters(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	_, err := engine.Toggle(ctx, reader.ID, post.ID, toggle.KindPostLike)
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, reader.ID, author.ID, toggle.KindFollow)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 7).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", author.ID).UpdateColumn("followers_count", 0).Error)

	repaired, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repaired[string(toggle.KindPostLike)])
	assert.Equal(t, int64(1), repaired[string(toggle.KindFollow)])
	assert.Zero(t, repaired[string(toggle.KindPostSave)])

	assert.Equal(t, int64(1), reloadPost(t, db, post.ID).LikesCount)
	assert.Equal(t, int64(1), reloadUser(t, db, author.ID).FollowersCount)

	repaired, err = engine.Reconcile(ctx)
	require.NoError(t, err)
	for name, n := range repaired {
		assert.Zerof(t, n, "%s should already be in sync", name)
	}
}

func TestReconcileRunsExtraRecounts(t *testing.T) {
	ctx := context.Background()
	calls := 0
	engine, _ := newEngine(t, toggle.WithRecount("post_comments", func(context.Context) (int64, error) {
		calls++
		return 2, nil
	}))

	repaired, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(2), repaired["post_comments"])
	assert.Len(t, repaired, len(toggle.Kinds)+1)

	failing, _ := newEngine(t, toggle.WithRecount("broken", func(context.Context) (int64, error) {
		return 0, errors.New("boom")
	}))
	_, err = failing.Reconcile(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPersistence))
}
