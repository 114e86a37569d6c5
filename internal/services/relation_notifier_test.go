package services

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/testutil"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	engine   *toggle.Engine
	broker   *broker.Broker
	notifier *RelationNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	users := repositories.NewPostgresUserRepository(db)
	b := broker.NewBroker(repositories.NewPostgresNotificationRepository(db), users)
	n := NewRelationNotifier(
		b,
		users,
		repositories.NewPostgresPostRepository(db),
		repositories.NewPostgresCommentRepository(db),
		repositories.NewPostgresProjectRepository(db),
	)
	engine := toggle.NewEngine(repositories.NewPostgresRelationRepository(db))
	engine.AddListener(n)
	return &fixture{db: db, engine: engine, broker: b, notifier: n}
}

func (f *fixture) notifications(t *testing.T, recipientID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", recipientID).Order("id").Find(&out).Error)
	return out
}

func next(t *testing.T, sub *broker.Subscription) broker.Payload {
	t.Helper()
	select {
	case p := <-sub.Events():
		return p
	case <-time.After(time.Second):
		t.Fatal("no payload received")
		return broker.Payload{}
	}
}

func TestFollowNotifiesTargetLive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	x := testutil.CreateUser(t, f.db, "xavier")
	y := testutil.CreateUser(t, f.db, "yara")

	sub := f.broker.Subscribe(y.ID)
	defer sub.Close()

	res, err := f.engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.True(t, res.Active)

	var stored models.User
	testutil.Reload(t, f.db, &stored, y.ID)
	assert.Equal(t, int64(1), stored.FollowersCount)

	notes := f.notifications(t, y.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTypeFollow, notes[0].Type)
	assert.Equal(t, x.ID, notes[0].ActorID)
	assert.Equal(t, "xavier started following you", notes[0].Message)

	p := next(t, sub)
	assert.Equal(t, "follow", p.Type)
	assert.Equal(t, "xavier", p.SenderDisplayName)
	assert.Equal(t, notes[0].ID, p.NotificationID)

	// unfollow emits nothing
	_, err = f.engine.Toggle(ctx, x.ID, y.ID, toggle.KindFollow)
	require.NoError(t, err)
	assert.Len(t, f.notifications(t, y.ID), 1)
}

func TestLikesNotifyContentOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, author.ID, "hello")
	comment := testutil.CreateComment(t, f.db, post.ID, author.ID, "first")
	project := testutil.CreateProject(t, f.db, author.ID, "hub")

	for _, tc := range []struct {
		kind     toggle.Kind
		targetID uint
		message  string
	}{
		{toggle.KindPostLike, post.ID, "fan liked your post"},
		{toggle.KindCommentLike, comment.ID, "fan liked your comment"},
		{toggle.KindProjectLike, project.ID, "fan liked your project"},
	} {
		_, err := f.engine.Toggle(ctx, fan.ID, tc.targetID, tc.kind)
		require.NoError(t, err)

		notes := f.notifications(t, author.ID)
		require.NotEmpty(t, notes)
		last := notes[len(notes)-1]
		assert.Equal(t, models.NotificationTypeLike, last.Type)
		assert.Equal(t, tc.message, last.Message)
	}
	assert.Len(t, f.notifications(t, author.ID), 3)
}

func TestNoNotificationForSavesOrSelfActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	reader := testutil.CreateUser(t, f.db, "reader")
	post := testutil.CreatePost(t, f.db, author.ID, "hello")

	_, err := f.engine.Toggle(ctx, reader.ID, post.ID, toggle.KindPostSave)
	require.NoError(t, err)
	_, err = f.engine.Toggle(ctx, author.ID, post.ID, toggle.KindPostLike)
	require.NoError(t, err)

	assert.Empty(t, f.notifications(t, author.ID))
}

func TestCommentAddedNotifiesPostAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	reader := testutil.CreateUser(t, f.db, "reader")
	post := testutil.CreatePost(t, f.db, author.ID, "hello")

	own := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "thanks"}
	require.NoError(t, f.notifier.CommentAdded(ctx, own))
	assert.Empty(t, f.notifications(t, author.ID))

	other := &models.Comment{PostID: post.ID, UserID: reader.ID, Content: "nice"}
	require.NoError(t, f.notifier.CommentAdded(ctx, other))

	notes := f.notifications(t, author.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTypeComment, notes[0].Type)
	assert.Equal(t, "reader commented on your post", notes[0].Message)
	assert.Equal(t, "post", notes[0].TargetType)
}
