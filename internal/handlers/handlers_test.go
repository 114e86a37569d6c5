package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/middleware"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/testutil"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/anonto42/connect-hub/backend/internal/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}

func newContext(e *echo.Echo, method, target string, userID uint, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		middleware.SetUserID(c, userID)
	}
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for name, value := range params {
			names = append(names, name)
			values = append(values, value)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func requireHTTPError(t *testing.T, err error, status int) *echo.HTTPError {
	t.Helper()
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	assert.Equal(t, status, httpErr.Code)
	return httpErr
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validators.New()
	return e
}

func newFollowHandler(db *gorm.DB) *FollowHandler {
	engine := toggle.NewEngine(repositories.NewPostgresRelationRepository(db))
	return NewFollowHandler(engine, repositories.NewPostgresFollowRepository(db), repositories.NewPostgresUserRepository(db))
}

func TestToggleFollow(t *testing.T) {
	db := testutil.NewTestDB(t)
	e := newEcho()
	h := newFollowHandler(db)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	bobID := strconv.FormatUint(uint64(bob.ID), 10)

	c, rec := newContext(e, http.MethodPost, "/", alice.ID, map[string]string{"id": bobID})
	require.NoError(t, h.ToggleFollow(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, true, body.Data["following"])
	assert.Equal(t, float64(1), body.Data["followers_count"])

	c, rec = newContext(e, http.MethodPost, "/", alice.ID, map[string]string{"id": bobID})
	require.NoError(t, h.ToggleFollow(c))
	body = decode(t, rec)
	assert.Equal(t, false, body.Data["following"])
	assert.Equal(t, float64(0), body.Data["followers_count"])
}

func TestToggleFollowErrors(t *testing.T) {
	db := testutil.NewTestDB(t)
	e := newEcho()
	h := newFollowHandler(db)
	alice := testutil.CreateUser(t, db, "alice")
	aliceID := strconv.FormatUint(uint64(alice.ID), 10)

	t.Run("self follow", func(t *testing.T) {
		c, _ := newContext(e, http.MethodPost, "/", alice.ID, map[string]string{"id": aliceID})
		requireHTTPError(t, h.ToggleFollow(c), http.StatusBadRequest)
	})

	t.Run("unknown user", func(t *testing.T) {
		c, _ := newContext(e, http.MethodPost, "/", alice.ID, map[string]string{"id": "999"})
		requireHTTPError(t, h.ToggleFollow(c), http.StatusNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		c, _ := newContext(e, http.MethodPost, "/", alice.ID, map[string]string{"id": "abc"})
		httpErr := requireHTTPError(t, h.ToggleFollow(c), http.StatusBadRequest)
		assert.Equal(t, "Invalid user ID", httpErr.Message)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		c, _ := newContext(e, http.MethodPost, "/", 0, map[string]string{"id": aliceID})
		requireHTTPError(t, h.ToggleFollow(c), http.StatusUnauthorized)
	})
}

func TestGetFollowersPaginates(t *testing.T) {
	db := testutil.NewTestDB(t)
	e := newEcho()
	h := newFollowHandler(db)
	engine := toggle.NewEngine(repositories.NewPostgresRelationRepository(db))
	target := testutil.CreateUser(t, db, "target")
	for _, name := range []string{"f1", "f2", "f3"} {
		follower := testutil.CreateUser(t, db, name)
		_, err := engine.Toggle(context.Background(), follower.ID, target.ID, toggle.KindFollow)
		require.NoError(t, err)
	}

	c, rec := newContext(e, http.MethodGet, "/?page=1&limit=2", target.ID,
		map[string]string{"id": strconv.FormatUint(uint64(target.ID), 10)})
	require.NoError(t, h.GetFollowers(c))

	var body struct {
		Data struct {
			Users []models.UserCompact `json:"users"`
		} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Users, 2)
	assert.Equal(t, float64(3), body.Meta["totalItems"])
	assert.Equal(t, true, body.Meta["hasNextPage"])
}

func TestToggleLikeReportsCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	e := newEcho()
	engine := toggle.NewEngine(repositories.NewPostgresRelationRepository(db))
	h := NewLikeHandler(engine, repositories.NewPostgresLikeRepository(db), repositories.NewPostgresUserRepository(db))
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author.ID, "hello")
	postID := strconv.FormatUint(uint64(post.ID), 10)

	c, rec := newContext(e, http.MethodPost, "/", reader.ID, map[string]string{"post_id": postID})
	require.NoError(t, h.ToggleLike(c))
	body := decode(t, rec)
	assert.Equal(t, true, body.Data["liked"])
	assert.Equal(t, float64(1), body.Data["count"])

	c, rec = newContext(e, http.MethodGet, "/", reader.ID, map[string]string{"post_id": postID})
	require.NoError(t, h.GetLikeStatus(c))
	assert.Equal(t, true, decode(t, rec).Data["liked"])

	c, _ = newContext(e, http.MethodPost, "/", reader.ID, map[string]string{"post_id": "4242"})
	requireHTTPError(t, h.ToggleLike(c), http.StatusNotFound)
}

func TestMarkNotificationAsRead(t *testing.T) {
	db := testutil.NewTestDB(t)
	e := newEcho()
	userRepo := repositories.NewPostgresUserRepository(db)
	b := broker.NewBroker(repositories.NewPostgresNotificationRepository(db), userRepo)
	h := NewNotificationHandler(b, userRepo)

	owner := testutil.CreateUser(t, db, "owner")
	sender := testutil.CreateUser(t, db, "sender")
	stranger := testutil.CreateUser(t, db, "stranger")
	n, err := b.CreateNotification(context.Background(), owner.ID, sender.ID, models.NotificationTypeFollow, "sender started following you")
	require.NoError(t, err)
	notificationID := strconv.FormatUint(uint64(n.ID), 10)

	c, _ := newContext(e, http.MethodPut, "/", stranger.ID, map[string]string{"id": notificationID})
	requireHTTPError(t, h.MarkAsRead(c), http.StatusForbidden)

	c, _ = newContext(e, http.MethodPut, "/", owner.ID, map[string]string{"id": "9999"})
	requireHTTPError(t, h.MarkAsRead(c), http.StatusNotFound)

	c, rec := newContext(e, http.MethodGet, "/", owner.ID, nil)
	require.NoError(t, h.GetUnreadCount(c))
	assert.Equal(t, float64(1), decode(t, rec).Data["count"])

	c, rec = newContext(e, http.MethodPut, "/", owner.ID, map[string]string{"id": notificationID})
	require.NoError(t, h.MarkAsRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/", owner.ID, nil)
	require.NoError(t, h.GetUnreadCount(c))
	assert.Equal(t, float64(0), decode(t, rec).Data["count"])
}

func TestStreamEventsWritesServerSentEvents(t *testing.T) {
	e := newEcho()
	b := broker.NewBroker(nil, nil)
	sub := b.Subscribe(7)

	c, rec := newContext(e, http.MethodGet, "/", 7, nil)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	b.Publish(7, broker.NewPayload(models.NotificationTypeLike, "bob liked your post", nil, at))
	sub.Close()

	require.NoError(t, streamEvents(c, sub, time.Hour))

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	out := rec.Body.String()
	assert.True(t, strings.HasPrefix(out, "retry: "))
	assert.Contains(t, out, "event: like\ndata: {")
	assert.Contains(t, out, `"message":"bob liked your post"`)
	assert.Contains(t, out, `"timestamp":"2026-03-01T09:30:00Z"`)
}

func TestStreamEventsStopsOnCancel(t *testing.T) {
	e := newEcho()
	b := broker.NewBroker(nil, nil)
	sub := b.Subscribe(7)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	done := make(chan error, 1)
	go func() { done <- streamEvents(c, sub, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the request was cancelled")
	}
}
