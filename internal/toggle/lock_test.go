package toggle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLockerExclusion(t *testing.T) {
	l := newKeyedLocker()
	key := lockKey{kind: KindPostLike, actorID: 1, targetID: 2}

	release, err := l.acquire(context.Background(), key, time.Second)
	require.NoError(t, err)

	_, err = l.acquire(context.Background(), key, 20*time.Millisecond)
	assert.ErrorIs(t, err, errLockTimeout)

	other, err := l.acquire(context.Background(), lockKey{kind: KindPostLike, actorID: 2, targetID: 2}, 20*time.Millisecond)
	require.NoError(t, err, "different keys must not contend")
	other()

	release()
	release()
	assert.Equal(t, 0, l.size())

	again, err := l.acquire(context.Background(), key, 20*time.Millisecond)
	require.NoError(t, err)
	again()
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	l := newKeyedLocker()
	key := lockKey{kind: KindFollow, actorID: 1, targetID: 2}

	release, err := l.acquire(context.Background(), key, time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.acquire(ctx, key, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyedLockerHandsOverToWaiter(t *testing.T) {
	l := newKeyedLocker()
	key := lockKey{kind: KindPostSave, actorID: 3, targetID: 4}

	release, err := l.acquire(context.Background(), key, time.Second)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.acquire(context.Background(), key, time.Second)
		if err == nil {
			r()
		}
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.Equal(t, 0, l.size())
}
