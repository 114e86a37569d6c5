// Package broker persists notifications and pushes them live to the connected
// subscribers of their recipient.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/metrics"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultBufferSize   = 32
	relayPublishTimeout = 2 * time.Second
)

// UserLookup resolves sender profiles for payloads
type UserLookup interface {
	GetUserByID(id uint) (*models.User, error)
}

// Subscription is one live connection bound to a recipient. Events is closed
// when the subscription ends, either by Close or by eviction of a subscriber
// that stopped reading.
type Subscription struct {
	ID          string
	RecipientID uint

	ch     chan Payload
	broker *Broker
	closed bool // guarded by broker.mu
}

// Events returns the stream of payloads for this subscription
func (s *Subscription) Events() <-chan Payload {
	return s.ch
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

// Broker owns the recipient -> subscriptions registry. Every dispatch holds
// the registry lock, so payloads reach each subscription in publish order.
type Broker struct {
	notifications repositories.NotificationRepository
	users         UserLookup
	bufferSize    int
	relay         Relay
	now           func() time.Time
	metrics       *metrics.Metrics

	mu   sync.Mutex
	subs map[uint]map[string]*Subscription
}

// Option configures a Broker
type Option func(*Broker)

// WithBufferSize sets how many undelivered payloads a subscription may hold
// before it is evicted.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithRelay routes publishes through r so that every instance sharing the
// relay delivers to its own subscribers.
func WithRelay(r Relay) Option {
	return func(b *Broker) {
		b.relay = r
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// NewBroker creates a Broker
func NewBroker(notifications repositories.NotificationRepository, users UserLookup, opts ...Option) *Broker {
	b := &Broker{
		notifications: notifications,
		users:         users,
		bufferSize:    defaultBufferSize,
		now:           time.Now,
		metrics:       metrics.Get(),
		subs:          make(map[uint]map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe opens a live stream of payloads addressed to recipientID
func (b *Broker) Subscribe(recipientID uint) *Subscription {
	sub := &Subscription{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		ch:          make(chan Payload, b.bufferSize),
		broker:      b,
	}

	b.mu.Lock()
	if b.subs[recipientID] == nil {
		b.subs[recipientID] = make(map[string]*Subscription)
	}
	b.subs[recipientID][sub.ID] = sub
	b.mu.Unlock()

	b.metrics.ActiveSubscriptions.Inc()
	logger.Log.Debug("notification subscription opened",
		zap.Uint("recipient_id", recipientID),
		zap.String("subscription_id", sub.ID),
	)
	return sub
}

// Publish pushes payload to every open subscription of recipientID and
// returns how many local subscriptions received it. It never fails: with no
// subscribers the payload is dropped, and the persisted notification stays the
// source of truth. A payload handed to the relay reports 0 since it is
// delivered when the relay feeds it back.
func (b *Broker) Publish(recipientID uint, payload Payload) int {
	b.metrics.NotificationsTotal.Inc()

	if b.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
		err := b.relay.Publish(ctx, Envelope{RecipientID: recipientID, Payload: payload})
		cancel()
		if err == nil {
			return 0
		}
		b.metrics.RelayFallbacksTotal.Inc()
		logger.Log.Warn("notification relay publish failed, delivering locally",
			zap.Uint("recipient_id", recipientID),
			zap.Error(err),
		)
	}

	return b.dispatch(recipientID, payload)
}

// dispatch delivers to local subscriptions and returns how many received the
// payload. Subscriptions with a full buffer are evicted instead of blocking.
func (b *Broker) dispatch(recipientID uint, payload Payload) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[recipientID]
	if len(subs) == 0 {
		logger.Log.Debug("no live subscribers, payload dropped",
			zap.Uint("recipient_id", recipientID),
			zap.String("type", payload.Type),
		)
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			b.removeLocked(sub)
			b.metrics.EvictionsTotal.Inc()
			logger.Log.Warn("evicted slow notification subscriber",
				zap.Uint("recipient_id", recipientID),
				zap.String("subscription_id", sub.ID),
			)
		}
	}

	b.metrics.DeliveriesTotal.Add(float64(delivered))
	return delivered
}

// SubscriberCount returns the number of open subscriptions of recipientID
func (b *Broker) SubscriberCount(recipientID uint) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[recipientID])
}

// CloseAll ends every subscription, e.g. on shutdown
func (b *Broker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, sub := range subs {
			b.removeLocked(sub)
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true

	if subs, ok := b.subs[sub.RecipientID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(b.subs, sub.RecipientID)
		}
	}
	close(sub.ch)
	b.metrics.ActiveSubscriptions.Dec()
}
