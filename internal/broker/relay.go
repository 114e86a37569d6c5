package broker

import (
	"context"
	"encoding/json"

	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRelayChannel is the pub/sub channel shared by all instances
const DefaultRelayChannel = "connecthub:notifications"

// Envelope is a payload in transit between instances
type Envelope struct {
	RecipientID uint    `json:"recipient_id"`
	Payload     Payload `json:"payload"`
}

// Relay carries envelopes between server instances. Run blocks until ctx is
// done, handing every received envelope to deliver.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context, deliver func(Envelope)) error
}

// RedisRelay is a Relay over Redis pub/sub
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", r.channel)
	}
	return nil
}

func (r *RedisRelay) Run(ctx context.Context, deliver func(Envelope)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribe to %s", r.channel)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Log.Warn("dropping malformed relay message", zap.Error(err))
				continue
			}
			deliver(env)
		}
	}
}

// RunRelay consumes the relay and dispatches what it receives to local
// subscribers. It returns nil when no relay is configured.
func (b *Broker) RunRelay(ctx context.Context) error {
	if b.relay == nil {
		return nil
	}
	return b.relay.Run(ctx, func(env Envelope) {
		b.dispatch(env.RecipientID, env.Payload)
	})
}
