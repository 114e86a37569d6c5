// Package toggle implements the relation toggle used by follow, like and save
// features: flip membership of an (actor, target, kind) relation and keep the
// denormalized counters equal to the relation set's cardinality.
package toggle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/metrics"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"go.uber.org/zap"
)

const defaultLockWait = 3 * time.Second

// Listener receives relation-added events after the toggle has committed.
// A returned error is logged and does not affect the toggle result.
type Listener interface {
	RelationAdded(ctx context.Context, event Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event Event) error

func (f ListenerFunc) RelationAdded(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Engine serializes toggles per (actor, target, kind) in process and runs the
// existence check, mutation and counter update in one store transaction.
type Engine struct {
	store    Store
	policies map[Kind]Policy
	locks    *keyedLocker
	lockWait time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics

	recounts []namedRecount

	mu        sync.RWMutex
	listeners []Listener
}

// RecountFunc rewrites a counter that no relation kind feeds and returns the
// number of rows it repaired.
type RecountFunc func(ctx context.Context) (int64, error)

type namedRecount struct {
	name string
	fn   RecountFunc
}

// Option configures an Engine
type Option func(*Engine)

// WithLockWait bounds how long a toggle waits for a concurrent toggle on the
// same triple before failing with Conflict.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockWait = d
		}
	}
}

// WithPolicy overrides the policy of one kind.
func WithPolicy(kind Kind, policy Policy) Option {
	return func(e *Engine) {
		e.policies[kind] = policy
	}
}

// WithRecount adds a counter outside the relation kinds, such as a comment
// count, to Reconcile. Its repairs are reported under name.
func WithRecount(name string, fn RecountFunc) Option {
	return func(e *Engine) {
		e.recounts = append(e.recounts, namedRecount{name: name, fn: fn})
	}
}

// NewEngine creates an Engine. Every kind starts with AllowSelf=true except
// follow.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		policies: make(map[Kind]Policy, len(Kinds)),
		locks:    newKeyedLocker(),
		lockWait: defaultLockWait,
		now:      time.Now,
		metrics:  metrics.Get(),
	}
	for _, kind := range Kinds {
		e.policies[kind] = Policy{AllowSelf: kind != KindFollow}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener registers l for relation-added events.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Toggle flips the relation (actorID, targetID, kind). On failure neither the
// relation set nor the counters change.
func (e *Engine) Toggle(ctx context.Context, actorID, targetID uint, kind Kind) (*Result, error) {
	result, err := e.toggle(ctx, actorID, targetID, kind)
	if err != nil {
		e.metrics.TogglesTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}

	if !result.Active {
		e.metrics.TogglesTotal.WithLabelValues(string(kind), "removed").Inc()
		return result, nil
	}

	e.metrics.TogglesTotal.WithLabelValues(string(kind), "added").Inc()
	e.emit(ctx, Event{Kind: kind, ActorID: actorID, TargetID: targetID, At: e.now()})
	return result, nil
}

func (e *Engine) toggle(ctx context.Context, actorID, targetID uint, kind Kind) (*Result, error) {
	policy, ok := e.policies[kind]
	if !ok {
		return nil, apperrors.BadRequest("unknown relation kind " + string(kind))
	}
	if kind == KindFollow && actorID == targetID {
		return nil, apperrors.InvalidSelfReference(selfReferenceMessage(kind))
	}

	release, err := e.locks.acquire(ctx, lockKey{kind: kind, actorID: actorID, targetID: targetID}, e.lockWait)
	if err != nil {
		if errors.Is(err, errLockTimeout) {
			return nil, apperrors.Conflict("another change to this relation is in progress")
		}
		return nil, err
	}
	defer release()

	result := &Result{Kind: kind, ActorID: actorID, TargetID: targetID}
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.ActorExists(actorID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("user")
		}

		ownerID, ok, err := tx.TargetOwner(kind, targetID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(tx.TargetName(kind))
		}
		if ownerID == actorID && !policy.AllowSelf {
			return apperrors.InvalidSelfReference(selfReferenceMessage(kind))
		}

		exists, err := tx.Exists(kind, actorID, targetID)
		if err != nil {
			return err
		}

		if exists {
			n, err := tx.Delete(kind, actorID, targetID)
			if err != nil {
				return err
			}
			if n != 1 {
				return apperrors.Conflict("relation changed concurrently")
			}
			result.Active = false
			return tx.AdjustCounters(kind, actorID, targetID, -1)
		}

		if err := tx.Insert(kind, actorID, targetID); err != nil {
			return err
		}
		result.Active = true
		return tx.AdjustCounters(kind, actorID, targetID, 1)
	})
	if err != nil {
		return nil, classify(err, "toggle failed")
	}
	return result, nil
}

func (e *Engine) emit(ctx context.Context, event Event) {
	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, l := range listeners {
		if err := l.RelationAdded(ctx, event); err != nil {
			logger.Log.Warn("relation listener failed",
				zap.String("kind", string(event.Kind)),
				zap.Uint("actor_id", event.ActorID),
				zap.Uint("target_id", event.TargetID),
				zap.Error(err),
			)
		}
	}
}

// IsActive reports whether the relation currently exists.
func (e *Engine) IsActive(ctx context.Context, actorID, targetID uint, kind Kind) (bool, error) {
	if _, ok := e.policies[kind]; !ok {
		return false, apperrors.BadRequest("unknown relation kind " + string(kind))
	}
	ok, err := e.store.Exists(ctx, kind, actorID, targetID)
	if err != nil {
		return false, classify(err, "relation lookup failed")
	}
	return ok, nil
}

// Count returns the cardinality of the relation set for targetID, computed
// from the relation rows rather than the counter.
func (e *Engine) Count(ctx context.Context, targetID uint, kind Kind) (int64, error) {
	if _, ok := e.policies[kind]; !ok {
		return 0, apperrors.BadRequest("unknown relation kind " + string(kind))
	}
	n, err := e.store.Count(ctx, kind, targetID)
	if err != nil {
		return 0, classify(err, "relation count failed")
	}
	return n, nil
}

// Reconcile recomputes every counter from its relation set, then runs the
// counters added with WithRecount. It returns the number of repaired rows keyed
// by kind or recount name and stops at the first failure.
func (e *Engine) Reconcile(ctx context.Context) (map[string]int64, error) {
	repaired := make(map[string]int64, len(Kinds)+len(e.recounts))
	for _, kind := range Kinds {
		n, err := e.store.Recount(ctx, kind)
		if err != nil {
			return repaired, classify(err, "counter reconciliation failed for "+string(kind))
		}
		e.recordRepairs(repaired, string(kind), n)
	}
	for _, rc := range e.recounts {
		n, err := rc.fn(ctx)
		if err != nil {
			return repaired, classify(err, "counter reconciliation failed for "+rc.name)
		}
		e.recordRepairs(repaired, rc.name, n)
	}
	return repaired, nil
}

func (e *Engine) recordRepairs(repaired map[string]int64, name string, n int64) {
	repaired[name] = n
	if n == 0 {
		return
	}
	e.metrics.CounterRepairsTotal.WithLabelValues(name).Add(float64(n))
	logger.Log.Warn("repaired diverged counters",
		zap.String("counter", name),
		zap.Int64("rows", n),
	)
}

func classify(err error, message string) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.Persistence(err, message)
}

func selfReferenceMessage(kind Kind) string {
	switch kind {
	case KindFollow:
		return "Cannot follow yourself"
	case KindPostSave:
		return "Cannot save your own post"
	default:
		return "Cannot like your own content"
	}
}
