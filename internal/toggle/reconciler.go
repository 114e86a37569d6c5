package toggle

import (
	"context"
	"time"

	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler runs Engine.Reconcile on a cron schedule as a safety net for
// counters that diverged, e.g. after manual data fixes.
type Reconciler struct {
	engine  *Engine
	cron    *cron.Cron
	timeout time.Duration
}

// NewReconciler parses schedule (standard cron spec or descriptors such as
// "@every 1h") and returns a stopped Reconciler.
func NewReconciler(engine *Engine, schedule string) (*Reconciler, error) {
	r := &Reconciler{
		engine:  engine,
		cron:    cron.New(),
		timeout: 5 * time.Minute,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule in its own goroutine.
func (r *Reconciler) Start() {
	r.cron.Start()
	logger.Log.Info("Counter reconciliation scheduled")
}

// Stop halts the schedule and waits for a running pass, bounded by ctx.
func (r *Reconciler) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	repaired, err := r.engine.Reconcile(ctx)
	if err != nil {
		logger.Log.Error("counter reconciliation failed", zap.Error(err))
		return
	}

	var total int64
	for _, n := range repaired {
		total += n
	}
	logger.Log.Info("counter reconciliation finished", zap.Int64("repaired", total))
}
