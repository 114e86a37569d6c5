package toggle

import "context"

// Store is the persistence contract of the engine. Implementations must run
// WithinTx as a single transaction: if fn returns an error nothing it did is
// visible afterwards.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Exists(ctx context.Context, kind Kind, actorID, targetID uint) (bool, error)
	Count(ctx context.Context, kind Kind, targetID uint) (int64, error)
	// Recount rewrites every counter of kind from its relation set and returns
	// the number of rows that were out of sync.
	Recount(ctx context.Context, kind Kind) (int64, error)
}

// Tx is the set of operations available inside a toggle transaction.
// Errors should already be classified as *apperrors.Error where possible.
type Tx interface {
	ActorExists(actorID uint) (bool, error)
	// TargetOwner returns the user owning targetID (the user itself for
	// follows) and false when the target does not exist.
	TargetOwner(kind Kind, targetID uint) (uint, bool, error)
	TargetName(kind Kind) string
	Exists(kind Kind, actorID, targetID uint) (bool, error)
	Insert(kind Kind, actorID, targetID uint) error
	Delete(kind Kind, actorID, targetID uint) (int64, error)
	// AdjustCounters adds delta to every counter of kind. Each counter row
	// must exist; otherwise an error is returned and the toggle aborts.
	AdjustCounters(kind Kind, actorID, targetID uint, delta int) error
}
