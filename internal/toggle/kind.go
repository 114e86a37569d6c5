package toggle

import "time"

// Kind names a relation set. Each kind maps to its own table and counters.
type Kind string

const (
	KindFollow      Kind = "follow"
	KindPostLike    Kind = "post_like"
	KindCommentLike Kind = "comment_like"
	KindProjectLike Kind = "project_like"
	KindPostSave    Kind = "post_save"
)

// Kinds lists every relation kind in a stable order.
var Kinds = []Kind{KindFollow, KindPostLike, KindCommentLike, KindProjectLike, KindPostSave}

// Policy is the per-kind feature policy applied before any storage access.
type Policy struct {
	// AllowSelf permits actorID == targetID. Ignored for KindFollow, which
	// never allows it.
	AllowSelf bool
}

// Result is the state of the relation after a toggle.
type Result struct {
	Kind     Kind `json:"kind"`
	ActorID  uint `json:"actor_id"`
	TargetID uint `json:"target_id"`
	Active   bool `json:"is_active"`
}

// Event is emitted after a toggle commits an off->on transition.
type Event struct {
	Kind     Kind
	ActorID  uint
	TargetID uint
	At       time.Time
}
