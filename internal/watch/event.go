package watch

import "time"

// Kind classifies a filesystem event after coalescing.
type Kind int

const (
	// KindCreated reports a path that came into existence.
	KindCreated Kind = iota + 1
	// KindModified reports content changes, including delete-then-recreate
	// sequences collapsed inside one debounce window.
	KindModified
	// KindDeleted reports a path that was removed.
	KindDeleted
	// KindRenamed reports a path whose name vanished through a rename. The
	// new name surfaces as its own Created event.
	KindRenamed
	// KindResync signals that event history for the target may be
	// incomplete and downstream must re-scan instead of trusting
	// continuity.
	KindResync
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindRenamed:
		return "renamed"
	case KindResync:
		return "resync"
	default:
		return "unknown"
	}
}

// Event is one debounced observation for a watch target.
//
// Seq is assigned at emission and is strictly increasing per target within
// a subscription; it is never reused. For KindResync, Path equals the
// target root.
type Event struct {
	Target  string
	Path    string
	OldPath string
	Kind    Kind
	Seq     uint64
	Time    time.Time
}
