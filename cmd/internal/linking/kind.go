package linking

// Kind selects the linking protocol a session runs.
type Kind int

const (
	// KindPairing links with a human-enterable pairing code.
	KindPairing Kind = iota + 1
	// KindQR links by scanning a QR image.
	KindQR
)

func (k Kind) String() string {
	switch k {
	case KindPairing:
		return "pair"
	case KindQR:
		return "qr"
	default:
		return "unknown"
	}
}

// State is a session lifecycle state. States only ever move forward.
type State int

const (
	StateInitializing State = iota
	StateAwaitingMilestone
	StateMilestoneIssued
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingMilestone:
		return "awaiting_milestone"
	case StateMilestoneIssued:
		return "milestone_issued"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// canAdvance reports whether from -> to is a legal forward transition.
// MilestoneIssued is only reachable from AwaitingMilestone; Closed from anywhere but Closed.
func canAdvance(from, to State) bool {
	switch to {
	case StateAwaitingMilestone:
		return from == StateInitializing
	case StateMilestoneIssued:
		return from == StateAwaitingMilestone
	case StateClosed:
		return from != StateClosed
	default:
		return false
	}
}

// CloseReason records why a session was closed. Used for logs and metrics.
type CloseReason string

const (
	ReasonDeadline   CloseReason = "deadline"
	ReasonSweep      CloseReason = "sweep"
	ReasonFailed     CloseReason = "failed"
	ReasonRegistered CloseReason = "already_registered"
	ReasonShutdown   CloseReason = "shutdown"
)
