package dialogue

// TurnState is the single tagged state of the turn controller. Exactly one
// state is active at a time; mutual exclusion between capturing, waiting
// for the backend and playing back is enforced by the transition table,
// not by convention.
type TurnState int

const (
	// StateIdle: nothing active.
	StateIdle TurnState = iota
	// StateListening: the speech input channel is armed.
	StateListening
	// StateAwaitingReply: a backend request is in flight, input suppressed.
	StateAwaitingReply
	// StateSpeaking: synthesis playback is running, input suppressed.
	StateSpeaking
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// legalMoves lists the allowed transitions. Idle fans out three ways
// because initialization may go straight to a seeded backend turn or to a
// spoken confirmation before any listening starts. Every state may drop
// back to Idle on teardown.
var legalMoves = map[TurnState][]TurnState{
	StateIdle:          {StateListening, StateAwaitingReply, StateSpeaking},
	StateListening:     {StateAwaitingReply, StateIdle},
	StateAwaitingReply: {StateSpeaking, StateIdle},
	StateSpeaking:      {StateListening, StateIdle},
}

func canTransition(from, to TurnState) bool {
	for _, next := range legalMoves[from] {
		if next == to {
			return true
		}
	}

	return false
}
