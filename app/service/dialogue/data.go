package dialogue

import "context"

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one line of the conversation transcript. The ordered entry
// sequence is the literal history sent to the backend.
type Entry struct {
	Role    Speaker `json:"role"`
	Content string  `json:"content"`
}

type ExchangeRequest struct {
	Messages []Entry
	Humor    int
	Honesty  int
	// SessionID is empty until the backend assigns one
	SessionID string
	UserName  string
}

type ExchangeResult struct {
	Reply     string
	SessionID string
}

// Backend is the remote dialogue endpoint: full history plus tone
// parameters in, one reply plus a session handle out.
type Backend interface {
	Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error)
}

// TranscriptStore persists the transcript, session handle and seeded flag
// for one tab. Implementations are best-effort: they must swallow storage
// failures, the controller keeps operating in memory.
type TranscriptStore interface {
	Persist(entries []Entry, sessionID string, seeded bool)
}
