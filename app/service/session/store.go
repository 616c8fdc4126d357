package session

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tarsvoice/app/config"
	"tarsvoice/app/service/dialogue"

	"github.com/samber/do"
)

// Store keeps one JSON file per browser tab with the transcript, the
// backend session handle and the seeded flag. Everything is best-effort:
// a failing disk never disturbs the dialogue, the tab just runs
// memory-only for its lifetime.

type Store struct {
	dir string
}

type snapshot struct {
	Messages  []dialogue.Entry `json:"messages"`
	SessionID string           `json:"sessionId,omitempty"`
	// Seeded is "1" once the greeting turn was sent
	Seeded string `json:"seeded,omitempty"`
}

func New(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := os.MkdirAll(cfg.Server.SessionDir, 0755); err != nil {
		slog.Warn("Session dir unavailable, running memory-only", "error", err)
	}

	return &Store{
		dir: cfg.Server.SessionDir,
	}, nil
}

// Open returns the persistence handle for one tab.
func (s *Store) Open(tabID string) *Tab {
	return &Tab{
		path: filepath.Join(s.dir, sanitizeID(tabID)+".json"),
	}
}

type Tab struct {
	path string

	mu      sync.Mutex
	memOnly bool
}

var _ dialogue.TranscriptStore = (*Tab)(nil)

// Restore loads the persisted tab state. Any read or parse failure counts
// as an empty session.
func (t *Tab) Restore() (entries []dialogue.Entry, sessionID string, seeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil, "", false
	}

	var snap snapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Discarding unreadable session file", "path", t.path, "error", err)
		return nil, "", false
	}

	return snap.Messages, snap.SessionID, snap.Seeded == "1"
}

// Persist writes the current tab state. The first write failure switches
// the tab to memory-only mode so a broken disk is complained about once.
func (t *Tab) Persist(entries []dialogue.Entry, sessionID string, seeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.memOnly {
		return
	}

	snap := snapshot{
		Messages:  entries,
		SessionID: sessionID,
	}
	if seeded {
		snap.Seeded = "1"
	}

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("Failed to marshal session snapshot", "error", err)
		return
	}

	if err = os.WriteFile(t.path, data, 0644); err != nil {
		slog.Warn("Session persistence failed, continuing memory-only",
			"path", t.path,
			"error", err)
		t.memOnly = true
	}
}

// Clear removes the persisted state, used when the user starts over.
func (t *Tab) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to clear session file", "path", t.path, "error", err)
	}
}

func sanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	if b.Len() == 0 {
		return "default"
	}

	return b.String()
}
