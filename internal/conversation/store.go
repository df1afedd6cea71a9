// Package conversation keeps the append-only record of one agent session.
// Every store starts with the fixed System entry that seeds the agent's
// operating context; it is never mutated, removed, or reordered.
package conversation

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"sophia/internal/domain"
)

// SystemContext is the operating context seeded at ordinal 0 of every
// session. It fixes the agent's identity, language, the requirement that
// remote-call inputs be structured, and the identifier discovery order.
const SystemContext = "You are Sophia, an assistant agent expert in Cisco Meraki fleets, " +
	"built by TXDX SECURE. Help the user inspect organizations, networks, devices, and clients. " +
	"Answer clearly and concisely, and always offer suggestions when a call errors. " +
	"Questions and answers are in Spanish. " +
	"Tool inputs must always be structured as JSON. " +
	"Note: the org_id is usually a number, and the network_id must be discovered with the List Networks tool."

// nowFunc supplies entry timestamps; tests may replace it for fixed clocks.
var nowFunc = time.Now

// Store is an ordered, append-only conversation record for one session.
// Safe for concurrent readers with one writer.
type Store struct {
	mu      sync.RWMutex
	entries []domain.ConversationEntry
	history *historyWriter // nil when persistence is disabled
}

// NewStore returns a Store seeded with the System entry at ordinal 0.
func NewStore() *Store {
	s := &Store{}
	s.entries = append(s.entries, domain.ConversationEntry{
		Ordinal:   0,
		Role:      domain.RoleSystem,
		Content:   SystemContext,
		Timestamp: nowFunc(),
	})
	return s
}

// NewPersistentStore returns a Store that additionally appends every entry
// as one JSON line to path, reloading any prior turns after the seed entry.
// The persisted System entries are skipped on reload; the seed is always
// fresh and always at ordinal 0.
func NewPersistentStore(path string) (*Store, error) {
	s := NewStore()
	prior, err := readHistory(path)
	if err != nil {
		return nil, err
	}
	for _, e := range prior {
		if e.Role == domain.RoleSystem {
			continue
		}
		e.Ordinal = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.history = &historyWriter{path: path}
	return s, nil
}

// Append adds one entry and returns its ordinal. Persistence failures are
// reported by Err later; the in-memory record always wins.
func (s *Store) Append(role domain.Role, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := domain.ConversationEntry{
		Ordinal:   len(s.entries),
		Role:      role,
		Content:   content,
		Timestamp: nowFunc(),
	}
	s.entries = append(s.entries, entry)
	if s.history != nil {
		s.history.write(entry)
	}
	return entry.Ordinal
}

// History returns a stable snapshot of all entries in order.
func (s *Store) History() []domain.ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries including the System seed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Err returns the first persistence failure, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return s.history.err
}

var _ domain.ConversationRecorder = (*Store)(nil)

// historyWriter appends entries to a JSONL file, keeping the first error.
type historyWriter struct {
	path string
	err  error
}

func (h *historyWriter) write(entry domain.ConversationEntry) {
	if h.err != nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		h.err = err
		return
	}
	data = append(data, '\n')
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		h.err = err
		return
	}
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		h.err = writeErr
	} else if closeErr != nil {
		h.err = closeErr
	}
}

// readHistory loads all entries from a JSONL file. A missing file is an
// empty history, not an error. Corrupt lines abort the load: silently
// dropping turns would desynchronize the record.
func readHistory(path string) ([]domain.ConversationEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []domain.ConversationEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e domain.ConversationEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("conversation history %s line %d: %w", path, line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
