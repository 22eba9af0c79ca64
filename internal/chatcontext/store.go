package chatcontext

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store persists ChatSessions as one JSON file per session plus an
// index.json of HistoryEntry summaries, atomically writing via a temp file
// + rename so a crash mid-write never corrupts a session, grounded on
// internal/sessions/manager.go's Save/loadAll/sanitizeFilename.
type Store struct {
	mu       sync.RWMutex
	dir      string
	sessions map[string]*ChatSession
	cfg      SummarizerConfig
}

// NewStore opens (creating if absent) the session directory and loads every
// persisted session into memory.
func NewStore(dir string, cfg SummarizerConfig) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chatcontext: create store dir: %w", err)
	}
	s := &Store{dir: dir, sessions: make(map[string]*ChatSession), cfg: cfg}
	s.loadAll()
	return s, nil
}

// Get returns a session by ID.
func (s *Store) Get(id string) (*ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create registers a new session and persists it immediately.
func (s *Store) Create(sess *ChatSession) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return s.Save(sess.ID)
}

// AddMessage appends msg to session id, lazily summarizing if the
// configured threshold is crossed, then persists the result.
func (s *Store) AddMessage(id string, msg Message) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("chatcontext: unknown session %q", id)
	}
	sess.AddMessage(msg)
	sess.MaybeSummarize(s.cfg)
	s.mu.Unlock()
	return s.Save(id)
}

// List returns history entries for every session, most recently updated
// first, capped at cfg.MaxHistorySessions.
func (s *Store) List() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]HistoryEntry, 0, len(s.sessions))
	for _, sess := range s.sessions {
		entries = append(entries, NewHistoryEntry(sess))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	if len(entries) > s.cfg.MaxHistorySessions {
		entries = entries[:s.cfg.MaxHistorySessions]
	}
	return entries
}

// Search filters List by HistoryEntry.MatchesSearch.
func (s *Store) Search(query string) []HistoryEntry {
	var out []HistoryEntry
	for _, e := range s.List() {
		if e.MatchesSearch(query) {
			out = append(out, e)
		}
	}
	return out
}

// Delete removes a session from memory and disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	path := filepath.Join(s.dir, sanitizeFilename(id)+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chatcontext: delete session file: %w", err)
	}
	return s.writeIndex()
}

// Save atomically persists one session file and refreshes index.json.
func (s *Store) Save(id string) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	snapshot := *sess
	snapshot.Messages = append([]Message{}, sess.Messages...)
	s.mu.RUnlock()

	if err := s.writeAtomic(sanitizeFilename(id)+".json", snapshot); err != nil {
		return err
	}
	return s.writeIndex()
}

func (s *Store) writeIndex() error {
	return s.writeAtomic("index.json", s.List())
}

func (s *Store) writeAtomic(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("chatcontext: marshal %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("chatcontext: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("chatcontext: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("chatcontext: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chatcontext: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, filename)); err != nil {
		return fmt.Errorf("chatcontext: rename into place: %w", err)
	}
	cleanup = false
	return nil
}

func (s *Store) loadAll() {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || f.Name() == "index.json" || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, f.Name()))
		if err != nil {
			continue
		}
		var sess ChatSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		s.sessions[sess.ID] = &sess
	}
}

func sanitizeFilename(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "/", "_"), ":", "_")
}
