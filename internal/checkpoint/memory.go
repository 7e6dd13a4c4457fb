package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #region memory-store

// MemoryStore is the fast/ephemeral backend: checkpoints live in process
// memory with optional expiry. Entries are held encoded so loads hand back
// independent copies.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	sessions map[string][]string // sessionID → checkpoint ids, append order
	now      func() time.Time
}

type memoryEntry struct {
	payload   []byte
	sessionID string
	savedAt   time.Time
	expiresAt time.Time // zero = no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		sessions: make(map[string][]string),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// #endregion memory-store

// #region save

func (s *MemoryStore) Save(_ context.Context, c HybridCheckpoint, ttl time.Duration) (string, error) {
	if c.CheckpointID == "" {
		c.CheckpointID = uuid.New().String()
	}
	c.UpdatedAt = s.now().UTC().Round(0)

	payload, err := Encode(c)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{payload: payload, sessionID: c.SessionID, savedAt: c.UpdatedAt}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	if _, exists := s.entries[c.CheckpointID]; !exists {
		s.sessions[c.SessionID] = append(s.sessions[c.SessionID], c.CheckpointID)
	}
	s.entries[c.CheckpointID] = entry
	return c.CheckpointID, nil
}

// #endregion save

// #region load

func (s *MemoryStore) Load(_ context.Context, id string) (HybridCheckpoint, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		if ok {
			s.reap(id)
		}
		return HybridCheckpoint{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	return Decode(entry.payload)
}

// #endregion load

// #region delete

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	delete(s.entries, id)
	s.dropFromSession(entry.sessionID, id)
	return true, nil
}

// #endregion delete

// #region list

func (s *MemoryStore) ListBySession(_ context.Context, sessionID string, limit int) ([]HybridCheckpoint, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.sessions[sessionID]...)
	s.mu.RUnlock()

	var out []HybridCheckpoint
	// Append order is oldest-first; walk backwards for most-recent-first.
	for i := len(ids) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		s.mu.RLock()
		entry, ok := s.entries[ids[i]]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if s.expired(entry) {
			s.reap(ids[i])
			continue
		}
		c, err := Decode(entry.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// #endregion list

// #region close

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	s.sessions = make(map[string][]string)
	return nil
}

// #endregion close

// #region expiry

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// reap removes an expired entry. Expiry is lazy: checked on access.
func (s *MemoryStore) reap(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	s.dropFromSession(entry.sessionID, id)
}

// dropFromSession removes one id from a session index. Caller holds mu.
func (s *MemoryStore) dropFromSession(sessionID, id string) {
	ids := s.sessions[sessionID]
	for i, candidate := range ids {
		if candidate == id {
			s.sessions[sessionID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.sessions[sessionID]) == 0 {
		delete(s.sessions, sessionID)
	}
}

// #endregion expiry
