// Package drafts persists in-progress selections between requests.
package drafts

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
)

// ErrConflict means concurrent writers kept racing for the same draft.
var ErrConflict = errors.New("draft was modified concurrently, retry")

// Store keeps at most one selection per (meeting, user).
type Store interface {
	// Get returns an empty selection when none is stored.
	Get(ctx context.Context, meetingID int64, userID string) (*selection.Selection, error)
	// Update loads the selection, applies fn and stores the result atomically.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, meetingID int64, userID string, fn func(*selection.Selection) error) (*selection.Selection, error)
	Delete(ctx context.Context, meetingID int64, userID string) error
}

func key(meetingID int64, userID string) string {
	return "draft:" + strconv.FormatInt(meetingID, 10) + ":" + userID
}

// MemoryStore is a process-local Store for tests and single-node setups.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	drafts map[string]memoryEntry
}

type memoryEntry struct {
	sel       selection.Selection
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, drafts: map[string]memoryEntry{}}
}

func (m *MemoryStore) Get(_ context.Context, meetingID int64, userID string) (*selection.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(meetingID, userID), nil
}

func (m *MemoryStore) Update(_ context.Context, meetingID int64, userID string, fn func(*selection.Selection) error) (*selection.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel := m.load(meetingID, userID)
	if err := fn(sel); err != nil {
		return nil, err
	}
	entry := memoryEntry{sel: *sel}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.drafts[key(meetingID, userID)] = entry
	return clone(sel), nil
}

func (m *MemoryStore) Delete(_ context.Context, meetingID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key(meetingID, userID))
	return nil
}

// load returns a private copy so callers never alias stored state.
func (m *MemoryStore) load(meetingID int64, userID string) *selection.Selection {
	k := key(meetingID, userID)
	entry, ok := m.drafts[k]
	if !ok {
		return selection.New(meetingID, userID)
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.drafts, k)
		return selection.New(meetingID, userID)
	}
	return clone(&entry.sel)
}

func clone(s *selection.Selection) *selection.Selection {
	out := *s
	out.Slots = append(out.Slots[:0:0], s.Slots...)
	return &out
}
