// Package session keeps one board.State per chat with an expiry, so a chat
// that comes back after the TTL starts over with a fresh plan.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meal-board/internal/board"
)

// ErrNotFound is returned by stores when a chat has no saved session.
var ErrNotFound = errors.New("session not found")

// Record is a persisted session.
type Record struct {
	ChatID    int64
	State     board.State
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is no longer valid at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists session records.
type Store interface {
	Get(ctx context.Context, chatID int64) (Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, chatID int64) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context, now time.Time) (int, error)
}

// Manager serializes load-reduce-save cycles per chat on top of a Store.
type Manager struct {
	store       Store
	ttl         time.Duration
	defaultLang board.Lang
	now         func() time.Time

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the number of chat locks. Chats sharing a stripe
// serialize with each other.
const lockStripes = 64

// NewManager creates a Manager. New sessions start in defaultLang and live
// for ttl after their last update.
func NewManager(store Store, ttl time.Duration, defaultLang board.Lang) *Manager {
	if !defaultLang.Valid() {
		defaultLang = board.DefaultLang
	}
	return &Manager{
		store:       store,
		ttl:         ttl,
		defaultLang: defaultLang,
		now:         time.Now,
	}
}

func (m *Manager) lock(chatID int64) *sync.Mutex {
	return &m.locks[uint64(chatID)%lockStripes]
}

// Load returns the chat's state, or a fresh one when nothing valid is saved.
func (m *Manager) Load(ctx context.Context, chatID int64) (board.State, error) {
	rec, err := m.store.Get(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return board.NewState(m.defaultLang), nil
	}
	if err != nil {
		return board.State{}, fmt.Errorf("failed to load session %d: %w", chatID, err)
	}
	if rec.Expired(m.now()) {
		return board.NewState(rec.State.Lang), nil
	}
	return rec.State, nil
}

// Update applies fn to the chat's current state and saves the result. Calls
// for the same chat never interleave.
func (m *Manager) Update(ctx context.Context, chatID int64, fn func(board.State) board.State) (board.State, error) {
	l := m.lock(chatID)
	l.Lock()
	defer l.Unlock()

	cur, err := m.Load(ctx, chatID)
	if err != nil {
		return board.State{}, err
	}
	next := fn(cur)

	now := m.now()
	rec := Record{ChatID: chatID, State: next, UpdatedAt: now, ExpiresAt: now.Add(m.ttl)}
	if err := m.store.Save(ctx, rec); err != nil {
		return cur, fmt.Errorf("failed to save session %d: %w", chatID, err)
	}
	return next, nil
}

// Forget drops the chat's session.
func (m *Manager) Forget(ctx context.Context, chatID int64) error {
	l := m.lock(chatID)
	l.Lock()
	defer l.Unlock()
	if err := m.store.Delete(ctx, chatID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete session %d: %w", chatID, err)
	}
	return nil
}

// Cleanup removes expired sessions from the store.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	return m.store.CleanupExpired(ctx, m.now())
}

// Active returns the number of unexpired sessions.
func (m *Manager) Active(ctx context.Context) (int, error) {
	return m.store.Count(ctx, m.now())
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

func (s *MemoryStore) Get(_ context.Context, chatID int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[chatID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ChatID] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, chatID)
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Count(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if !rec.Expired(now) {
			n++
		}
	}
	return n, nil
}
