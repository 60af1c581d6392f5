package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/annel0/growdoro/internal/garden"
)

// MemoryRepo — потокобезопасное in-memory хранилище сессий.
// Используется в тестах и при запуске без MongoDB.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]*Session)}
}

func cloneSession(s *Session) *Session {
	c := *s
	if s.PausedAt != nil {
		ts := *s.PausedAt
		c.PausedAt = &ts
	}
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		c.CompletedAt = &ts
	}
	if s.CancelledAt != nil {
		ts := *s.CancelledAt
		c.CancelledAt = &ts
	}
	if s.RewardsClaimedAt != nil {
		ts := *s.RewardsClaimedAt
		c.RewardsClaimedAt = &ts
	}
	return &c
}

func (r *MemoryRepo) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *MemoryRepo) Save(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MemoryRepo) ListByOwner(ctx context.Context, owner garden.Owner, limit int) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if s.Owner == owner {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ClaimRewards(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.RewardsClaimedAt != nil {
		return ErrAlreadyClaimed
	}
	ts := now
	s.RewardsClaimedAt = &ts
	return nil
}

func (r *MemoryRepo) SetOwner(ctx context.Context, from, to garden.Owner) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.Owner == from {
			s.Owner = to
			n++
		}
	}
	return n, nil
}
