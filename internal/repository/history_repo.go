package repository

import (
	"context"
	"errors"
	"sync"

	"mailservice/internal/model"
)

var ErrNotFound = errors.New("history entry not found")

// HistoryRepository keeps send attempts in memory, oldest first. Contents are
// lost on restart.
type HistoryRepository struct {
	mu      sync.RWMutex
	entries []*model.EmailHistory
	byID    map[string]*model.EmailHistory
	limit   int
}

// NewHistoryRepository creates a store holding at most limit entries; the
// oldest are evicted first. limit <= 0 means unbounded.
func NewHistoryRepository(limit int) *HistoryRepository {
	return &HistoryRepository{
		byID:  make(map[string]*model.EmailHistory),
		limit: limit,
	}
}

// Append stores a copy of h. Message IDs are expected to be unique.
func (r *HistoryRepository) Append(_ context.Context, h *model.EmailHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := h.Clone()
	r.entries = append(r.entries, e)
	r.byID[e.MessageID] = e

	if r.limit > 0 && len(r.entries) > r.limit {
		drop := len(r.entries) - r.limit
		for _, old := range r.entries[:drop] {
			delete(r.byID, old.MessageID)
		}
		n := copy(r.entries, r.entries[drop:])
		clear(r.entries[n:])
		r.entries = r.entries[:n]
	}
	return nil
}

// Update applies fn to the stored entry under the write lock.
func (r *HistoryRepository) Update(_ context.Context, messageID string, fn func(*model.EmailHistory)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[messageID]
	if !ok {
		return ErrNotFound
	}
	fn(e)
	return nil
}

// List returns up to limit of the most recent entries, oldest first.
func (r *HistoryRepository) List(_ context.Context, limit int) ([]*model.EmailHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit >= 0 && limit < len(r.entries) {
		start = len(r.entries) - limit
	}
	out := make([]*model.EmailHistory, 0, len(r.entries)-start)
	for _, e := range r.entries[start:] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (r *HistoryRepository) Get(_ context.Context, messageID string) (*model.EmailHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (r *HistoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
