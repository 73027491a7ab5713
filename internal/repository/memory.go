package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryOfferIndex is the in-process fallback index. Entries expire lazily
// on read using the same TTL as the redis index.
type MemoryOfferIndex struct {
	mu   sync.RWMutex
	sets map[string]map[string]time.Time
	ttl  time.Duration
}

func NewMemoryOfferIndex(ttl time.Duration) *MemoryOfferIndex {
	return &MemoryOfferIndex{
		sets: make(map[string]map[string]time.Time),
		ttl:  ttl,
	}
}

func (r *MemoryOfferIndex) Add(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	key := offerKey(category, purpose, date)
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[key]
	if !ok {
		set = make(map[string]time.Time)
		r.sets[key] = set
	}
	var deadline time.Time
	if r.ttl > 0 {
		deadline = time.Now().Add(r.ttl)
	}
	set[bookingID] = deadline
	return nil
}

func (r *MemoryOfferIndex) Remove(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	key := offerKey(category, purpose, date)
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.sets[key]; ok {
		delete(set, bookingID)
		if len(set) == 0 {
			delete(r.sets, key)
		}
	}
	return nil
}

func (r *MemoryOfferIndex) List(ctx context.Context, category, purpose string, date time.Time) ([]string, error) {
	key := offerKey(category, purpose, date)
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[key]
	if !ok {
		return nil, nil
	}
	ids := make([]string, 0, len(set))
	for id, deadline := range set {
		if !deadline.IsZero() && now.After(deadline) {
			delete(set, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
