package recommendations

import (
	"context"
	"sync"
	"time"
)

// Item is a single recommendation object. Its shape belongs to the consumer.
type Item = map[string]any

// Entry is the persisted payload for a key together with the fingerprint of the source
// data that produced it.
type Entry struct {
	UserID     string    `json:"user_id"`
	Kind       Kind      `json:"recommendations_type"`
	Items      []Item    `json:"recommendations_data"`
	SourceHash string    `json:"source_hash"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository loads and stores the single cache row of a key. Payload and hash are always
// written together.
type Repository interface {
	// Load returns (nil, nil) when no row exists.
	Load(ctx context.Context, key Key) (*Entry, error)
	// Save replaces any previous row for key.
	Save(ctx context.Context, key Key, items []Item, hash string, at time.Time) error
}

// MemoryRepository keeps rows in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[Key]Entry
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[Key]Entry)}
}

// Load implements Repository.
func (r *MemoryRepository) Load(ctx context.Context, key Key) (*Entry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	entry.Items = cloneItems(entry.Items)
	return &entry, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(ctx context.Context, key Key, items []Item, hash string, at time.Time) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[key] = Entry{
		UserID:     key.UserID,
		Kind:       key.Kind,
		Items:      cloneItems(items),
		SourceHash: hash,
		UpdatedAt:  at,
	}
	return nil
}

// Len reports the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// cloneItems copies the slice and the top level of each item.
func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		copied := make(Item, len(item))
		for k, v := range item {
			copied[k] = v
		}
		out[i] = copied
	}
	return out
}
