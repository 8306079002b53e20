package repository

import (
	"context"
	"sync"

	"github.com/myphonelist/backend/internal/model"
)

// MemoryContactRepository keeps contacts in process memory. Nothing survives
// a restart; it backs tests and DATABASE_DRIVER=memory.
type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts []*model.Contact
	nextID   int64
	feed     *Feed
}

// NewMemoryContactRepository creates an empty in-memory store.
func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{feed: NewFeed()}
}

var _ Store = (*MemoryContactRepository)(nil)

// Ping always succeeds.
func (r *MemoryContactRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryContactRepository) Subscribe(ctx context.Context) (*Subscription, error) {
	return r.feed.Subscribe(ctx, r.ListAll)
}

func (r *MemoryContactRepository) ListAll(ctx context.Context) ([]*model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneContacts(r.contacts), nil
}

func (r *MemoryContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		cp := *r.contacts[i]
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryContactRepository) Insert(ctx context.Context, c *model.Contact) error {
	r.mu.Lock()
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.contacts = append(r.contacts, &cp)
	r.mu.Unlock()

	r.feed.Publish(ctx, r.ListAll)
	return nil
}

func (r *MemoryContactRepository) Update(ctx context.Context, c *model.Contact) error {
	r.mu.Lock()
	i := r.indexOf(c.ID)
	if i >= 0 {
		cp := *c
		r.contacts[i] = &cp
	}
	r.mu.Unlock()

	if i >= 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

func (r *MemoryContactRepository) Delete(ctx context.Context, c *model.Contact) error {
	r.mu.Lock()
	i := r.indexOf(c.ID)
	if i >= 0 {
		r.contacts = append(r.contacts[:i], r.contacts[i+1:]...)
	}
	r.mu.Unlock()

	if i >= 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

func (r *MemoryContactRepository) Close() error {
	r.feed.Close()
	return nil
}

// indexOf must be called with r.mu held.
func (r *MemoryContactRepository) indexOf(id int64) int {
	for i, c := range r.contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
