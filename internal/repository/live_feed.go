package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/myphonelist/backend/internal/model"
)

// SnapshotFunc loads the full, ordered list of contacts.
type SnapshotFunc func(ctx context.Context) ([]*model.Contact, error)

// Feed fans out full contact snapshots to subscribers.
//
// Loading a snapshot and delivering it happen under one lock, so a later
// delivery never reflects fewer writes than an earlier one. Each subscriber
// buffers a single snapshot; when it falls behind, the stale snapshot is
// replaced by the newest one.
type Feed struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Subscription is a handle on the live view. Snapshots arrive on C; C is
// closed after Close or when the owning store shuts down.
type Subscription struct {
	C <-chan []*model.Contact

	ch   chan []*model.Contact
	feed *Feed
	once sync.Once
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.feed.remove(s) })
}

func (s *Subscription) deliver(snapshot []*model.Contact) {
	select {
	case s.ch <- snapshot:
		return
	default:
	}
	// drop the undelivered stale snapshot
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snapshot:
	default:
	}
}

// Subscribe registers a new subscriber primed with the current snapshot.
func (f *Feed) Subscribe(ctx context.Context, load SnapshotFunc) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}
	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan []*model.Contact, 1)
	sub := &Subscription{C: ch, ch: ch, feed: f}
	sub.deliver(initial)
	f.subs[sub] = struct{}{}
	return sub, nil
}

// Publish loads a fresh snapshot and hands a private copy to every subscriber.
// The load ignores cancellation of ctx: the write it follows has already
// been committed. A failed load is logged and skipped.
func (f *Feed) Publish(ctx context.Context, load SnapshotFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || len(f.subs) == 0 {
		return
	}
	snapshot, err := load(context.WithoutCancel(ctx))
	if err != nil {
		slog.Warn("live feed snapshot failed", "error", err, "subscribers", len(f.subs))
		return
	}
	for sub := range f.subs {
		sub.deliver(cloneContacts(snapshot))
	}
}

// Len returns the number of active subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription. Later Subscribe calls fail with ErrFeedClosed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		close(sub.ch)
		delete(f.subs, sub)
	}
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.ch)
}

func cloneContacts(in []*model.Contact) []*model.Contact {
	out := make([]*model.Contact, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}
