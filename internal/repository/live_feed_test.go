package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myphonelist/backend/internal/model"
	"go.uber.org/goleak"
)

func staticSnapshot(contacts ...*model.Contact) SnapshotFunc {
	return func(ctx context.Context) ([]*model.Contact, error) {
		return contacts, nil
	}
}

func receive(t *testing.T, sub *Subscription) []*model.Contact {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestFeed_SubscribeDeliversInitialSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := NewFeed()
	want := []*model.Contact{{ID: 1, Name: "Alice", PhoneNumber: "555"}}
	sub, err := f.Subscribe(context.Background(), staticSnapshot(want...))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if diff := cmp.Diff(want, receive(t, sub)); diff != "" {
		t.Errorf("initial snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFeed_SubscribeLoadError(t *testing.T) {
	f := NewFeed()
	_, err := f.Subscribe(context.Background(), func(ctx context.Context) ([]*model.Contact, error) {
		return nil, errors.New("disk gone")
	})
	if err == nil {
		t.Fatal("expected error from failing snapshot load")
	}
	if f.Len() != 0 {
		t.Errorf("expected no subscribers after failed subscribe, got %d", f.Len())
	}
}

func TestFeed_CoalescesToNewestSnapshot(t *testing.T) {
	f := NewFeed()
	sub, err := f.Subscribe(context.Background(), staticSnapshot())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	// nobody reads: initial, first and second publish collapse into the last one
	f.Publish(context.Background(), staticSnapshot(&model.Contact{ID: 1}))
	f.Publish(context.Background(), staticSnapshot(&model.Contact{ID: 1}, &model.Contact{ID: 2}))

	got := receive(t, sub)
	if len(got) != 2 {
		t.Fatalf("expected newest snapshot with 2 contacts, got %d", len(got))
	}
	select {
	case extra := <-sub.C:
		t.Errorf("expected no further snapshot, got %v", extra)
	default:
	}
}

func TestFeed_PublishGivesEachSubscriberACopy(t *testing.T) {
	f := NewFeed()
	a, _ := f.Subscribe(context.Background(), staticSnapshot())
	b, _ := f.Subscribe(context.Background(), staticSnapshot())
	defer a.Close()
	defer b.Close()
	receive(t, a)
	receive(t, b)

	f.Publish(context.Background(), staticSnapshot(&model.Contact{ID: 7, Name: "Zed"}))
	snapA := receive(t, a)
	snapB := receive(t, b)

	snapA[0].Name = "mutated"
	if snapB[0].Name != "Zed" {
		t.Errorf("subscribers share snapshot memory: got %q", snapB[0].Name)
	}
}

func TestFeed_PublishLoadFailureKeepsSubscribers(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(context.Background(), staticSnapshot())
	defer sub.Close()
	receive(t, sub)

	f.Publish(context.Background(), func(ctx context.Context) ([]*model.Contact, error) {
		return nil, errors.New("read failed")
	})
	select {
	case snap := <-sub.C:
		t.Errorf("expected no delivery after failed load, got %v", snap)
	default:
	}
	if f.Len() != 1 {
		t.Errorf("expected subscriber to survive, got %d", f.Len())
	}
}

func TestFeed_PublishIgnoresCallerCancellation(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(context.Background(), staticSnapshot())
	defer sub.Close()
	receive(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Publish(ctx, func(ctx context.Context) ([]*model.Contact, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []*model.Contact{{ID: 1}}, nil
	})
	if got := receive(t, sub); len(got) != 1 {
		t.Errorf("expected snapshot with 1 contact, got %v", got)
	}
}

func TestSubscription_CloseIsIdempotentAndClosesChannel(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(context.Background(), staticSnapshot())
	receive(t, sub)

	sub.Close()
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after Close")
	}
	if f.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", f.Len())
	}
	// publishing after unsubscribe must not panic
	f.Publish(context.Background(), staticSnapshot(&model.Contact{ID: 1}))
}

func TestFeed_CloseEndsSubscriptions(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(context.Background(), staticSnapshot())
	receive(t, sub)

	f.Close()
	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after feed Close")
	}
	sub.Close() // after feed close, still safe

	if _, err := f.Subscribe(context.Background(), staticSnapshot()); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("expected ErrFeedClosed, got %v", err)
	}
}

func TestFeed_ConcurrentPublishAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := NewFeed()
	subs := make([]*Subscription, 5)
	for i := range subs {
		sub, err := f.Subscribe(context.Background(), staticSnapshot())
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		subs[i] = sub
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			f.Publish(context.Background(), staticSnapshot(&model.Contact{ID: int64(n)}))
		}(i)
	}
	for _, sub := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			s.Close()
		}(sub)
	}
	wg.Wait()

	if f.Len() != 0 {
		t.Errorf("expected all subscribers removed, got %d", f.Len())
	}
}
