package repository

import (
	"context"

	"github.com/myphonelist/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// ContactRepository is the persistence interface for contacts.
//
// Update and Delete against an id that does not exist are silent no-ops.
// Every I/O failure is returned as a *StorageError.
type ContactRepository interface {
	// Subscribe returns a live view of all contacts. The subscription first
	// receives the current snapshot, then a full snapshot after every
	// successful mutation.
	Subscribe(ctx context.Context) (*Subscription, error)

	// ListAll returns every contact in insertion order.
	ListAll(ctx context.Context) ([]*model.Contact, error)

	GetByID(ctx context.Context, id int64) (*model.Contact, error)

	// Insert persists c and sets c.ID to the newly assigned key.
	Insert(ctx context.Context, c *model.Contact) error
	Update(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, c *model.Contact) error

	// Close ends all subscriptions and releases the backend.
	Close() error
}

// Store is a ContactRepository that can also report its liveness.
type Store interface {
	ContactRepository
	DB
}
