package service

import (
	"context"
	"io"

	"github.com/myphonelist/backend/internal/model"
	"github.com/myphonelist/backend/internal/repository"
)

// ContactService defines the business logic for the phone list.
type ContactService interface {
	// Add stores a new contact as given. No field is validated.
	Add(ctx context.Context, name, phoneNumber, email, tag string) (*model.Contact, error)

	Get(ctx context.Context, id int64) (*model.Contact, error)

	// List returns contacts matching query (see model.Contact.Matches) in insertion order.
	List(ctx context.Context, query string) ([]*model.Contact, error)

	Update(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, c *model.Contact) error

	// Subscribe returns the live view of all contacts.
	Subscribe(ctx context.Context) (*repository.Subscription, error)

	// AddFromSharedText creates a contact from [Name]/[Mobile]/[Home] text.
	// added is false, with a nil error, when the text does not describe a contact.
	AddFromSharedText(ctx context.Context, text string) (c *model.Contact, added bool, err error)

	// ImportVCF adds every card in r that has both a formatted name and a
	// telephone number and returns how many were added. Incomplete cards are
	// skipped. An unparsable stream returns *ImportError.
	ImportVCF(ctx context.Context, r io.Reader) (int, error)

	// ExportVCF writes every contact to w as vCard and returns how many were
	// written. An empty store returns ErrNothingToExport without writing.
	ExportVCF(ctx context.Context, w io.Writer) (int, error)

	// Backup exports into the configured storage under a fresh key.
	Backup(ctx context.Context) (*BackupResult, error)

	// Restore imports a previously stored export.
	Restore(ctx context.Context, key string) (int, error)
}

// BackupResult describes a stored export.
type BackupResult struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Exported int    `json:"exported"`
}
