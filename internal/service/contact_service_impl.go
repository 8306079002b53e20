package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"github.com/myphonelist/backend/internal/metrics"
	"github.com/myphonelist/backend/internal/model"
	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/internal/storage"
)

// VCardContentType is the media type used for exported files.
const VCardContentType = "text/vcard"

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo    repository.ContactRepository
	storage storage.Storage
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the ContactService.
type Option func(*contactServiceImpl)

// WithStorage sets the destination used by Backup and Restore.
func WithStorage(st storage.Storage) Option {
	return func(s *contactServiceImpl) { s.storage = st }
}

// WithMetrics records store and import/export activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *contactServiceImpl) { s.metrics = m }
}

// NewContactService creates a ContactService backed by the given repository.
func NewContactService(repo repository.ContactRepository, opts ...Option) ContactService {
	s := &contactServiceImpl{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *contactServiceImpl) Add(ctx context.Context, name, phoneNumber, email, tag string) (*model.Contact, error) {
	c := &model.Contact{Name: name, PhoneNumber: phoneNumber, Email: email, Tag: tag}
	err := s.repo.Insert(ctx, c)
	s.metrics.StoreOp("insert", err)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *contactServiceImpl) Get(ctx context.Context, id int64) (*model.Contact, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *contactServiceImpl) List(ctx context.Context, query string) ([]*model.Contact, error) {
	contacts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return model.FilterContacts(contacts, query), nil
}

func (s *contactServiceImpl) Update(ctx context.Context, c *model.Contact) error {
	err := s.repo.Update(ctx, c)
	s.metrics.StoreOp("update", err)
	return err
}

func (s *contactServiceImpl) Delete(ctx context.Context, c *model.Contact) error {
	err := s.repo.Delete(ctx, c)
	s.metrics.StoreOp("delete", err)
	return err
}

func (s *contactServiceImpl) Subscribe(ctx context.Context) (*repository.Subscription, error) {
	return s.repo.Subscribe(ctx)
}

// AddFromSharedText only stores contacts whose name and phone number are
// both non-empty, like every other import path.
func (s *contactServiceImpl) AddFromSharedText(ctx context.Context, text string) (*model.Contact, bool, error) {
	info, ok := ExtractContactInfo(text)
	if !ok || info.Name == "" || info.PhoneNumber == "" {
		s.metrics.SharedText(false)
		return nil, false, nil
	}
	c, err := s.Add(ctx, info.Name, info.PhoneNumber, info.Email, info.Tag)
	if err != nil {
		return nil, false, err
	}
	s.metrics.SharedText(true)
	return c, true, nil
}

func (s *contactServiceImpl) ImportVCF(ctx context.Context, r io.Reader) (int, error) {
	src := &blankTracker{r: r}
	dec := vcard.NewDecoder(src)

	var added, skipped, cards int
	defer func() { s.metrics.Imported(added, skipped) }()

	for {
		if err := ctx.Err(); err != nil {
			return added, &ImportError{Added: added, Err: err}
		}
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, &ImportError{Added: added, Err: err}
		}
		cards++

		c := contactFromCard(card)
		if c.Name == "" || c.PhoneNumber == "" {
			skipped++
			continue
		}
		err = s.repo.Insert(ctx, c)
		s.metrics.StoreOp("insert", err)
		if err != nil {
			return added, &ImportError{Added: added, Err: err}
		}
		added++
	}

	if cards == 0 && src.nonBlank {
		return 0, &ImportError{Err: errNoVCardData}
	}
	slog.Info("vcf imported", "added", added, "skipped", skipped)
	return added, nil
}

func (s *contactServiceImpl) ExportVCF(ctx context.Context, w io.Writer) (int, error) {
	contacts, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, ErrNothingToExport
	}

	// encode everything first so an encoding failure writes nothing
	var buf bytes.Buffer
	enc := vcard.NewEncoder(&buf)
	for _, c := range contacts {
		if err := enc.Encode(cardFromContact(c)); err != nil {
			return 0, &ExportError{Err: fmt.Errorf("encode contact %d: %w", c.ID, err)}
		}
	}
	if _, err := buf.WriteTo(w); err != nil {
		return 0, &ExportError{Err: err}
	}

	s.metrics.Exported(len(contacts))
	return len(contacts), nil
}

func (s *contactServiceImpl) Backup(ctx context.Context) (*BackupResult, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}

	var buf bytes.Buffer
	n, err := s.ExportVCF(ctx, &buf)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/contacts_export-%s-%s.vcf",
		s.now().UTC().Format("20060102T150405Z"), uuid.NewString())
	url, err := s.storage.Save(ctx, key, &buf, VCardContentType)
	if err != nil {
		return nil, &ExportError{Err: err}
	}
	slog.Info("vcf backup stored", "key", key, "exported", n)
	return &BackupResult{Key: key, URL: url, Exported: n}, nil
}

func (s *contactServiceImpl) Restore(ctx context.Context, key string) (int, error) {
	if s.storage == nil {
		return 0, ErrNoStorage
	}
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open backup %s: %w", key, err)
	}
	defer rc.Close()
	return s.ImportVCF(ctx, rc)
}
