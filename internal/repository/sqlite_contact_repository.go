package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/myphonelist/backend/internal/model"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS contacts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	tag          TEXT NOT NULL DEFAULT ''
)`

// SQLiteContactRepository is the device-local ContactRepository. The schema
// is created on open; there is no migration path beyond the current schema.
type SQLiteContactRepository struct {
	db   *sql.DB
	path string
	feed *Feed
}

var _ Store = (*SQLiteContactRepository)(nil)

// NewSQLiteContactRepository opens (or creates) the database file at path.
func NewSQLiteContactRepository(ctx context.Context, path string) (*SQLiteContactRepository, error) {
	if path == "" {
		path = "phonelist.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection serialises writers and keeps ":memory:" databases intact
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create contacts table: %w", err)
	}
	return &SQLiteContactRepository{db: db, path: path, feed: NewFeed()}, nil
}

// Path returns the configured database path.
func (r *SQLiteContactRepository) Path() string { return r.path }

func (r *SQLiteContactRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteContactRepository) Subscribe(ctx context.Context) (*Subscription, error) {
	return r.feed.Subscribe(ctx, r.ListAll)
}

// ListAll returns every contact ordered by id, which is insertion order.
func (r *SQLiteContactRepository) ListAll(ctx context.Context) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, phone_number, email, tag FROM contacts ORDER BY id`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := []*model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Email, &c.Tag); err != nil {
			return nil, storageErr("list", err)
		}
		contacts = append(contacts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return contacts, nil
}

func (r *SQLiteContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, phone_number, email, tag FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Email, &c.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return &c, nil
}

func (r *SQLiteContactRepository) Insert(ctx context.Context, c *model.Contact) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (name, phone_number, email, tag) VALUES (?, ?, ?, ?)`,
		c.Name, c.PhoneNumber, c.Email, c.Tag,
	)
	if err != nil {
		return storageErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert", err)
	}
	c.ID = id

	r.feed.Publish(ctx, r.ListAll)
	return nil
}

// Update replaces every field of the row with c.ID. A missing row is a no-op.
func (r *SQLiteContactRepository) Update(ctx context.Context, c *model.Contact) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, phone_number = ?, email = ?, tag = ? WHERE id = ?`,
		c.Name, c.PhoneNumber, c.Email, c.Tag, c.ID,
	)
	if err != nil {
		return storageErr("update", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

// Delete removes the row with c.ID. A missing row is a no-op.
func (r *SQLiteContactRepository) Delete(ctx context.Context, c *model.Contact) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, c.ID)
	if err != nil {
		return storageErr("delete", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

func (r *SQLiteContactRepository) Close() error {
	r.feed.Close()
	return r.db.Close()
}
