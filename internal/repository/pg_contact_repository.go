package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/myphonelist/backend/internal/model"
)

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
// The contacts table is created by cmd/migrate.
type PgContactRepository struct {
	pool *pgxpool.Pool
	feed *Feed
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
// Close closes the pool.
func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool, feed: NewFeed()}
}

// Ensure PgContactRepository implements Store at compile time.
var _ Store = (*PgContactRepository)(nil)

func (r *PgContactRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgContactRepository) Subscribe(ctx context.Context) (*Subscription, error) {
	return r.feed.Subscribe(ctx, r.ListAll)
}

// ListAll returns every contact ordered by id.
func (r *PgContactRepository) ListAll(ctx context.Context) ([]*model.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, phone_number, email, tag FROM contacts ORDER BY id`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

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

func (r *PgContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone_number, email, tag FROM contacts WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Email, &c.Tag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return &c, nil
}

// Insert adds a contacts row and populates c.ID from the RETURNING clause.
func (r *PgContactRepository) Insert(ctx context.Context, c *model.Contact) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO contacts (name, phone_number, email, tag)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		c.Name, c.PhoneNumber, c.Email, c.Tag,
	).Scan(&c.ID)
	if err != nil {
		return storageErr("insert", err)
	}
	r.feed.Publish(ctx, r.ListAll)
	return nil
}

// Update replaces every field of the row with c.ID. A missing row is a no-op.
func (r *PgContactRepository) Update(ctx context.Context, c *model.Contact) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET name=$1, phone_number=$2, email=$3, tag=$4 WHERE id=$5`,
		c.Name, c.PhoneNumber, c.Email, c.Tag, c.ID,
	)
	if err != nil {
		return storageErr("update", err)
	}
	if tag.RowsAffected() > 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

// Delete removes the row with c.ID. A missing row is a no-op.
func (r *PgContactRepository) Delete(ctx context.Context, c *model.Contact) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id=$1`, c.ID)
	if err != nil {
		return storageErr("delete", err)
	}
	if tag.RowsAffected() > 0 {
		r.feed.Publish(ctx, r.ListAll)
	}
	return nil
}

func (r *PgContactRepository) Close() error {
	r.feed.Close()
	r.pool.Close()
	return nil
}
