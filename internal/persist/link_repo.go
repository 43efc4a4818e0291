package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// LinkRow is one persisted identity link.
type LinkRow struct {
	Name     string // normalized display name
	Steam64  string
	LinkedAt time.Time
}

// LinkRepo stores display-name → Steam64 links, the one piece of state
// that survives restarts.
type LinkRepo struct {
	db *DB
}

func NewLinkRepo(db *DB) *LinkRepo {
	return &LinkRepo{db: db}
}

// Resolve returns the linked Steam64 for a normalized name, or "" when
// no link exists.
func (r *LinkRepo) Resolve(ctx context.Context, name string) (string, error) {
	var steam64 string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT steam64 FROM identity_links WHERE name = $1`, name,
	).Scan(&steam64)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return steam64, nil
}

// Record creates or replaces a link. The upsert keeps read-modify-write
// races on the same name from losing updates.
func (r *LinkRepo) Record(ctx context.Context, name, steam64 string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO identity_links (name, steam64, linked_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET steam64 = EXCLUDED.steam64, linked_at = NOW()`,
		name, steam64,
	)
	return err
}
