package db

import (
	"context"
	"database/sql"
	"fmt"

	"roomhub/internal/app/user"
)

// Directory implements user.Directory over the users table.
type Directory struct {
	db *sql.DB
}

var _ user.Directory = (*Directory)(nil)

// NewDirectory wraps an open database handle.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query user %s: %w", id, err)
	}
	return ok, nil
}

func (d *Directory) Lookup(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, username, firstname FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	found := make(map[string]user.User, len(ids))
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Firstname); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		found[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]user.User, 0, len(found))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
