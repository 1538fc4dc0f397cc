package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PreferenceRepo handles the preferences table.
type PreferenceRepo struct {
	db *sql.DB
}

func NewPreferenceRepo(db *sql.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

func (r *PreferenceRepo) Upsert(ctx context.Context, p Preference) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO preferences(namespace, key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(namespace, key) DO UPDATE SET
	 value=excluded.value,
	 updated_at=excluded.updated_at;
	`, p.Namespace, p.Key, p.Value, p.UpdatedAt)
	return err
}

// Get returns the stored preference and whether it exists.
func (r *PreferenceRepo) Get(ctx context.Context, namespace, key string) (Preference, bool, error) {
	p := Preference{Namespace: namespace, Key: key}
	var updated time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM preferences WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&p.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, err
	}
	p.UpdatedAt = updated
	return p, true, nil
}
