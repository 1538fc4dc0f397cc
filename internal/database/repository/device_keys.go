package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrKeyNotFound is returned when no device key matches a lookup.
var ErrKeyNotFound = errors.New("device key not found")

// DeviceKeyRepo handles device_keys.
type DeviceKeyRepo struct {
	db *sql.DB
}

func NewDeviceKeyRepo(db *sql.DB) *DeviceKeyRepo {
	return &DeviceKeyRepo{db: db}
}

func (r *DeviceKeyRepo) Insert(ctx context.Context, k DeviceKey) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO device_keys(key_id, kind, user_id, public_key, sealed_private, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, k.KeyID, string(k.Kind), k.UserID, k.PublicKey, k.SealedPrivate, k.CreatedAt)
	return err
}

// Latest returns the most recently registered key of kind for userID.
func (r *DeviceKeyRepo) Latest(ctx context.Context, kind KeyKind, userID string) (DeviceKey, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT key_id, kind, user_id, public_key, sealed_private, created_at
	FROM device_keys
	WHERE kind = ? AND user_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT 1`, string(kind), userID)
	return scanKey(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (DeviceKey, error) {
	var k DeviceKey
	var kind string
	err := row.Scan(&k.KeyID, &kind, &k.UserID, &k.PublicKey, &k.SealedPrivate, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DeviceKey{}, ErrKeyNotFound
	}
	if err != nil {
		return DeviceKey{}, err
	}
	k.Kind = KeyKind(kind)
	return k, nil
}
