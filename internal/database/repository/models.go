package repository

import "time"

// Preference is one namespaced key/value row.
type Preference struct {
	Namespace string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// KeyKind distinguishes what a device key is bound to.
type KeyKind string

const (
	KeyKindBiometric KeyKind = "biometric"
	KeyKindWebAuthn  KeyKind = "webauthn"
)

// DeviceKey is a device-bound signing key. SealedPrivate is never stored in the clear.
type DeviceKey struct {
	KeyID         string
	Kind          KeyKind
	UserID        string
	PublicKey     []byte
	SealedPrivate []byte
	CreatedAt     time.Time
}
