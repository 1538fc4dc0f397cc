package authn

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/idojourney/internal/database/repository"
	"github.com/jask/idojourney/internal/secrets"
)

// COSE algorithm identifier for EdDSA.
const algEdDSA = -8

// Prompter asks the user to approve use of a biometric key. A non-nil error
// cancels the operation.
type Prompter func(ctx context.Context, prompt PromptTexts) error

// Device is a software authenticator: Ed25519 keys generated on this machine,
// private halves sealed at rest and stored in the local database.
type Device struct {
	keys   *repository.DeviceKeyRepo
	sealer *secrets.Sealer
	origin string
	rpID   string

	// Prompt is consulted before a biometric signature. Nil approves.
	Prompt Prompter

	now func() time.Time
}

var _ Authenticator = (*Device)(nil)

func NewDevice(keys *repository.DeviceKeyRepo, sealer *secrets.Sealer, origin, rpID string) *Device {
	return &Device{
		keys:   keys,
		sealer: sealer,
		origin: origin,
		rpID:   rpID,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (d *Device) RegisterNativeBiometrics(ctx context.Context, userID string) (BiometricsRegistration, error) {
	const op = "register native biometrics"
	if strings.TrimSpace(userID) == "" {
		return BiometricsRegistration{}, &Error{Op: op, Kind: KindInvalidInput, Message: "user id required"}
	}
	key, pub, err := d.createKey(ctx, repository.KeyKindBiometric, uuid.NewString(), userID)
	if err != nil {
		return BiometricsRegistration{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	return BiometricsRegistration{KeyID: key.KeyID, PublicKey: base64.StdEncoding.EncodeToString(pub)}, nil
}

func (d *Device) AuthenticateNativeBiometrics(ctx context.Context, userIdentifier, challenge string, prompt PromptTexts) (BiometricsAssertion, error) {
	const op = "authenticate native biometrics"
	if strings.TrimSpace(userIdentifier) == "" || challenge == "" {
		return BiometricsAssertion{}, &Error{Op: op, Kind: KindInvalidInput, Message: "user identifier and challenge required"}
	}
	key, priv, err := d.loadKey(ctx, repository.KeyKindBiometric, userIdentifier)
	if err != nil {
		return BiometricsAssertion{}, keyError(op, userIdentifier, err)
	}
	if d.Prompt != nil {
		if err := d.Prompt(ctx, prompt); err != nil {
			return BiometricsAssertion{}, &Error{Op: op, Kind: KindCanceled, Message: "authentication canceled", Err: err}
		}
	}
	sig := ed25519.Sign(priv, []byte(challenge))
	return BiometricsAssertion{KeyID: key.KeyID, Signature: base64.StdEncoding.EncodeToString(sig)}, nil
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type credentialResponse struct {
	ClientDataJSON     string `json:"clientDataJSON"`
	AuthenticatorData  string `json:"authenticatorData,omitempty"`
	Signature          string `json:"signature,omitempty"`
	PublicKey          string `json:"publicKey,omitempty"`
	PublicKeyAlgorithm int    `json:"publicKeyAlgorithm,omitempty"`
	UserHandle         string `json:"userHandle"`
}

type credential struct {
	ID          string             `json:"id"`
	RawID       string             `json:"rawId"`
	Type        string             `json:"type"`
	DisplayName string             `json:"displayName,omitempty"`
	Response    credentialResponse `json:"response"`
}

func (d *Device) RegisterWebAuthn(ctx context.Context, username, displayName string) (WebAuthnRegistration, error) {
	const op = "register webauthn"
	if strings.TrimSpace(username) == "" {
		return WebAuthnRegistration{}, &Error{Op: op, Kind: KindInvalidInput, Message: "username required"}
	}
	id := uuid.New()
	credID := base64.RawURLEncoding.EncodeToString(id[:])
	_, pub, err := d.createKey(ctx, repository.KeyKindWebAuthn, credID, username)
	if err != nil {
		return WebAuthnRegistration{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	cd, err := d.clientData("webauthn.create")
	if err != nil {
		return WebAuthnRegistration{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	encoded, err := encodeCredential(credential{
		ID:          credID,
		RawID:       credID,
		Type:        "public-key",
		DisplayName: displayName,
		Response: credentialResponse{
			ClientDataJSON:     b64url(cd),
			PublicKey:          b64url(pub),
			PublicKeyAlgorithm: algEdDSA,
			UserHandle:         b64url([]byte(username)),
		},
	})
	if err != nil {
		return WebAuthnRegistration{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	return WebAuthnRegistration{EncodedResult: encoded}, nil
}

func (d *Device) AuthenticateWebAuthn(ctx context.Context, username string) (WebAuthnAssertion, error) {
	const op = "authenticate webauthn"
	if strings.TrimSpace(username) == "" {
		return WebAuthnAssertion{}, &Error{Op: op, Kind: KindInvalidInput, Message: "username required"}
	}
	key, priv, err := d.loadKey(ctx, repository.KeyKindWebAuthn, username)
	if err != nil {
		return WebAuthnAssertion{}, keyError(op, username, err)
	}
	cd, err := d.clientData("webauthn.get")
	if err != nil {
		return WebAuthnAssertion{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	authData := d.authenticatorData()
	cdHash := sha256.Sum256(cd)
	sig := ed25519.Sign(priv, append(append([]byte(nil), authData...), cdHash[:]...))
	encoded, err := encodeCredential(credential{
		ID:    key.KeyID,
		RawID: key.KeyID,
		Type:  "public-key",
		Response: credentialResponse{
			ClientDataJSON:    b64url(cd),
			AuthenticatorData: b64url(authData),
			Signature:         b64url(sig),
			UserHandle:        b64url([]byte(username)),
		},
	})
	if err != nil {
		return WebAuthnAssertion{}, &Error{Op: op, Kind: KindInternal, Err: err}
	}
	return WebAuthnAssertion{EncodedResult: encoded}, nil
}

// TriggerAction reports a risk action and returns the opaque token the journey
// expects back.
func (d *Device) TriggerAction(ctx context.Context, actionType string) (string, error) {
	if strings.TrimSpace(actionType) == "" {
		return "", &Error{Op: "trigger action", Kind: KindInvalidInput, Message: "action type required"}
	}
	return uuid.NewString(), nil
}

func (d *Device) createKey(ctx context.Context, kind repository.KeyKind, keyID, userID string) (repository.DeviceKey, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return repository.DeviceKey{}, nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return repository.DeviceKey{}, nil, err
	}
	sealed, err := d.sealer.Seal(string(kind), priv.Seed())
	if err != nil {
		return repository.DeviceKey{}, nil, fmt.Errorf("seal key: %w", err)
	}
	key := repository.DeviceKey{
		KeyID:         keyID,
		Kind:          kind,
		UserID:        userID,
		PublicKey:     der,
		SealedPrivate: sealed,
		CreatedAt:     d.now(),
	}
	if err := d.keys.Insert(ctx, key); err != nil {
		return repository.DeviceKey{}, nil, fmt.Errorf("store key: %w", err)
	}
	return key, der, nil
}

func (d *Device) loadKey(ctx context.Context, kind repository.KeyKind, userID string) (repository.DeviceKey, ed25519.PrivateKey, error) {
	key, err := d.keys.Latest(ctx, kind, userID)
	if err != nil {
		return repository.DeviceKey{}, nil, err
	}
	seed, err := d.sealer.Open(string(kind), key.SealedPrivate)
	if err != nil {
		return repository.DeviceKey{}, nil, fmt.Errorf("unseal key %s: %w", key.KeyID, err)
	}
	if len(seed) != ed25519.SeedSize {
		return repository.DeviceKey{}, nil, fmt.Errorf("unseal key %s: bad seed length", key.KeyID)
	}
	return key, ed25519.NewKeyFromSeed(seed), nil
}

func (d *Device) clientData(typ string) ([]byte, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	return json.Marshal(clientData{Type: typ, Challenge: b64url(challenge), Origin: d.origin})
}

// authenticatorData is rpIdHash || flags(UP|UV) || signCount.
func (d *Device) authenticatorData() []byte {
	rp := sha256.Sum256([]byte(d.rpID))
	out := make([]byte, 0, 37)
	out = append(out, rp[:]...)
	out = append(out, 0x05)
	return binary.BigEndian.AppendUint32(out, uint32(d.now().Unix()))
}

func keyError(op, user string, err error) error {
	if errors.Is(err, repository.ErrKeyNotFound) {
		return &Error{Op: op, Kind: KindKeyNotFound, Message: fmt.Sprintf("no key registered for %q", user), Err: err}
	}
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

func encodeCredential(c credential) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func b64url(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
