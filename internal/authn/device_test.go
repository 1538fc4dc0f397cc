package authn

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/idojourney/internal/database"
	"github.com/jask/idojourney/internal/database/repository"
	"github.com/jask/idojourney/internal/secrets"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sealer, err := secrets.NewSealerFromSeed(bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)
	return NewDevice(repository.NewDeviceKeyRepo(db), sealer, "https://idojourney.local", "idojourney.local")
}

func TestBiometricsRegisterThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t)

	reg, err := d.RegisterNativeBiometrics(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, reg.KeyID)

	pub, err := ParsePublicKey(reg.PublicKey)
	require.NoError(t, err)

	var prompted PromptTexts
	d.Prompt = func(_ context.Context, p PromptTexts) error { prompted = p; return nil }

	got, err := d.AuthenticateNativeBiometrics(ctx, "alice", "challenge-123", DefaultPrompt)
	require.NoError(t, err)
	require.Equal(t, reg.KeyID, got.KeyID)
	require.Equal(t, DefaultPrompt, prompted)
	require.NoError(t, VerifyChallenge(pub, "challenge-123", got.Signature))
	require.ErrorIs(t, VerifyChallenge(pub, "other", got.Signature), ErrBadSignature)
}

func TestBiometricsAuthenticateErrors(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t)

	_, err := d.AuthenticateNativeBiometrics(ctx, "nobody", "c", DefaultPrompt)
	require.True(t, IsKind(err, KindKeyNotFound))
	require.Contains(t, err.Error(), `no key registered for "nobody"`)

	_, err = d.AuthenticateNativeBiometrics(ctx, "", "c", DefaultPrompt)
	require.True(t, IsKind(err, KindInvalidInput))

	_, err = d.RegisterNativeBiometrics(ctx, "bob")
	require.NoError(t, err)
	d.Prompt = func(context.Context, PromptTexts) error { return errors.New("user said no") }
	_, err = d.AuthenticateNativeBiometrics(ctx, "bob", "c", DefaultPrompt)
	require.True(t, IsKind(err, KindCanceled))
}

func TestWebAuthnAssertionVerifiesAgainstRegisteredKey(t *testing.T) {
	ctx := context.Background()
	d := newTestDevice(t)

	reg, err := d.RegisterWebAuthn(ctx, "carol", "Carol C")
	require.NoError(t, err)
	var created credential
	decodeCredential(t, reg.EncodedResult, &created)
	require.Equal(t, "public-key", created.Type)
	require.Equal(t, algEdDSA, created.Response.PublicKeyAlgorithm)
	require.Equal(t, "Carol C", created.DisplayName)

	var cd clientData
	require.NoError(t, json.Unmarshal(mustB64URL(t, created.Response.ClientDataJSON), &cd))
	require.Equal(t, "webauthn.create", cd.Type)
	require.Equal(t, "https://idojourney.local", cd.Origin)

	assertion, err := d.AuthenticateWebAuthn(ctx, "carol")
	require.NoError(t, err)
	var got credential
	decodeCredential(t, assertion.EncodedResult, &got)
	require.Equal(t, created.ID, got.ID)

	pub, err := ParsePublicKey(base64.StdEncoding.EncodeToString(mustB64URL(t, created.Response.PublicKey)))
	require.NoError(t, err)
	authData := mustB64URL(t, got.Response.AuthenticatorData)
	cdHash := sha256.Sum256(mustB64URL(t, got.Response.ClientDataJSON))
	msg := append(append([]byte(nil), authData...), cdHash[:]...)
	require.True(t, ed25519.Verify(pub, msg, mustB64URL(t, got.Response.Signature)))

	_, err = d.AuthenticateWebAuthn(ctx, "dave")
	require.True(t, IsKind(err, KindKeyNotFound))
}

func TestTriggerAction(t *testing.T) {
	d := newTestDevice(t)
	tok, err := d.TriggerAction(context.Background(), "login")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	_, err = d.TriggerAction(context.Background(), "")
	require.True(t, IsKind(err, KindInvalidInput))
}

func decodeCredential(t *testing.T, encoded string, out *credential) {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func mustB64URL(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}
