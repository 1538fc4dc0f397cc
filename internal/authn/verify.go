package authn

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrBadSignature = errors.New("signature does not verify")

// ParsePublicKey decodes a base64 PKIX Ed25519 public key as returned by
// RegisterNativeBiometrics.
func ParsePublicKey(b64 string) (ed25519.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parse public key: %T is not ed25519", key)
	}
	return pub, nil
}

// VerifyChallenge checks a base64 signature over challenge.
func VerifyChallenge(pub ed25519.PublicKey, challenge, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(challenge), sig) {
		return ErrBadSignature
	}
	return nil
}
