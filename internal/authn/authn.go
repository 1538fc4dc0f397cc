// Package authn provides the device-side authenticators a journey calls into:
// native biometric key registration and signing, WebAuthn ceremonies, and
// risk action triggers.
package authn

import (
	"context"
	"errors"
	"fmt"
)

// PromptTexts is shown to the user before a biometric key is used.
type PromptTexts struct {
	Title    string
	Subtitle string
	Cancel   string
}

// DefaultPrompt is the copy used for biometric authentication.
var DefaultPrompt = PromptTexts{
	Title:    "Authentication",
	Subtitle: "Confirm it's you to continue",
	Cancel:   "Abort",
}

type WebAuthnRegistration struct {
	EncodedResult string
}

type WebAuthnAssertion struct {
	EncodedResult string
}

type BiometricsRegistration struct {
	KeyID     string
	PublicKey string
}

type BiometricsAssertion struct {
	KeyID     string
	Signature string
}

// Authenticator is the auxiliary auth client used by journey steps.
type Authenticator interface {
	RegisterWebAuthn(ctx context.Context, username, displayName string) (WebAuthnRegistration, error)
	AuthenticateWebAuthn(ctx context.Context, username string) (WebAuthnAssertion, error)
	RegisterNativeBiometrics(ctx context.Context, userID string) (BiometricsRegistration, error)
	AuthenticateNativeBiometrics(ctx context.Context, userIdentifier, challenge string, prompt PromptTexts) (BiometricsAssertion, error)
	TriggerAction(ctx context.Context, actionType string) (string, error)
}

// Kind classifies authenticator failures.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindKeyNotFound  Kind = "key_not_found"
	KindCanceled     Kind = "canceled"
	KindInternal     Kind = "internal"
)

// Error is returned by every Authenticator operation.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an authn Error of kind k.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
