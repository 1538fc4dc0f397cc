package sandbox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "idojourney-sandbox"

var ErrTokenMismatch = errors.New("state token does not match interaction")

// TokenIssuer signs the per-interaction state tokens handed to clients.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type stateClaims struct {
	Step string `json:"stp,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenIssuer uses secret for HS256 signatures. An empty secret gets a
// random one, so tokens do not survive a restart.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if ttl <= 0 {
		return nil, errors.New("invalid token TTL")
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return &TokenIssuer{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a token bound to interactionID and the step it was issued for.
func (t *TokenIssuer) Issue(interactionID, step string) (string, error) {
	now := t.now()
	claims := stateClaims{
		Step: step,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   interactionID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature, expiry and binding of token. It returns the
// step the token was issued for.
func (t *TokenIssuer) Verify(token, interactionID string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := parser.ParseWithClaims(token, &stateClaims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*stateClaims)
	if !ok || !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.Subject != interactionID {
		return "", ErrTokenMismatch
	}
	return claims.Step, nil
}
