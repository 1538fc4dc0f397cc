package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrCredentialNotFound  = errors.New("credential not found")
)

// Interaction is the server-side state of one running journey.
type Interaction struct {
	ID        string    `json:"id"`
	JourneyID string    `json:"journey_id"`
	FlowID    string    `json:"flow_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Step      string    `json:"step"`
	UserID    string    `json:"user_id,omitempty"`
	Challenge string    `json:"challenge,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential is a public key registered by a user's device.
type Credential struct {
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
	Kind      string `json:"kind"`
}

// Store keeps interactions (with expiry) and registered credentials.
type Store interface {
	SaveInteraction(ctx context.Context, in Interaction, ttl time.Duration) error
	LoadInteraction(ctx context.Context, id string) (Interaction, error)
	DeleteInteraction(ctx context.Context, id string) error
	AddCredential(ctx context.Context, userID string, cred Credential) error
	Credential(ctx context.Context, userID, keyID string) (Credential, error)
}

// MemoryStore is a Store for a single sandbox process.
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	interactions map[string]memoryEntry
	credentials  map[string]map[string]Credential
}

type memoryEntry struct {
	in        Interaction
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          time.Now,
		interactions: make(map[string]memoryEntry),
		credentials:  make(map[string]map[string]Credential),
	}
}

func (s *MemoryStore) SaveInteraction(_ context.Context, in Interaction, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[in.ID] = memoryEntry{in: in, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) LoadInteraction(_ context.Context, id string) (Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.interactions[id]
	if !ok {
		return Interaction{}, ErrInteractionNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.interactions, id)
		return Interaction{}, ErrInteractionNotFound
	}
	return e.in, nil
}

func (s *MemoryStore) DeleteInteraction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.interactions, id)
	return nil
}

func (s *MemoryStore) AddCredential(_ context.Context, userID string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := s.credentials[userID]
	if creds == nil {
		creds = make(map[string]Credential)
		s.credentials[userID] = creds
	}
	creds[cred.KeyID] = cred
	return nil
}

func (s *MemoryStore) Credential(_ context.Context, userID, keyID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[userID][keyID]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}
