// Package prefs persists the handful of values the client remembers between runs.
package prefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/idojourney/internal/database"
	"github.com/jask/idojourney/internal/database/repository"
)

const (
	// DefaultNamespace scopes every key written by the client.
	DefaultNamespace = "idojourney.prefs"

	KeyJourneyID = "journey_id"
	KeyFlowID    = "flow_id"
)

// Store is a namespaced string key/value store. Writes are synchronous and overwrite.
type Store struct {
	repo      *repository.PreferenceRepo
	namespace string
}

func NewStore(repo *repository.PreferenceRepo, namespace string) *Store {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	return &Store{repo: repo, namespace: namespace}
}

// Get returns the stored value for key, or def when nothing is stored or the read fails.
func (s *Store) Get(ctx context.Context, key, def string) string {
	p, ok, err := s.repo.Get(ctx, s.namespace, key)
	if err != nil || !ok {
		return def
	}
	return p.Value
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("prefs: empty key")
	}
	err := s.repo.Upsert(ctx, repository.Preference{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: database.Now(),
	})
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Namespace() string { return s.namespace }
