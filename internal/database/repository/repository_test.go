package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/idojourney/internal/database"
	"github.com/jask/idojourney/internal/database/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPreferenceUpsertOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewPreferenceRepo(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, repository.Preference{Namespace: "ns", Key: "journey_id", Value: "a", UpdatedAt: database.Now()}))
	require.NoError(t, repo.Upsert(ctx, repository.Preference{Namespace: "ns", Key: "journey_id", Value: "b", UpdatedAt: database.Now()}))

	got, ok, err := repo.Get(ctx, "ns", "journey_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", got.Value)
}

func TestPreferenceNamespacesAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewPreferenceRepo(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, repository.Preference{Namespace: "one", Key: "flow_id", Value: "x", UpdatedAt: database.Now()}))

	_, ok, err := repo.Get(ctx, "two", "flow_id")
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := repo.Get(ctx, "one", "flow_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "x", got.Value)
}

func TestDeviceKeyLatestPicksNewest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewDeviceKeyRepo(openTestDB(t))

	base := database.Now()
	for i, id := range []string{"k1", "k2"} {
		require.NoError(t, repo.Insert(ctx, repository.DeviceKey{
			KeyID:         id,
			Kind:          repository.KeyKindBiometric,
			UserID:        "alice",
			PublicKey:     []byte{byte(i)},
			SealedPrivate: []byte{0xAA},
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := repo.Latest(ctx, repository.KeyKindBiometric, "alice")
	require.NoError(t, err)
	require.Equal(t, "k2", got.KeyID)
	require.Equal(t, repository.KeyKindBiometric, got.Kind)

	_, err = repo.Latest(ctx, repository.KeyKindWebAuthn, "alice")
	require.ErrorIs(t, err, repository.ErrKeyNotFound)
}
