package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/postgres"
)

func TestOpen_MemoryWhenNoDatabase(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "memory", s.Backend())
	assert.Nil(t, s.DB)
	assert.Nil(t, s.Cache)

	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p, err := profile.New(profile.NewProfileParams{UID: "alice", Email: "alice@example.com"}, now)
	require.NoError(t, err)
	require.NoError(t, s.Profiles.Create(ctx, p))

	got, err := s.Profiles.GetByUID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	snaps, err := s.Profiles.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestOpen_BadDatabaseURL(t *testing.T) {
	_, err := Open(context.Background(), Options{Postgres: postgres.Config{URL: "postgres://%zz"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}
