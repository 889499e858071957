package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchive_StoreOpenList(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a.clock = func() time.Time { return clock }
	profile := uuid.New()

	first, err := a.Store(ctx, profile, "march/statement.csv", "Revolut", "fp-1", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), first.Size)
	assert.NotContains(t, first.Path, "/")

	// same content hash: nothing new is written
	again, err := a.Store(ctx, profile, "copy.csv", "Revolut", "fp-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	clock = clock.Add(time.Hour)
	second, err := a.Store(ctx, profile, "wise.csv", "Wise", "fp-2", strings.NewReader("x"))
	require.NoError(t, err)

	list, err := a.List(ctx, profile)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	rc, info, err := a.Open(ctx, profile, first.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.Equal(t, "fp-1", info.ContentHash)

	other, err := a.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLocalArchive_Delete(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	profile := uuid.New()

	info, err := a.Store(ctx, profile, "s.csv", "Italian bank", "", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, profile, info.ID))

	_, _, err = a.Open(ctx, profile, info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, a.Delete(ctx, profile, info.ID), ErrNotFound)
}
