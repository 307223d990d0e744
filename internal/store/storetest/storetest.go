// Package storetest holds behaviour tests shared by every store.Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
)

// Run exercises a fresh store from newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("AddAndListPreservesOrder", func(t *testing.T) { testAddAndList(t, newStore(t)) })
	t.Run("AddExistingUpdatesName", func(t *testing.T) { testAddExisting(t, newStore(t)) })
	t.Run("DeleteRemovesStatus", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("DeleteMissing", func(t *testing.T) { testDeleteMissing(t, newStore(t)) })
	t.Run("StatusUpsert", func(t *testing.T) { testStatusUpsert(t, newStore(t)) })
	t.Run("StatusForUnregisteredDropped", func(t *testing.T) { testStatusUnregistered(t, newStore(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, newStore(t)) })
}

func name(s string) *string { return &s }

func testAddAndList(t *testing.T, s store.Store) {
	ctx := context.Background()

	regs, err := s.ListVideos(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)

	_, created, err := s.AddVideo(ctx, "https://youtu.be/zzzzzzzzzzz", "zzzzzzzzzzz", name("third wave"))
	require.NoError(t, err)
	assert.True(t, created)
	_, _, err = s.AddVideo(ctx, "aaaaaaaaaaa", "aaaaaaaaaaa", nil)
	require.NoError(t, err)
	_, _, err = s.AddVideo(ctx, "mmmmmmmmmmm", "mmmmmmmmmmm", name("news"))
	require.NoError(t, err)

	regs, err = s.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, []string{"zzzzzzzzzzz", "aaaaaaaaaaa", "mmmmmmmmmmm"},
		[]string{regs[0].VideoID, regs[1].VideoID, regs[2].VideoID})
	assert.Equal(t, "https://youtu.be/zzzzzzzzzzz", regs[0].Raw)
	require.NotNil(t, regs[0].Name)
	assert.Equal(t, "third wave", *regs[0].Name)
	assert.Nil(t, regs[1].Name)
	assert.False(t, regs[0].AddedAt.IsZero())
}

func testAddExisting(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, _, err := s.AddVideo(ctx, "aaaaaaaaaaa", "aaaaaaaaaaa", name("old"))
	require.NoError(t, err)
	_, _, err = s.AddVideo(ctx, "bbbbbbbbbbb", "bbbbbbbbbbb", nil)
	require.NoError(t, err)

	reg, created, err := s.AddVideo(ctx, "https://www.youtube.com/watch?v=aaaaaaaaaaa", "aaaaaaaaaaa", name("new"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "aaaaaaaaaaa", reg.Raw, "raw input of the first registration is kept")
	require.NotNil(t, reg.Name)
	assert.Equal(t, "new", *reg.Name)

	regs, err := s.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "aaaaaaaaaaa", regs[0].VideoID, "re-adding does not move the video")
	assert.Equal(t, "new", *regs[0].Name)

	_, _, err = s.AddVideo(ctx, "aaaaaaaaaaa", "aaaaaaaaaaa", nil)
	require.NoError(t, err)
	regs, err = s.ListVideos(ctx)
	require.NoError(t, err)
	assert.Nil(t, regs[0].Name, "a missing name clears the previous one")
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, _, err := s.AddVideo(ctx, "aaaaaaaaaaa", "aaaaaaaaaaa", name("a"))
	require.NoError(t, err)
	require.NoError(t, s.SaveStatus(ctx, status("aaaaaaaaaaa", true, "")))

	require.NoError(t, s.DeleteVideo(ctx, "aaaaaaaaaaa"))

	regs, err := s.ListVideos(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)
	statuses, err := s.ListStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	// re-adding starts without the old name
	_, _, err = s.AddVideo(ctx, "aaaaaaaaaaa", "aaaaaaaaaaa", nil)
	require.NoError(t, err)
	regs, err = s.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Nil(t, regs[0].Name)
}

func testDeleteMissing(t *testing.T, s store.Store) {
	err := s.DeleteVideo(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testStatusUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, id := range []string{"bbbbbbbbbbb", "aaaaaaaaaaa"} {
		_, _, err := s.AddVideo(ctx, id, id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveStatus(ctx, status("aaaaaaaaaaa", false, "HTTP 500")))
	require.NoError(t, s.SaveStatus(ctx, status("bbbbbbbbbbb", false, "")))
	require.NoError(t, s.SaveStatus(ctx, status("aaaaaaaaaaa", true, "")))

	items, err := s.ListStatus(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]models.StatusItem{}
	for _, it := range items {
		byID[it.VideoID] = it
	}
	a := byID["aaaaaaaaaaa"]
	assert.True(t, a.IsLiveNow)
	assert.Nil(t, a.Note)
	require.NotNil(t, a.LiveStatus)
	assert.Equal(t, "LIVE", *a.LiveStatus)
	assert.True(t, a.CheckedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, byID["bbbbbbbbbbb"].IsLiveNow)
}

func testStatusUnregistered(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveStatus(ctx, status("ghostghost1", true, "")))

	items, err := s.ListStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testCounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	watching, cached, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, watching)
	assert.Zero(t, cached)

	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb"} {
		_, _, err := s.AddVideo(ctx, id, id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveStatus(ctx, status("aaaaaaaaaaa", false, "")))

	watching, cached, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, watching)
	assert.Equal(t, 1, cached)
}

func status(id string, live bool, note string) models.StatusItem {
	ls := "OFF"
	if live {
		ls = "LIVE"
	}
	return models.StatusItem{
		VideoID:    id,
		IsLiveNow:  live,
		LiveStatus: &ls,
		CheckedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Note:       models.StringPtr(note),
	}
}
