package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shufflebox/internal/domain/song"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadWithoutSnapshot(t *testing.T) {
	s := openTestStore(t)

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	playedAt := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	saved := Snapshot{
		Pool: []song.Song{
			{
				ID:           "a",
				Title:        "First",
				Artist:       "Artist A",
				Album:        "Album A",
				ArtworkURL:   "https://img/a",
				Duration:     3 * time.Minute,
				Explicit:     true,
				PlayCount:    2,
				LastPlayedAt: playedAt,
			},
			{ID: "b", Title: "Second", Artist: "Artist B"},
			{ID: "c", Title: "Third", Artist: "Artist C"},
		},
		QueueOrder:    []string{"b", "c"},
		CurrentSongID: "b",
		PlayedIDs:     []string{"a"},
		Position:      42 * time.Second,
		SavedAt:       time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(saved))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "b", got.CurrentSongID)
	assert.Equal(t, 42*time.Second, got.Position)
	assert.Equal(t, saved.SavedAt.Unix(), got.SavedAt.Unix())
	assert.Equal(t, []string{"b", "c"}, got.QueueOrder)
	assert.Equal(t, []string{"a"}, got.PlayedIDs)

	require.Len(t, got.Pool, 3)
	first := got.Pool[0]
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "Artist A", first.Artist)
	assert.Equal(t, "Album A", first.Album)
	assert.Equal(t, "https://img/a", first.ArtworkURL)
	assert.Equal(t, 3*time.Minute, first.Duration)
	assert.True(t, first.Explicit)
	assert.Equal(t, 2, first.PlayCount)
	assert.Equal(t, playedAt.Unix(), first.LastPlayedAt.Unix())
	assert.True(t, got.Pool[1].LastPlayedAt.IsZero())
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(Snapshot{
		Pool:          []song.Song{{ID: "old", Title: "Old", Artist: "A"}},
		QueueOrder:    []string{"old"},
		CurrentSongID: "old",
		SavedAt:       time.Now(),
	}))
	require.NoError(t, s.Save(Snapshot{
		Pool:          []song.Song{{ID: "new", Title: "New", Artist: "B"}},
		QueueOrder:    []string{"new"},
		CurrentSongID: "new",
		SavedAt:       time.Now(),
	}))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Pool, 1)
	assert.Equal(t, "new", got.Pool[0].ID)
	assert.Equal(t, []string{"new"}, got.QueueOrder)
}

func TestSaveFillsSavedAt(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(Snapshot{
		Pool:          []song.Song{{ID: "a", Title: "T", Artist: "A"}},
		QueueOrder:    []string{"a"},
		CurrentSongID: "a",
	}))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now(), got.SavedAt, time.Minute)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(Snapshot{
		Pool:          []song.Song{{ID: "a", Title: "T", Artist: "A"}},
		QueueOrder:    []string{"a"},
		CurrentSongID: "a",
		SavedAt:       time.Now(),
	}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.CurrentSongID)
}
