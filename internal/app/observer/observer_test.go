package observer

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
)

func builtQueue(t *testing.T, ids ...string) queue.State {
	t.Helper()
	songs := make([]song.Song, len(ids))
	for i, id := range ids {
		songs[i] = song.Song{ID: id, Title: "Title " + id, Artist: "Artist", Album: "Album"}
	}
	st, err := queue.New(shuffle.NoRepeat).AddingSongs(songs)
	require.NoError(t, err)
	return st.Shuffled(shuffle.NoRepeat)
}

func rawPlaying(s song.Song) engine.RawState {
	return engine.RawState{Kind: engine.RawPlaying, Song: &s, ObservedAt: time.Now()}
}

func TestObserver_IdentityResolution(t *testing.T) {
	qs := builtQueue(t, "A", "B")

	t.Run("exact id match merges freshness", func(t *testing.T) {
		o := New()
		raw := rawPlaying(song.Song{ID: "A", Title: "Fresh Title", ArtworkURL: "http://art"})

		res := o.Resolve(raw, qs)

		assert.Equal(t, "A", res.SongID)
		assert.Equal(t, "Fresh Title", res.State.Song.Title)
		assert.Equal(t, "http://art", res.State.Song.ArtworkURL)
		assert.Equal(t, "Artist", res.State.Song.Artist, "pool metadata survives empty raw fields")
	})

	t.Run("metadata fallback remaps the id", func(t *testing.T) {
		o := New()
		raw := rawPlaying(song.Song{ID: "transport-77", Title: "Title B", Artist: "Artist", Album: "Album"})

		res := o.Resolve(raw, qs)

		assert.Equal(t, "B", res.SongID, "title+artist+album match wins over the raw id")
	})

	t.Run("no pool match passes the raw identity through", func(t *testing.T) {
		o := New()
		raw := rawPlaying(song.Song{ID: "alien", Title: "Unknown"})

		res := o.Resolve(raw, qs)

		assert.Equal(t, "alien", res.SongID)
		assert.Equal(t, engine.PlaybackPlaying, res.State.Kind)
	})
}

func TestObserver_EmptyDomainCollapses(t *testing.T) {
	o := New()
	empty := queue.New(shuffle.NoRepeat)
	raw := rawPlaying(song.Song{ID: "ghost"})

	res := o.Resolve(raw, empty)

	assert.Equal(t, engine.PlaybackEmpty, res.State.Kind)
	assert.Empty(t, res.SongID)
	assert.Empty(t, res.MarkPlayedID)
	assert.Zero(t, res.PendingSeek)
}

func TestObserver_HistoryTracking(t *testing.T) {
	qs := builtQueue(t, "A", "B", "C")
	order := qs.Order()

	o := New()

	first := o.Resolve(rawPlaying(order[0]), qs)
	assert.Empty(t, first.MarkPlayedID, "first observation has no predecessor")

	second := o.Resolve(rawPlaying(order[1]), qs)
	assert.Equal(t, order[0].ID, second.MarkPlayedID, "song change records the previous song")

	t.Run("idempotent on repeated raw states", func(t *testing.T) {
		again := o.Resolve(rawPlaying(order[1]), qs)
		assert.Empty(t, again.MarkPlayedID, "same state twice never double-counts")
	})
}

func TestObserver_TerminalStatesClearHistory(t *testing.T) {
	qs := builtQueue(t, "A", "B")
	order := qs.Order()

	tests := []struct {
		name     string
		raw      engine.RawState
		wantKind engine.PlaybackKind
	}{
		{name: "stopped", raw: engine.RawState{Kind: engine.RawStopped}, wantKind: engine.PlaybackStopped},
		{name: "empty", raw: engine.RawState{Kind: engine.RawEmpty}, wantKind: engine.PlaybackEmpty},
		{name: "error", raw: engine.RawState{Kind: engine.RawError, Err: errors.New("boom")}, wantKind: engine.PlaybackError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New()
			o.Resolve(rawPlaying(order[0]), qs)

			res := o.Resolve(tt.raw, qs)

			assert.Equal(t, tt.wantKind, res.State.Kind)
			assert.True(t, res.ClearHistory)

			// The observed-song memory reset with the terminal state, so the
			// next song does not retroactively mark anything played.
			next := o.Resolve(rawPlaying(order[1]), qs)
			assert.Empty(t, next.MarkPlayedID)
		})
	}
}

func TestObserver_StopSuppression(t *testing.T) {
	qs := builtQueue(t, "A", "B")
	cur, _ := qs.Current()

	t.Run("suppressed stop normalizes to paused current", func(t *testing.T) {
		o := New()
		o.BeginSuppression(0)

		res := o.Resolve(engine.RawState{Kind: engine.RawStopped, ObservedAt: time.Now()}, qs)

		assert.Equal(t, engine.PlaybackPaused, res.State.Kind)
		assert.Equal(t, cur.ID, res.SongID)
		assert.False(t, res.ClearHistory)
	})

	t.Run("stop after the window is honored", func(t *testing.T) {
		o := New()
		o.BeginSuppression(time.Millisecond)

		late := engine.RawState{Kind: engine.RawStopped, ObservedAt: time.Now().Add(time.Second)}
		res := o.Resolve(late, qs)

		assert.Equal(t, engine.PlaybackStopped, res.State.Kind)
		assert.True(t, res.ClearHistory)
	})

	t.Run("suppression swallows history marks", func(t *testing.T) {
		o := New()
		order := qs.Order()
		o.Resolve(rawPlaying(order[0]), qs)
		o.BeginSuppression(0)

		res := o.Resolve(rawPlaying(order[1]), qs)
		assert.Empty(t, res.MarkPlayedID)

		o.EndSuppression()
		res = o.Resolve(rawPlaying(order[0]), qs)
		assert.Equal(t, order[1].ID, res.MarkPlayedID, "marks resume after suppression ends")
	})
}

func TestObserver_PendingSeek(t *testing.T) {
	qs := builtQueue(t, "A", "B")
	order := qs.Order()

	o := New()
	o.SetPendingSeek(order[0].ID, 42*time.Second)

	t.Run("not consumed while paused", func(t *testing.T) {
		raw := engine.RawState{Kind: engine.RawPaused, Song: &order[0], ObservedAt: time.Now()}
		res := o.Resolve(raw, qs)
		assert.Zero(t, res.PendingSeek)
	})

	t.Run("not consumed for another song", func(t *testing.T) {
		res := o.Resolve(rawPlaying(order[1]), qs)
		assert.Zero(t, res.PendingSeek)
	})

	t.Run("consumed exactly once on genuine playing", func(t *testing.T) {
		res := o.Resolve(rawPlaying(order[0]), qs)
		assert.Equal(t, 42*time.Second, res.PendingSeek)

		again := o.Resolve(rawPlaying(order[0]), qs)
		assert.Zero(t, again.PendingSeek)
	})
}

func TestObserver_CursorRealignment(t *testing.T) {
	qs := builtQueue(t, "A", "B", "C")
	order := qs.Order()

	o := New()

	res := o.Resolve(rawPlaying(order[0]), qs)
	assert.False(t, res.UpdateCurrentSong, "already on the cursor")

	res = o.Resolve(rawPlaying(order[2]), qs)
	assert.True(t, res.UpdateCurrentSong, "transport moved, cursor must follow")
}
