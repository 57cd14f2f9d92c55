// Package observer normalizes raw transport playback events into domain
// resolutions.
package observer

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// DefaultSuppressionWindow bounds how long a history suppression stays armed
// when no explicit end arrives. A transient stop reported during a queue
// rebuild is swallowed inside the window; a genuine stop after it is honored.
const DefaultSuppressionWindow = 10 * time.Second

// Observer is the only session-scoped mutable memory in the core. It turns
// raw transport states into resolutions; it never mutates queue or engine
// state itself.
type Observer struct {
	mu sync.Mutex

	lastObservedSongID string
	suppressUntil      time.Time

	pendingSeekSongID string
	pendingSeek       time.Duration
}

// New creates a new observer.
func New() *Observer {
	return &Observer{}
}

// BeginSuppression arms history suppression for the given window. Zero uses
// DefaultSuppressionWindow. Used around multi-step operations such as session
// restoration, where the transport emits noise that must not pollute history.
func (o *Observer) BeginSuppression(window time.Duration) {
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suppressUntil = time.Now().Add(window)
}

// EndSuppression disarms history suppression.
func (o *Observer) EndSuppression() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suppressUntil = time.Time{}
}

// SetPendingSeek records a restore seek to be consumed on the first genuine
// playing transition of the given song.
func (o *Observer) SetPendingSeek(songID string, position time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingSeekSongID = songID
	o.pendingSeek = position
}

// Resolve normalizes one raw transport state against the current queue state.
// It never fails: unresolvable input degrades to the most conservative domain
// interpretation.
func (o *Observer) Resolve(raw engine.RawState, qs queue.State) engine.Resolution {
	o.mu.Lock()
	defer o.mu.Unlock()

	observedAt := raw.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	suppressed := observedAt.Before(o.suppressUntil)

	// A stop reported while suppression is armed and a current song exists is
	// transient transport noise, not a terminal stop.
	if raw.Kind == engine.RawStopped && suppressed {
		if cur, ok := qs.Current(); ok {
			return engine.Resolution{
				State:      engine.PausedPlayback(cur),
				SongID:     cur.ID,
				ObservedAt: observedAt,
			}
		}
	}

	// A song reported against an empty domain is stale transport output.
	if qs.PoolSize() == 0 && raw.Song != nil {
		zlog.Debug().Msgf("observer: raw song %s against empty domain, collapsing to empty", raw.Song.ID)
		o.lastObservedSongID = ""
		return engine.Resolution{State: engine.EmptyPlayback(), ObservedAt: observedAt}
	}

	switch raw.Kind {
	case engine.RawStopped, engine.RawEmpty, engine.RawError:
		return o.resolveTerminal(raw, observedAt)
	default:
		return o.resolveWithSong(raw, qs, observedAt, suppressed)
	}
}

// resolveTerminal handles the songless variants: history clears and the
// observed-song memory resets.
func (o *Observer) resolveTerminal(raw engine.RawState, observedAt time.Time) engine.Resolution {
	o.lastObservedSongID = ""

	var state engine.Playback
	switch raw.Kind {
	case engine.RawError:
		state = engine.ErrorPlayback(raw.Err)
	case engine.RawEmpty:
		state = engine.EmptyPlayback()
	default:
		state = engine.StoppedPlayback()
	}
	return engine.Resolution{
		State:        state,
		ClearHistory: true,
		ObservedAt:   observedAt,
	}
}

func (o *Observer) resolveWithSong(raw engine.RawState, qs queue.State, observedAt time.Time, suppressed bool) engine.Resolution {
	resolved, ok := o.resolveIdentity(raw, qs)
	if !ok {
		// Songless playing/paused report: fall back to the domain's current
		// song, or stop when there is none.
		if cur, curOK := qs.Current(); curOK {
			resolved = cur
		} else {
			return engine.Resolution{State: engine.StoppedPlayback(), ObservedAt: observedAt}
		}
	}

	res := engine.Resolution{
		SongID:     resolved.ID,
		ObservedAt: observedAt,
	}

	switch raw.Kind {
	case engine.RawLoading:
		res.State = engine.LoadingPlayback(resolved)
	case engine.RawPaused:
		res.State = engine.PausedPlayback(resolved)
	default:
		res.State = engine.PlayingPlayback(resolved)
	}

	if cur, ok := qs.Current(); !ok || cur.ID != resolved.ID {
		res.UpdateCurrentSong = true
	}

	// A song change closes the chapter on the previous song.
	if o.lastObservedSongID != "" && o.lastObservedSongID != resolved.ID && !suppressed {
		res.MarkPlayedID = o.lastObservedSongID
	}
	o.lastObservedSongID = resolved.ID

	// The restore seek is consumed on the first genuine playing transition.
	if raw.Kind == engine.RawPlaying && o.pendingSeekSongID != "" && o.pendingSeekSongID == resolved.ID {
		res.PendingSeek = o.pendingSeek
		o.pendingSeekSongID = ""
		o.pendingSeek = 0
	}

	return res
}

// resolveIdentity maps the raw song onto the pool: exact id first, then
// display metadata, then the raw identity verbatim. A pool match adopts the
// fresher display fields the transport may carry.
func (o *Observer) resolveIdentity(raw engine.RawState, qs queue.State) (song.Song, bool) {
	if raw.Song == nil {
		return song.Song{}, false
	}

	if pooled, ok := qs.SongByID(raw.Song.ID); ok {
		return pooled.MergedFrom(*raw.Song), true
	}
	if pooled, ok := qs.SongByIdentity(*raw.Song); ok {
		return pooled.MergedFrom(*raw.Song), true
	}
	zlog.Debug().Msgf("observer: song %s (%s) not in pool, passing through", raw.Song.ID, raw.Song.Title)
	return *raw.Song, true
}
