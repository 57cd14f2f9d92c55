package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// restartThreshold is how far into a song a previous-press restarts it
// instead of moving to the prior song.
const restartThreshold = 3 * time.Second

// Transport drives Spotify Connect playback and reports observed player
// states. Spotify has no way to install a queue without starting playback,
// so SetQueue stages the songs and the first Play installs them.
type Transport struct {
	api          *Client
	pollInterval time.Duration
	states       chan engine.RawState

	mu     sync.Mutex
	staged []song.Song
}

// NewTransport creates a transport over an authenticated client.
func NewTransport(api *Client, pollInterval time.Duration) *Transport {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Transport{
		api:          api,
		pollInterval: pollInterval,
		states:       make(chan engine.RawState, 16),
	}
}

// States returns the channel of observed player states. Run must be
// started for states to flow.
func (t *Transport) States() <-chan engine.RawState {
	return t.states
}

// Run polls the player until the context is cancelled.
func (t *Transport) Run(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.emit(t.poll(ctx))
		}
	}
}

func (t *Transport) poll(ctx context.Context) engine.RawState {
	now := time.Now()

	state, err := t.api.client.PlayerState(ctx)
	if err != nil {
		return engine.RawState{Kind: engine.RawError, Err: err, ObservedAt: now}
	}
	if state == nil || state.Item == nil {
		return engine.RawState{Kind: engine.RawStopped, ObservedAt: now}
	}

	s := t.api.convertTrack(state.Item)
	raw := engine.RawState{
		Song:       s,
		Position:   time.Duration(state.Progress) * time.Millisecond,
		ObservedAt: now,
	}
	if state.Playing {
		raw.Kind = engine.RawPlaying
	} else {
		raw.Kind = engine.RawPaused
	}
	return raw
}

// emit never blocks; when the consumer lags, the oldest state is dropped in
// favor of the newest.
func (t *Transport) emit(raw engine.RawState) {
	select {
	case t.states <- raw:
	default:
		select {
		case <-t.states:
		default:
		}
		select {
		case t.states <- raw:
		default:
		}
	}
}

// SetQueue stages songs as the desired play order without touching the
// device. The next Play installs them.
func (t *Transport) SetQueue(ctx context.Context, songs []song.Song) error {
	t.mu.Lock()
	t.staged = append([]song.Song(nil), songs...)
	t.mu.Unlock()

	zlog.Debug().Int("songs", len(songs)).Msg("queue staged")
	return nil
}

// ReplaceQueue installs a new queue immediately, starting at the given song.
func (t *Transport) ReplaceQueue(ctx context.Context, songs []song.Song, startAtSongID string, policy engine.QueuePolicy) error {
	if len(songs) == 0 {
		return errors.New("cannot install an empty queue")
	}

	t.mu.Lock()
	t.staged = nil
	t.mu.Unlock()

	uris := songURIs(rotateToSong(songs, startAtSongID))
	err := t.api.retry(func() error {
		return t.api.client.PlayOpt(ctx, &spotify.PlayOptions{URIs: uris})
	})
	if err != nil {
		return errors.Wrap(err, "failed to install queue")
	}

	if policy == engine.PolicyForcePaused {
		if err := t.Pause(ctx); err != nil {
			return errors.Wrap(err, "failed to pause after install")
		}
	}
	return nil
}

// Play starts playback. If a queue was staged by SetQueue it is installed
// now; otherwise the current playback resumes.
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	staged := t.staged
	t.staged = nil
	t.mu.Unlock()

	if len(staged) > 0 {
		uris := songURIs(staged)
		return t.api.retry(func() error {
			return t.api.client.PlayOpt(ctx, &spotify.PlayOptions{URIs: uris})
		})
	}

	return t.api.retry(func() error {
		return t.api.client.Play(ctx)
	})
}

// Pause pauses playback.
func (t *Transport) Pause(ctx context.Context) error {
	return t.api.retry(func() error {
		return t.api.client.Pause(ctx)
	})
}

// SkipToNext moves to the next song.
func (t *Transport) SkipToNext(ctx context.Context) error {
	return t.api.retry(func() error {
		return t.api.client.Next(ctx)
	})
}

// SkipToPrevious moves to the prior song.
func (t *Transport) SkipToPrevious(ctx context.Context) error {
	return t.api.retry(func() error {
		return t.api.client.Previous(ctx)
	})
}

// RestartOrSkipToPrevious restarts the current song when it is more than a
// few seconds in, and moves to the prior song otherwise.
func (t *Transport) RestartOrSkipToPrevious(ctx context.Context) error {
	state, err := t.api.client.PlayerState(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get player state")
	}

	if state != nil && state.Item != nil &&
		time.Duration(state.Progress)*time.Millisecond > restartThreshold {
		return t.Seek(ctx, 0)
	}
	return t.SkipToPrevious(ctx)
}

// Seek moves playback to the given position in the current song.
func (t *Transport) Seek(ctx context.Context, position time.Duration) error {
	return t.api.retry(func() error {
		return t.api.client.Seek(ctx, int(position.Milliseconds()))
	})
}

// QueueLength reports how many songs the device still has queued after the
// current one.
func (t *Transport) QueueLength(ctx context.Context) (int, error) {
	var length int
	err := t.api.retry(func() error {
		q, err := t.api.client.GetQueue(ctx)
		if err != nil {
			return err
		}
		length = len(q.Items)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to get queue")
	}
	return length, nil
}

// rotateToSong reorders songs so the one with the given ID plays first.
// Unknown IDs leave the order unchanged.
func rotateToSong(songs []song.Song, startAtSongID string) []song.Song {
	if startAtSongID == "" {
		return songs
	}
	for i, s := range songs {
		if s.ID == startAtSongID {
			rotated := make([]song.Song, 0, len(songs))
			rotated = append(rotated, songs[i:]...)
			rotated = append(rotated, songs[:i]...)
			return rotated
		}
	}
	return songs
}

func songURIs(songs []song.Song) []spotify.URI {
	uris := make([]spotify.URI, 0, len(songs))
	for _, s := range songs {
		uris = append(uris, spotify.URI("spotify:track:"+s.ID))
	}
	return uris
}
