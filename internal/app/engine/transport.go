package engine

import (
	"context"
	"time"

	"github.com/osa030/shufflebox/internal/domain/song"
)

// Transport is the external playback engine boundary. Its internal queue and
// player are authoritative and opaque; every call is asynchronous from the
// engine's point of view and may fail. Failures are surfaced, not retried.
type Transport interface {
	// SetQueue pushes a fresh queue to the transport without starting playback.
	SetQueue(ctx context.Context, songs []song.Song) error
	// ReplaceQueue swaps the transport queue mid-session, starting from the
	// given song under the given policy.
	ReplaceQueue(ctx context.Context, songs []song.Song, startAtSongID string, policy QueuePolicy) error

	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	// RestartOrSkipToPrevious restarts the current song when meaningfully into
	// it, otherwise skips to the previous entry.
	RestartOrSkipToPrevious(ctx context.Context) error
	// Seek moves the play head within the current song, best effort.
	Seek(ctx context.Context, position time.Duration) error

	// States is the push stream of raw playback states. Closed when the
	// transport shuts down.
	States() <-chan RawState
	// QueueLength reports the transport's current queue entry count, used for
	// drift comparison only.
	QueueLength(ctx context.Context) (int, error)
}

// RawKind tags a raw transport playback state.
type RawKind int

const (
	RawEmpty RawKind = iota
	RawStopped
	RawLoading
	RawPlaying
	RawPaused
	RawError
)

// String returns the string representation of the raw kind.
func (k RawKind) String() string {
	switch k {
	case RawEmpty:
		return "empty"
	case RawStopped:
		return "stopped"
	case RawLoading:
		return "loading"
	case RawPlaying:
		return "playing"
	case RawPaused:
		return "paused"
	case RawError:
		return "error"
	default:
		return "unknown"
	}
}

// RawState is one raw playback event as reported by the transport. It is a
// hint to reconcile, not ground truth; the observer normalizes it against the
// domain queue before it reaches the reducer.
type RawState struct {
	Kind       RawKind
	Song       *song.Song // Identity as the transport reports it, may not match the pool
	Err        error
	Position   time.Duration
	ObservedAt time.Time
}
