// Package engine provides the queue engine: the engine state, the intent and
// command vocabulary, and the pure reducer that drives both.
package engine

import (
	"github.com/osa030/shufflebox/internal/domain/song"
)

// PlaybackKind tags the playback state variant.
type PlaybackKind int

const (
	PlaybackEmpty   PlaybackKind = iota // No pool, nothing to play
	PlaybackStopped                     // Pool exists, playback not started or ran out
	PlaybackLoading                     // A song was handed to the transport, start pending
	PlaybackPlaying                     // Transport reports active playback
	PlaybackPaused                      // Transport reports paused playback
	PlaybackError                       // Transport call or playback failed
)

// String returns the string representation of the kind.
func (k PlaybackKind) String() string {
	switch k {
	case PlaybackEmpty:
		return "empty"
	case PlaybackStopped:
		return "stopped"
	case PlaybackLoading:
		return "loading"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackError:
		return "error"
	default:
		return "unknown"
	}
}

// Playback is the derived playback state. Song is meaningful for the
// loading, playing and paused kinds; Err for the error kind.
type Playback struct {
	Kind PlaybackKind
	Song song.Song
	Err  error
}

// EmptyPlayback returns the empty variant.
func EmptyPlayback() Playback {
	return Playback{Kind: PlaybackEmpty}
}

// StoppedPlayback returns the stopped variant.
func StoppedPlayback() Playback {
	return Playback{Kind: PlaybackStopped}
}

// LoadingPlayback returns the loading variant for the given song.
func LoadingPlayback(s song.Song) Playback {
	return Playback{Kind: PlaybackLoading, Song: s}
}

// PlayingPlayback returns the playing variant for the given song.
func PlayingPlayback(s song.Song) Playback {
	return Playback{Kind: PlaybackPlaying, Song: s}
}

// PausedPlayback returns the paused variant for the given song.
func PausedPlayback(s song.Song) Playback {
	return Playback{Kind: PlaybackPaused, Song: s}
}

// ErrorPlayback returns the error variant.
func ErrorPlayback(err error) Playback {
	return Playback{Kind: PlaybackError, Err: err}
}

// HasSong reports whether the variant carries a song.
func (p Playback) HasSong() bool {
	return p.Kind == PlaybackLoading || p.Kind == PlaybackPlaying || p.Kind == PlaybackPaused
}

// IsActive reports whether the transport is (or is about to be) audibly
// playing.
func (p Playback) IsActive() bool {
	return p.Kind == PlaybackLoading || p.Kind == PlaybackPlaying
}
