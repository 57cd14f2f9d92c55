package engine

import (
	"time"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// IntentType tags a queue intent.
type IntentType int

const (
	IntentAddSongs        IntentType = iota // Add songs to the pool
	IntentSeedSongs                         // Replace the pool wholesale
	IntentRemoveSong                        // Remove one song everywhere
	IntentPrepare                           // Build and push a queue without playing
	IntentPlay                              // Start or resume playback
	IntentPause                             // Pause playback
	IntentSkipNext                          // Advance to the next song
	IntentSkipPrevious                      // Restart or go back one song
	IntentToggle                            // Play/pause depending on current state
	IntentChangeAlgorithm                   // Adopt a new shuffle algorithm
	IntentResolution                        // Apply a normalized transport observation
	IntentRestoreSession                    // Install a restored session
	IntentResyncQueue                       // Flush a deferred rebuild to the transport
)

// String returns the string representation of the intent type.
func (t IntentType) String() string {
	switch t {
	case IntentAddSongs:
		return "add_songs"
	case IntentSeedSongs:
		return "seed_songs"
	case IntentRemoveSong:
		return "remove_song"
	case IntentPrepare:
		return "prepare"
	case IntentPlay:
		return "play"
	case IntentPause:
		return "pause"
	case IntentSkipNext:
		return "skip_next"
	case IntentSkipPrevious:
		return "skip_previous"
	case IntentToggle:
		return "toggle"
	case IntentChangeAlgorithm:
		return "change_algorithm"
	case IntentResolution:
		return "resolution"
	case IntentRestoreSession:
		return "restore_session"
	case IntentResyncQueue:
		return "resync_queue"
	default:
		return "unknown"
	}
}

// Intent is one input to the reducer. Ephemeral.
type Intent struct {
	Type       IntentType
	Songs      []song.Song       // IntentAddSongs, IntentSeedSongs
	SongID     string            // IntentRemoveSong
	Algorithm  shuffle.Algorithm // IntentChangeAlgorithm
	Resolution *Resolution       // IntentResolution
	Restored   *RestoredSession  // IntentRestoreSession
}

// Resolution is the observer's normalized interpretation of one raw
// transport state, fed back into the reducer as an intent payload.
type Resolution struct {
	State             Playback
	SongID            string // Resolved song identity, empty when none
	UpdateCurrentSong bool   // Realign the domain cursor to SongID
	MarkPlayedID      string // Record this id as played, empty when none
	ClearHistory      bool   // Drop the session played history
	PendingSeek       time.Duration // Consumed restore seek, 0 when none
	ObservedAt        time.Time
}

// RestoredSession carries the outcome of a session restoration.
type RestoredSession struct {
	Queue    queue.State
	Playback Playback
}

// AddSongsIntent returns an intent adding the given songs to the pool.
func AddSongsIntent(songs ...song.Song) Intent {
	return Intent{Type: IntentAddSongs, Songs: songs}
}

// SeedSongsIntent returns an intent replacing the pool with the given songs.
func SeedSongsIntent(songs []song.Song) Intent {
	return Intent{Type: IntentSeedSongs, Songs: songs}
}

// RemoveSongIntent returns an intent removing the song everywhere.
func RemoveSongIntent(id string) Intent {
	return Intent{Type: IntentRemoveSong, SongID: id}
}

// PrepareIntent returns an intent building a queue without starting playback.
func PrepareIntent() Intent { return Intent{Type: IntentPrepare} }

// PlayIntent returns a play intent.
func PlayIntent() Intent { return Intent{Type: IntentPlay} }

// PauseIntent returns a pause intent.
func PauseIntent() Intent { return Intent{Type: IntentPause} }

// SkipNextIntent returns a skip-forward intent.
func SkipNextIntent() Intent { return Intent{Type: IntentSkipNext} }

// SkipPreviousIntent returns a skip-back intent.
func SkipPreviousIntent() Intent { return Intent{Type: IntentSkipPrevious} }

// ToggleIntent returns a play/pause toggle intent.
func ToggleIntent() Intent { return Intent{Type: IntentToggle} }

// ChangeAlgorithmIntent returns an intent adopting a new shuffle algorithm.
func ChangeAlgorithmIntent(alg shuffle.Algorithm) Intent {
	return Intent{Type: IntentChangeAlgorithm, Algorithm: alg}
}

// ResolutionIntent returns an intent applying an observer resolution.
func ResolutionIntent(r Resolution) Intent {
	return Intent{Type: IntentResolution, Resolution: &r}
}

// ResyncQueueIntent returns an intent flushing a deferred queue rebuild to
// the transport.
func ResyncQueueIntent() Intent { return Intent{Type: IntentResyncQueue} }

// RestoreSessionIntent returns an intent installing a restored session.
func RestoreSessionIntent(q queue.State, p Playback) Intent {
	return Intent{Type: IntentRestoreSession, Restored: &RestoredSession{Queue: q, Playback: p}}
}
