package engine

import "github.com/osa030/shufflebox/internal/domain/song"

// CommandType tags a transport command.
type CommandType int

const (
	CommandSetQueue             CommandType = iota // Push a fresh queue to the transport
	CommandReplaceQueue                            // Replace the transport queue mid-session
	CommandPlay                                    // Start or resume playback
	CommandPause                                   // Pause playback
	CommandSkipNext                                // Skip to the next queue entry
	CommandSkipPrevious                            // Skip to the previous queue entry
	CommandRestartOrSkipPrevious                   // Restart the current song or skip back
)

// String returns the string representation of the command type.
func (t CommandType) String() string {
	switch t {
	case CommandSetQueue:
		return "set_queue"
	case CommandReplaceQueue:
		return "replace_queue"
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandSkipNext:
		return "skip_next"
	case CommandSkipPrevious:
		return "skip_previous"
	case CommandRestartOrSkipPrevious:
		return "restart_or_skip_previous"
	default:
		return "unknown"
	}
}

// QueuePolicy tells the transport whether a queue replacement starts
// playback or leaves it paused.
type QueuePolicy int

const (
	PolicyForcePaused  QueuePolicy = iota // Apply the queue without starting playback
	PolicyForcePlaying                    // Apply the queue and play from the start entry
)

// String returns the string representation of the policy.
func (p QueuePolicy) String() string {
	switch p {
	case PolicyForcePaused:
		return "force_paused"
	case PolicyForcePlaying:
		return "force_playing"
	default:
		return "unknown"
	}
}

// Command is one transport instruction produced by a reduction. Commands are
// ephemeral: issued once by the executor, never retained. Revision carries the
// engine revision that produced the command so the executor can drop batches
// computed against superseded state.
type Command struct {
	Type          CommandType
	Queue         []song.Song // CommandSetQueue, CommandReplaceQueue
	StartAtSongID string      // CommandReplaceQueue
	Policy        QueuePolicy // CommandReplaceQueue
	Revision      uint64
}
