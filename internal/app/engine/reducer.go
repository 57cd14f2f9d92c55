package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// ErrUnknownIntent is returned for an intent type the reducer does not know.
var ErrUnknownIntent = errors.New("unknown intent")

// State is the single source of truth the reducer threads through every
// intent. Revision increments on every state-mutating, non-resolution intent
// and tags every command emitted for that transition. QueueNeedsBuild records
// a deferred transport resync, flushed at the next natural boundary.
type State struct {
	Queue           queue.State
	Playback        Playback
	Revision        uint64
	QueueNeedsBuild bool
}

// NewState returns the initial engine state: empty queue, empty playback.
func NewState(alg shuffle.Algorithm) State {
	return State{
		Queue:    queue.New(alg),
		Playback: EmptyPlayback(),
	}
}

// Reduction is the outcome of one reduce step.
type Reduction struct {
	State    State
	Commands []Command
	NoOp     bool
}

// Reduce computes the next engine state and the transport commands for one
// intent. Pure: no clocks, no I/O, no mutation of the input. The only failure
// is the pool capacity error, returned without any state change. A resolution
// intent never emits commands and never advances the revision, so it cannot
// invalidate command batches already in flight.
func Reduce(s State, in Intent) (Reduction, error) {
	switch in.Type {
	case IntentResolution:
		return reduceResolution(s, in), nil
	case IntentRestoreSession:
		return reduceRestore(s, in), nil
	case IntentAddSongs:
		return reduceAddSongs(s, in)
	case IntentSeedSongs:
		return reduceSeedSongs(s, in), nil
	case IntentRemoveSong:
		return reduceRemoveSong(s, in), nil
	case IntentPrepare:
		return reducePrepare(s), nil
	case IntentPlay:
		return reducePlay(s), nil
	case IntentPause:
		return reducePause(s), nil
	case IntentSkipNext:
		return reduceSkipNext(s), nil
	case IntentSkipPrevious:
		return reduceSkipPrevious(s), nil
	case IntentToggle:
		return reduceToggle(s), nil
	case IntentChangeAlgorithm:
		return reduceChangeAlgorithm(s, in), nil
	case IntentResyncQueue:
		return reduceResyncQueue(s), nil
	default:
		return Reduction{State: s, NoOp: true}, errors.Wrapf(ErrUnknownIntent, "type %d", in.Type)
	}
}

func noOp(s State) Reduction {
	return Reduction{State: s, NoOp: true}
}

// mutated stamps a state transition: the revision advances and every emitted
// command carries the new revision.
func mutated(prev State, next State, cmds ...Command) Reduction {
	next.Revision = prev.Revision + 1
	for i := range cmds {
		cmds[i].Revision = next.Revision
	}
	return Reduction{State: next, Commands: cmds}
}

// needsRebuild reports whether the domain order has diverged from what the
// transport believes it is playing.
func needsRebuild(s State) bool {
	return s.QueueNeedsBuild || s.Queue.IsQueueStale()
}

func reducePlay(s State) Reduction {
	switch s.Playback.Kind {
	case PlaybackPlaying, PlaybackLoading:
		return noOp(s)

	case PlaybackPaused:
		next := s
		if needsRebuild(s) {
			// Resume is a natural boundary: flush the deferred rebuild.
			next.Queue = s.Queue.ReshuffledUpcoming(s.Queue.Algorithm(), s.Playback.Song.ID)
			next.QueueNeedsBuild = false
			cur, ok := next.Queue.Current()
			if !ok {
				next.Playback = StoppedPlayback()
				return mutated(s, next, Command{Type: CommandPause})
			}
			next.Playback = PlayingPlayback(cur)
			return mutated(s, next, Command{
				Type:          CommandReplaceQueue,
				Queue:         next.Queue.Order(),
				StartAtSongID: cur.ID,
				Policy:        PolicyForcePlaying,
			})
		}
		next.Playback = PlayingPlayback(s.Playback.Song)
		return mutated(s, next, Command{Type: CommandPlay})

	default: // empty, stopped, error: (re)start from the queue
		if s.Queue.PoolSize() == 0 {
			return noOp(s)
		}
		next := s
		if s.Queue.IsEmpty() || needsRebuild(s) {
			next.Queue = s.Queue.Shuffled(s.Queue.Algorithm())
			next.QueueNeedsBuild = false
			cur, _ := next.Queue.Current()
			next.Playback = LoadingPlayback(cur)
			return mutated(s, next,
				Command{Type: CommandSetQueue, Queue: next.Queue.Order()},
				Command{Type: CommandPlay},
			)
		}
		// A fresh queue is already on the transport (e.g. after prepare).
		cur, _ := next.Queue.Current()
		next.Playback = LoadingPlayback(cur)
		return mutated(s, next, Command{Type: CommandPlay})
	}
}

func reducePause(s State) Reduction {
	if s.Playback.Kind != PlaybackPlaying {
		return noOp(s)
	}

	next := s
	next.Playback = PausedPlayback(s.Playback.Song)
	cmds := []Command{{Type: CommandPause}}

	if needsRebuild(s) {
		// Pause is a natural boundary: flush the deferred rebuild while the
		// listener cannot hear the swap.
		next.Queue = s.Queue.ReshuffledUpcoming(s.Queue.Algorithm(), s.Playback.Song.ID)
		next.QueueNeedsBuild = false
		if cur, ok := next.Queue.Current(); ok {
			cmds = append(cmds, Command{
				Type:          CommandReplaceQueue,
				Queue:         next.Queue.Order(),
				StartAtSongID: cur.ID,
				Policy:        PolicyForcePaused,
			})
		}
	}
	return mutated(s, next, cmds...)
}

func reduceToggle(s State) Reduction {
	switch s.Playback.Kind {
	case PlaybackPlaying:
		return reducePause(s)
	case PlaybackLoading:
		return noOp(s)
	default:
		// Paused resumes; empty/stopped starts; error retries via play.
		return reducePlay(s)
	}
}

func reduceSkipNext(s State) Reduction {
	if s.Queue.IsEmpty() {
		return noOp(s)
	}

	wasActive := s.Playback.IsActive()
	q, ok := s.Queue.AdvancedToNext()
	if !ok {
		// Past the final entry: stop, keep the pool and history.
		next := s
		next.Playback = StoppedPlayback()
		return mutated(s, next, Command{Type: CommandPause})
	}

	next := s
	cur, _ := q.Current()

	if needsRebuild(s) {
		// Song change is a natural boundary: flush the deferred rebuild.
		next.Queue = q.ReshuffledUpcoming(q.Algorithm(), cur.ID)
		next.QueueNeedsBuild = false
		cur, _ = next.Queue.Current()
		next.Playback = playbackFor(wasActive, cur)
		policy := PolicyForcePaused
		if wasActive {
			policy = PolicyForcePlaying
		}
		return mutated(s, next, Command{
			Type:          CommandReplaceQueue,
			Queue:         next.Queue.Order(),
			StartAtSongID: cur.ID,
			Policy:        policy,
		})
	}

	next.Queue = q
	next.Playback = playbackFor(wasActive, cur)
	return mutated(s, next, Command{Type: CommandSkipNext})
}

func reduceSkipPrevious(s State) Reduction {
	if s.Queue.IsEmpty() {
		return noOp(s)
	}

	// The transport decides restart-vs-skip from the elapsed position; the
	// observer realigns the domain cursor from the resulting raw state.
	next := s
	return mutated(s, next, Command{Type: CommandRestartOrSkipPrevious})
}

func reduceAddSongs(s State, in Intent) (Reduction, error) {
	q, err := s.Queue.AddingSongs(in.Songs)
	if err != nil {
		return Reduction{State: s, NoOp: true}, err
	}
	if q.PoolSize() == s.Queue.PoolSize() {
		return noOp(s), nil
	}

	next := s

	switch {
	case s.Playback.IsActive() && !needsRebuild(s):
		// Append in place and defer the transport sync: no audible cut.
		next.Queue = q.AppendingUpcoming(in.Songs)
		next.QueueNeedsBuild = true
		return mutated(s, next), nil

	case s.Playback.IsActive():
		// Already diverged: reshuffle the remainder and resync now.
		next.Queue = q.ReshuffledUpcoming(q.Algorithm(), s.Playback.Song.ID)
		next.QueueNeedsBuild = false
		cur, _ := next.Queue.Current()
		return mutated(s, next, Command{
			Type:          CommandReplaceQueue,
			Queue:         next.Queue.Order(),
			StartAtSongID: cur.ID,
			Policy:        PolicyForcePlaying,
		}), nil

	default:
		// Not audible: record the divergence, resync at the next boundary.
		next.Queue = q
		if !q.IsEmpty() {
			next.QueueNeedsBuild = true
		}
		return mutated(s, next), nil
	}
}

func reduceSeedSongs(s State, in Intent) Reduction {
	songs := in.Songs
	if len(songs) > queue.MaxPoolSize {
		// Seeding is best effort: overflow is truncated, not rejected.
		songs = songs[:queue.MaxPoolSize]
	}

	q, err := s.Queue.Cleared().AddingSongs(songs)
	if err != nil {
		// Unreachable after truncation; keep the state on the safe side.
		return noOp(s)
	}

	next := s
	next.Queue = q
	next.QueueNeedsBuild = false

	var cmds []Command
	if s.Playback.IsActive() {
		cmds = append(cmds, Command{Type: CommandPause})
	}
	if q.PoolSize() == 0 {
		next.Playback = EmptyPlayback()
	} else {
		next.Playback = StoppedPlayback()
	}
	return mutated(s, next, cmds...)
}

func reduceRemoveSong(s State, in Intent) Reduction {
	if !s.Queue.ContainsSong(in.SongID) {
		return noOp(s)
	}

	cur, hasCur := s.Queue.Current()
	removingCurrent := hasCur && cur.ID == in.SongID
	next := s

	if s.Queue.PoolSize() == 1 {
		// Last song gone: back to empty.
		next.Queue = s.Queue.Cleared()
		next.Playback = EmptyPlayback()
		next.QueueNeedsBuild = false
		return mutated(s, next, Command{Type: CommandPause})
	}

	q := s.Queue.RemovingSong(in.SongID)

	if removingCurrent && s.Playback.IsActive() {
		// The transport moves on; the cursor already points at the next song.
		next.Queue = q
		if nowCur, ok := q.Current(); ok {
			next.Playback = LoadingPlayback(nowCur)
		} else {
			next.Playback = StoppedPlayback()
		}
		return mutated(s, next, Command{Type: CommandSkipNext})
	}

	next.Queue = q
	if removingCurrent {
		if nowCur, ok := q.Current(); ok && s.Playback.Kind == PlaybackPaused {
			next.Playback = PausedPlayback(nowCur)
		}
	}
	if s.Playback.IsActive() {
		next.QueueNeedsBuild = true
		return mutated(s, next)
	}
	if !q.IsEmpty() {
		// Not audible: resync immediately.
		next.QueueNeedsBuild = false
		startAt, _ := q.Current()
		return mutated(s, next, Command{
			Type:          CommandReplaceQueue,
			Queue:         q.Order(),
			StartAtSongID: startAt.ID,
			Policy:        PolicyForcePaused,
		})
	}
	return mutated(s, next)
}

func reducePrepare(s State) Reduction {
	if s.Queue.PoolSize() == 0 {
		return noOp(s)
	}
	if s.Playback.Kind != PlaybackEmpty && s.Playback.Kind != PlaybackStopped {
		return noOp(s)
	}

	next := s
	if s.Queue.IsEmpty() || needsRebuild(s) {
		next.Queue = s.Queue.Shuffled(s.Queue.Algorithm())
		next.QueueNeedsBuild = false
	}
	cur, _ := next.Queue.Current()
	next.Playback = PausedPlayback(cur)
	return mutated(s, next, Command{Type: CommandSetQueue, Queue: next.Queue.Order()})
}

func reduceChangeAlgorithm(s State, in Intent) Reduction {
	if in.Algorithm == s.Queue.Algorithm() {
		return noOp(s)
	}

	next := s

	if s.Playback.HasSong() && !s.Queue.IsEmpty() {
		next.Queue = s.Queue.ReshuffledUpcoming(in.Algorithm, s.Playback.Song.ID)
		next.QueueNeedsBuild = false
		cur, _ := next.Queue.Current()
		policy := PolicyForcePaused
		if s.Playback.IsActive() {
			policy = PolicyForcePlaying
		}
		return mutated(s, next, Command{
			Type:          CommandReplaceQueue,
			Queue:         next.Queue.Order(),
			StartAtSongID: cur.ID,
			Policy:        policy,
		})
	}

	next.Queue = s.Queue.InvalidatingQueue(in.Algorithm)
	return mutated(s, next)
}

// reduceResyncQueue flushes a deferred rebuild at a natural boundary the
// transport crossed on its own, such as a song change the listener did not
// trigger. Issued by the facade after a resolution lands on a state that
// still carries the stale-queue flag.
func reduceResyncQueue(s State) Reduction {
	if !needsRebuild(s) || !s.Playback.HasSong() || s.Queue.IsEmpty() {
		return noOp(s)
	}

	next := s
	next.Queue = s.Queue.ReshuffledUpcoming(s.Queue.Algorithm(), s.Playback.Song.ID)
	next.QueueNeedsBuild = false
	cur, ok := next.Queue.Current()
	if !ok {
		next.Playback = StoppedPlayback()
		return mutated(s, next, Command{Type: CommandPause})
	}
	next.Playback = playbackFor(s.Playback.IsActive(), cur)
	policy := PolicyForcePaused
	if s.Playback.IsActive() {
		policy = PolicyForcePlaying
	}
	return mutated(s, next, Command{
		Type:          CommandReplaceQueue,
		Queue:         next.Queue.Order(),
		StartAtSongID: cur.ID,
		Policy:        policy,
	})
}

// reduceResolution applies an observer resolution. It emits no commands and
// does not advance the revision.
func reduceResolution(s State, in Intent) Reduction {
	r := in.Resolution
	if r == nil {
		return noOp(s)
	}

	q := s.Queue
	if r.MarkPlayedID != "" {
		q = q.MarkingAsPlayed(r.MarkPlayedID, r.ObservedAt)
	}
	if r.ClearHistory {
		q = q.ClearingPlayedHistory()
	}
	if r.UpdateCurrentSong && r.SongID != "" {
		if moved, ok := q.MovedToSong(r.SongID); ok {
			q = moved
		}
	}

	next := s
	next.Queue = q
	next.Playback = r.State
	return Reduction{State: next}
}

// reduceRestore installs a restored session. The restorer has already issued
// its transport calls, so the reduction carries none.
func reduceRestore(s State, in Intent) Reduction {
	if in.Restored == nil {
		return noOp(s)
	}
	next := s
	next.Queue = in.Restored.Queue
	next.Playback = in.Restored.Playback
	next.QueueNeedsBuild = false
	return mutated(s, next)
}

func playbackFor(active bool, cur song.Song) Playback {
	if active {
		return LoadingPlayback(cur)
	}
	return PausedPlayback(cur)
}
