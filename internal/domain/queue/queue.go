// Package queue provides the immutable play-queue domain model.
package queue

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// MaxPoolSize is the hard capacity of the song pool.
const MaxPoolSize = 120

// ErrPoolFull is returned when an add would push the pool past MaxPoolSize.
var ErrPoolFull = errors.New("song pool is at capacity")

// State is the queue domain model: the ordered song pool, the derived play
// order, the session played history and the cursor. It is an immutable value;
// every transition returns a new State and never mutates the receiver.
type State struct {
	pool      []song.Song
	order     []song.Song
	playedIDs map[string]struct{}
	current   int
	algorithm shuffle.Algorithm
}

// New returns an empty queue state using the given algorithm.
func New(alg shuffle.Algorithm) State {
	return State{algorithm: alg}
}

// Pool returns a copy of the song pool in insertion order.
func (s State) Pool() []song.Song {
	out := make([]song.Song, len(s.pool))
	copy(out, s.pool)
	return out
}

// Order returns a copy of the current play order.
func (s State) Order() []song.Song {
	out := make([]song.Song, len(s.order))
	copy(out, s.order)
	return out
}

// PoolSize returns the number of songs in the pool.
func (s State) PoolSize() int {
	return len(s.pool)
}

// OrderSize returns the number of songs in the play order.
func (s State) OrderSize() int {
	return len(s.order)
}

// CurrentIndex returns the cursor into the play order.
func (s State) CurrentIndex() int {
	return s.current
}

// Current returns the song at the cursor.
func (s State) Current() (song.Song, bool) {
	if len(s.order) == 0 || s.current < 0 || s.current >= len(s.order) {
		return song.Song{}, false
	}
	return s.order[s.current], true
}

// Upcoming returns the songs after the cursor.
func (s State) Upcoming() []song.Song {
	if len(s.order) == 0 || s.current+1 >= len(s.order) {
		return []song.Song{}
	}
	out := make([]song.Song, len(s.order)-s.current-1)
	copy(out, s.order[s.current+1:])
	return out
}

// Algorithm returns the selected shuffle algorithm.
func (s State) Algorithm() shuffle.Algorithm {
	return s.algorithm
}

// PlayedIDs returns the ids played this session.
func (s State) PlayedIDs() []string {
	out := make([]string, 0, len(s.playedIDs))
	for id := range s.playedIDs {
		out = append(out, id)
	}
	return out
}

// IsPlayed reports whether the id has been played this session.
func (s State) IsPlayed(id string) bool {
	_, ok := s.playedIDs[id]
	return ok
}

// ContainsSong reports whether the id is in the pool.
func (s State) ContainsSong(id string) bool {
	return s.poolIndex(id) >= 0
}

// SongByID returns the pool song with the given id.
func (s State) SongByID(id string) (song.Song, bool) {
	if i := s.poolIndex(id); i >= 0 {
		return s.pool[i], true
	}
	return song.Song{}, false
}

// SongByIdentity returns the pool song matching the given song's display
// metadata (title, artist, album).
func (s State) SongByIdentity(other song.Song) (song.Song, bool) {
	for _, p := range s.pool {
		if p.SameIdentity(other) {
			return p, true
		}
	}
	return song.Song{}, false
}

// IsEmpty reports whether the play order is empty.
func (s State) IsEmpty() bool {
	return len(s.order) == 0
}

// IsQueueStale reports whether the play order has diverged from the pool:
// the order references a removed song, or the pool holds an unplayed song
// that the order does not cover. A stale queue is rebuilt at the next
// natural boundary.
func (s State) IsQueueStale() bool {
	if len(s.order) == 0 {
		return len(s.pool) > 0
	}

	inOrder := make(map[string]struct{}, len(s.order))
	for _, o := range s.order {
		if s.poolIndex(o.ID) < 0 {
			return true
		}
		inOrder[o.ID] = struct{}{}
	}
	for _, p := range s.pool {
		if _, ok := inOrder[p.ID]; ok {
			continue
		}
		if _, played := s.playedIDs[p.ID]; !played {
			return true
		}
	}
	return false
}

// AddingSong returns a state with the song appended to the pool.
// Adding a song already in the pool is a no-op; adding past capacity
// returns ErrPoolFull without changing the state.
func (s State) AddingSong(sg song.Song) (State, error) {
	return s.AddingSongs([]song.Song{sg})
}

// AddingSongs returns a state with all new songs appended to the pool.
// The batch is rejected as a whole when it would exceed capacity.
func (s State) AddingSongs(songs []song.Song) (State, error) {
	fresh := make([]song.Song, 0, len(songs))
	seen := make(map[string]struct{}, len(songs))
	for _, sg := range songs {
		if s.poolIndex(sg.ID) >= 0 {
			continue
		}
		if _, dup := seen[sg.ID]; dup {
			continue
		}
		seen[sg.ID] = struct{}{}
		fresh = append(fresh, sg)
	}
	if len(fresh) == 0 {
		return s, nil
	}
	if len(s.pool)+len(fresh) > MaxPoolSize {
		return s, ErrPoolFull
	}

	next := s.clone()
	next.pool = append(next.pool, fresh...)
	return next, nil
}

// RemovingSong returns a state with the song removed from the pool, the
// play order and the played history. The cursor is clamped to the order.
func (s State) RemovingSong(id string) State {
	next := s.clone()

	if i := indexOf(next.pool, id); i >= 0 {
		next.pool = append(next.pool[:i], next.pool[i+1:]...)
	}
	if i := indexOf(next.order, id); i >= 0 {
		next.order = append(next.order[:i], next.order[i+1:]...)
		if i < next.current {
			next.current--
		}
	}
	delete(next.playedIDs, id)

	next.clampCursor()
	return next
}

// Cleared returns an empty state keeping only the algorithm.
func (s State) Cleared() State {
	return New(s.algorithm)
}

// InvalidatingQueue returns a state that keeps the pool but drops the play
// order and history, adopting the given algorithm. The next build reshuffles
// from scratch.
func (s State) InvalidatingQueue(alg shuffle.Algorithm) State {
	next := s.clone()
	next.order = nil
	next.playedIDs = nil
	next.current = 0
	next.algorithm = alg
	return next
}

// Shuffled returns a state with a full reshuffle of the whole pool, history
// cleared and the cursor reset.
func (s State) Shuffled(alg shuffle.Algorithm) State {
	next := s.clone()
	next.order = shuffle.Shuffle(next.pool, alg)
	next.playedIDs = nil
	next.current = 0
	next.algorithm = alg
	return next
}

// ReshuffledUpcoming returns a state whose order starts with the designated
// current song followed by a reshuffle of the unplayed, non-current pool
// remainder. Played history is preserved; played songs leave the order.
func (s State) ReshuffledUpcoming(alg shuffle.Algorithm, currentSongID string) State {
	next := s.clone()
	next.algorithm = alg

	pinned, havePinned := next.SongByID(currentSongID)
	if !havePinned {
		pinned, havePinned = s.Current()
	}

	remainder := make([]song.Song, 0, len(next.pool))
	for _, p := range next.pool {
		if havePinned && p.ID == pinned.ID {
			continue
		}
		if _, played := next.playedIDs[p.ID]; played {
			continue
		}
		remainder = append(remainder, p)
	}

	order := make([]song.Song, 0, len(remainder)+1)
	if havePinned {
		order = append(order, pinned)
	}
	order = append(order, shuffle.Shuffle(remainder, alg)...)

	next.order = order
	next.current = 0
	return next
}

// AppendingUpcoming returns a state with the given pool songs appended to
// the end of the play order in place, without reshuffling.
func (s State) AppendingUpcoming(songs []song.Song) State {
	next := s.clone()
	for _, sg := range songs {
		if indexOf(next.order, sg.ID) >= 0 {
			continue
		}
		if p, ok := next.SongByID(sg.ID); ok {
			next.order = append(next.order, p)
		}
	}
	return next
}

// AdvancedToNext returns a state with the cursor moved forward and the song
// it moved off marked played. ok is false when there is nothing to advance to.
func (s State) AdvancedToNext() (State, bool) {
	if len(s.order) == 0 || s.current+1 >= len(s.order) {
		return s, false
	}

	next := s.clone()
	if cur, ok := next.Current(); ok {
		next.markPlayed(cur.ID)
	}
	next.current++
	return next, true
}

// RevertedToPrevious returns a state with the cursor moved back and the song
// it moved onto un-marked, keeping history symmetric with AdvancedToNext.
func (s State) RevertedToPrevious() (State, bool) {
	if len(s.order) == 0 || s.current == 0 {
		return s, false
	}

	next := s.clone()
	next.current--
	if cur, ok := next.Current(); ok {
		delete(next.playedIDs, cur.ID)
	}
	return next, true
}

// MovedToSong returns a state with the cursor placed on the given order
// entry. ok is false when the id is not in the order.
func (s State) MovedToSong(id string) (State, bool) {
	i := indexOf(s.order, id)
	if i < 0 {
		return s, false
	}
	next := s.clone()
	next.current = i
	return next, true
}

// MarkingAsPlayed returns a state with the id recorded in the session history
// and the pool entry's play statistics advanced. Unknown ids are a no-op.
func (s State) MarkingAsPlayed(id string, at time.Time) State {
	i := s.poolIndex(id)
	if i < 0 {
		return s
	}

	next := s.clone()
	next.markPlayed(id)
	next.pool[i] = next.pool[i].Played(at)
	if j := indexOf(next.order, id); j >= 0 {
		next.order[j] = next.pool[i]
	}
	return next
}

// ClearingPlayedHistory returns a state with an empty session history.
func (s State) ClearingPlayedHistory() State {
	next := s.clone()
	next.playedIDs = nil
	return next
}

// Restored rebuilds the play order from persisted ids. Ids no longer in the
// pool are dropped, the order is rotated so the designated current song sits
// at index 0 (the transport always starts from the first entry), and the
// played set is trimmed to the pool. ok is false when no valid songs remain.
func (s State) Restored(orderIDs []string, currentSongID string, playedIDs []string) (State, bool) {
	order := make([]song.Song, 0, len(orderIDs))
	for _, id := range orderIDs {
		if p, found := s.SongByID(id); found {
			order = append(order, p)
		}
	}
	if len(order) == 0 {
		return s, false
	}

	if i := indexOf(order, currentSongID); i > 0 {
		order = append(order[i:], order[:i]...)
	}

	next := s.clone()
	next.order = order
	next.current = 0
	next.playedIDs = nil
	for _, id := range playedIDs {
		if next.poolIndex(id) >= 0 {
			next.markPlayed(id)
		}
	}
	return next, true
}

func (s State) poolIndex(id string) int {
	return indexOf(s.pool, id)
}

// indexOf returns the position of the song with the given id, -1 when absent.
func indexOf(songs []song.Song, id string) int {
	for i, sg := range songs {
		if sg.ID == id {
			return i
		}
	}
	return -1
}

// clone copies every container so transitions can mutate the copy freely.
func (s State) clone() State {
	next := State{
		current:   s.current,
		algorithm: s.algorithm,
	}
	next.pool = make([]song.Song, len(s.pool))
	copy(next.pool, s.pool)
	next.order = make([]song.Song, len(s.order))
	copy(next.order, s.order)
	if len(s.playedIDs) > 0 {
		next.playedIDs = make(map[string]struct{}, len(s.playedIDs))
		for id := range s.playedIDs {
			next.playedIDs[id] = struct{}{}
		}
	}
	return next
}

func (s *State) markPlayed(id string) {
	if s.playedIDs == nil {
		s.playedIDs = make(map[string]struct{})
	}
	s.playedIDs[id] = struct{}{}
}

func (s *State) clampCursor() {
	if len(s.order) == 0 {
		s.current = 0
		return
	}
	if s.current >= len(s.order) {
		s.current = len(s.order) - 1
	}
	if s.current < 0 {
		s.current = 0
	}
}
