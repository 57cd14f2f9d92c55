// Package player wires the queue engine to a transport and runs the
// playback session.
package player

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/admit"
	"github.com/osa030/shufflebox/internal/app/chain"
	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/app/notify"
	"github.com/osa030/shufflebox/internal/app/observer"
	"github.com/osa030/shufflebox/internal/app/restore"
	"github.com/osa030/shufflebox/internal/app/seed"
	"github.com/osa030/shufflebox/internal/app/telemetry"
	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
	"github.com/osa030/shufflebox/internal/infra/store"
)

// staleEventAge is how old an observed transport state may be before it is
// discarded as stale.
const staleEventAge = 30 * time.Second

// ErrSongRejected is returned when the admission chain rejects every
// candidate of an addition.
var ErrSongRejected = errors.New("song rejected")

// SnapshotStore persists session snapshots.
type SnapshotStore interface {
	Save(store.Snapshot) error
	Load() (*store.Snapshot, error)
}

// Rejection reports a song the admission chain refused.
type Rejection struct {
	Song song.Song
	Code string
}

// Options configures a Player.
type Options struct {
	Transport engine.Transport
	Observer  *observer.Observer
	Admission *admit.Chain
	Seeds     *seed.ProviderChain
	Store     SnapshotStore
	Drift     *telemetry.Recorder

	Algorithm          shuffle.Algorithm
	SuppressionWindow  time.Duration
	AutosaveDebounce   time.Duration
	DriftProbeInterval time.Duration
	SnapshotMaxAge     time.Duration
}

// Player owns the engine state and serializes every operation through a
// single execution chain.
type Player struct {
	transport   engine.Transport
	obs         *observer.Observer
	admission   *admit.Chain
	seeds       *seed.ProviderChain
	store       SnapshotStore
	drift       *telemetry.Recorder
	broadcaster *notify.Broadcaster

	ops  *chain.Chain
	exec *chain.Executor

	suppressionWindow  time.Duration
	autosaveDebounce   time.Duration
	driftProbeInterval time.Duration
	snapshotMaxAge     time.Duration

	mu           sync.RWMutex
	state        engine.State
	lastPosition time.Duration

	saveMu    sync.Mutex
	saveTimer *time.Timer
}

// New creates a player with a fresh engine state.
func New(opts Options) (*Player, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Observer == nil {
		opts.Observer = observer.New()
	}
	if opts.Drift == nil {
		opts.Drift = telemetry.NewRecorder()
	}

	return &Player{
		transport:          opts.Transport,
		obs:                opts.Observer,
		admission:          opts.Admission,
		seeds:              opts.Seeds,
		store:              opts.Store,
		drift:              opts.Drift,
		broadcaster:        notify.NewBroadcaster(),
		ops:                chain.New(),
		exec:               chain.NewExecutor(opts.Transport, opts.Drift),
		suppressionWindow:  opts.SuppressionWindow,
		autosaveDebounce:   opts.AutosaveDebounce,
		driftProbeInterval: opts.DriftProbeInterval,
		snapshotMaxAge:     opts.SnapshotMaxAge,
		state:              engine.NewState(opts.Algorithm),
	}, nil
}

// dispatch runs one intent through the execution chain: reduce, issue the
// commands, install the new state, notify subscribers.
func (p *Player) dispatch(ctx context.Context, in engine.Intent) error {
	return p.ops.Do(ctx, func(ctx context.Context) error {
		p.mu.RLock()
		current := p.state
		p.mu.RUnlock()

		red, err := engine.Reduce(current, in)
		if err != nil {
			return err
		}
		if red.NoOp {
			return nil
		}

		// A queue install causes transport churn that must not read back as
		// user activity.
		for _, cmd := range red.Commands {
			if cmd.Type == engine.CommandSetQueue || cmd.Type == engine.CommandReplaceQueue {
				p.obs.BeginSuppression(p.suppressionWindow)
				break
			}
		}

		if err := p.exec.Apply(ctx, red); err != nil {
			return err
		}

		p.mu.Lock()
		p.state = red.State
		p.mu.Unlock()

		p.publish()
		if in.Type != engine.IntentResolution {
			p.scheduleSave()
		}
		return nil
	})
}

// AddSongs screens the candidates through the admission chain and adds the
// accepted ones to the pool. It reports per-song rejections; the returned
// error is non-nil only when nothing could be added.
func (p *Player) AddSongs(ctx context.Context, songs ...song.Song) ([]Rejection, error) {
	accepted, rejections := p.screen(ctx, songs, admit.SourceUser)
	if len(accepted) == 0 {
		if len(rejections) > 0 {
			return rejections, errors.Wrapf(ErrSongRejected, "%d of %d candidates", len(rejections), len(songs))
		}
		return nil, errors.New("no songs to add")
	}

	if err := p.dispatch(ctx, engine.AddSongsIntent(accepted...)); err != nil {
		return rejections, err
	}
	return rejections, nil
}

// RemoveSong removes a song from the pool.
func (p *Player) RemoveSong(ctx context.Context, songID string) error {
	return p.dispatch(ctx, engine.RemoveSongIntent(songID))
}

// Prepare builds the queue and parks the transport paused at its head
// without starting playback.
func (p *Player) Prepare(ctx context.Context) error {
	return p.dispatch(ctx, engine.PrepareIntent())
}

// Play starts or resumes playback.
func (p *Player) Play(ctx context.Context) error {
	return p.dispatch(ctx, engine.PlayIntent())
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	return p.dispatch(ctx, engine.PauseIntent())
}

// SkipNext moves to the next song.
func (p *Player) SkipNext(ctx context.Context) error {
	return p.dispatch(ctx, engine.SkipNextIntent())
}

// SkipPrevious restarts the current song or moves to the prior one.
func (p *Player) SkipPrevious(ctx context.Context) error {
	return p.dispatch(ctx, engine.SkipPreviousIntent())
}

// Toggle flips between playing and paused.
func (p *Player) Toggle(ctx context.Context) error {
	return p.dispatch(ctx, engine.ToggleIntent())
}

// ChangeAlgorithm switches the shuffle algorithm. The new order takes
// effect at the next rebuild boundary.
func (p *Player) ChangeAlgorithm(ctx context.Context, alg shuffle.Algorithm) error {
	return p.dispatch(ctx, engine.ChangeAlgorithmIntent(alg))
}

// Seed replaces the pool with songs from the configured providers.
func (p *Player) Seed(ctx context.Context, count int) error {
	if p.seeds == nil {
		return errors.New("no seed providers configured")
	}
	if count <= 0 || count > queue.MaxPoolSize {
		count = queue.MaxPoolSize
	}

	recent := p.recentlyPlayed()
	candidates, err := p.seeds.GetCandidates(ctx, count, recent, map[string]bool{})
	if err != nil {
		return errors.Wrap(err, "fetching seed candidates")
	}

	songs := make([]song.Song, 0, len(candidates))
	for _, c := range candidates {
		songs = append(songs, c.Song)
	}
	screened, _ := p.screen(ctx, songs, admit.SourceSeed)
	if len(screened) == 0 {
		return errors.New("all seed candidates were rejected")
	}

	return p.dispatch(ctx, engine.SeedSongsIntent(screened))
}

// RestoreSession reloads the last saved session. Any failure leaves the
// player with its fresh state.
func (p *Player) RestoreSession(ctx context.Context) error {
	if p.store == nil {
		return errors.New("no snapshot store configured")
	}

	snap, err := p.store.Load()
	if err != nil {
		return errors.Wrap(err, "loading snapshot")
	}
	if snap == nil {
		return nil
	}

	p.mu.RLock()
	base := queue.New(p.state.Queue.Algorithm())
	p.mu.RUnlock()

	restorer := restore.New(p.transport, p.obs, p.snapshotMaxAge)
	qs, playback, err := restorer.Restore(ctx, *snap, base)
	if err != nil {
		return errors.Wrap(err, "restoring session")
	}

	return p.dispatch(ctx, engine.RestoreSessionIntent(qs, playback))
}

// screen runs the candidates through the admission chain.
func (p *Player) screen(ctx context.Context, songs []song.Song, source admit.Source) ([]song.Song, []Rejection) {
	if p.admission == nil {
		return songs, nil
	}

	p.mu.RLock()
	qs := p.state.Queue
	p.mu.RUnlock()

	var accepted []song.Song
	var rejections []Rejection
	for _, s := range songs {
		result := p.admission.Execute(ctx, s, qs, source)
		if result.Accepted {
			accepted = append(accepted, s)
			continue
		}
		rejections = append(rejections, Rejection{Song: s, Code: result.Code})
	}
	return accepted, rejections
}

// recentlyPlayed returns played pool songs, most recent first.
func (p *Player) recentlyPlayed() []song.Song {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var played []song.Song
	for _, s := range p.state.Queue.Pool() {
		if p.state.Queue.IsPlayed(s.ID) {
			played = append(played, s)
		}
	}
	sort.Slice(played, func(i, j int) bool {
		return played[i].LastPlayedAt.After(played[j].LastPlayedAt)
	})
	return played
}

// Run consumes observed transport states and runs the drift probe until
// the context is cancelled.
func (p *Player) Run(ctx context.Context) error {
	var probe *time.Ticker
	var probeC <-chan time.Time
	if p.driftProbeInterval > 0 {
		probe = time.NewTicker(p.driftProbeInterval)
		probeC = probe.C
		defer probe.Stop()
	}

	defer p.broadcaster.Close()

	states := p.transport.States()
	for {
		select {
		case <-ctx.Done():
			p.flushSave()
			return ctx.Err()

		case raw, ok := <-states:
			if !ok {
				p.flushSave()
				return nil
			}
			p.handleRawState(ctx, raw)

		case <-probeC:
			p.probeQueueDrift(ctx)
		}
	}
}

func (p *Player) handleRawState(ctx context.Context, raw engine.RawState) {
	if !raw.ObservedAt.IsZero() && time.Since(raw.ObservedAt) > staleEventAge {
		p.drift.Record(telemetry.DriftStaleEvent,
			fmt.Sprintf("discarded %s state observed %s ago", raw.Kind, time.Since(raw.ObservedAt).Round(time.Second)))
		return
	}

	p.mu.Lock()
	p.lastPosition = raw.Position
	qs := p.state.Queue
	p.mu.Unlock()

	if raw.Song != nil && qs.PoolSize() > 0 {
		if _, ok := qs.SongByID(raw.Song.ID); !ok {
			if _, ok := qs.SongByIdentity(*raw.Song); !ok {
				p.drift.Record(telemetry.DriftUnknownSong,
					fmt.Sprintf("transport reported song %s not in pool", raw.Song.ID))
			}
		}
	}

	resolution := p.obs.Resolve(raw, qs)

	if err := p.dispatch(ctx, engine.ResolutionIntent(resolution)); err != nil {
		zlog.Warn().Err(err).Msg("failed to apply resolved state")
		return
	}

	if resolution.PendingSeek > 0 {
		if err := p.transport.Seek(ctx, resolution.PendingSeek); err != nil {
			zlog.Warn().Err(err).Dur("position", resolution.PendingSeek).Msg("pending seek failed")
		}
	}

	// A song change the transport made on its own is a natural boundary: if a
	// deferred rebuild is still pending, flush it now. The resolution itself
	// stays command-free; the flush is a separate mutating intent.
	st := p.State()
	if resolution.UpdateCurrentSong && (st.QueueNeedsBuild || st.Queue.IsQueueStale()) {
		if err := p.dispatch(ctx, engine.ResyncQueueIntent()); err != nil {
			zlog.Warn().Err(err).Msg("failed to flush deferred queue rebuild")
		}
	}
}

// probeQueueDrift compares the transport queue length with the engine's
// upcoming count.
func (p *Player) probeQueueDrift(ctx context.Context) {
	p.mu.RLock()
	upcoming := len(p.state.Queue.Upcoming())
	active := p.state.Playback.IsActive() || p.state.Playback.Kind == engine.PlaybackPaused
	p.mu.RUnlock()

	if !active {
		return
	}

	length, err := p.transport.QueueLength(ctx)
	if err != nil {
		zlog.Debug().Err(err).Msg("queue drift probe failed")
		return
	}

	if length != upcoming {
		p.drift.Record(telemetry.DriftQueueLength,
			fmt.Sprintf("transport has %d queued, engine expects %d", length, upcoming))
	}
}

// Subscribe registers an update subscriber.
func (p *Player) Subscribe() (string, <-chan notify.Update) {
	return p.broadcaster.Subscribe()
}

// Unsubscribe removes an update subscriber.
func (p *Player) Unsubscribe(id string) {
	p.broadcaster.Unsubscribe(id)
}

// State returns a copy of the current engine state.
func (p *Player) State() engine.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// DriftStats returns a snapshot of recorded drift telemetry.
func (p *Player) DriftStats() telemetry.Stats {
	return p.drift.Snapshot()
}

func (p *Player) publish() {
	p.mu.RLock()
	st := p.state
	p.mu.RUnlock()

	current, _ := st.Queue.Current()
	p.broadcaster.Broadcast(notify.Update{
		Playback: st.Playback,
		Current:  current,
		Upcoming: st.Queue.Upcoming(),
		Pool:     st.Queue.Pool(),
		Revision: st.Revision,
		Drift:    p.drift.Snapshot(),
	})
}

// scheduleSave debounces snapshot writes.
func (p *Player) scheduleSave() {
	if p.store == nil {
		return
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	if p.saveTimer != nil {
		p.saveTimer.Stop()
	}
	debounce := p.autosaveDebounce
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	p.saveTimer = time.AfterFunc(debounce, func() {
		if err := p.saveSnapshot(); err != nil {
			zlog.Warn().Err(err).Msg("snapshot autosave failed")
		}
	})
}

// flushSave cancels any pending autosave and writes immediately.
func (p *Player) flushSave() {
	if p.store == nil {
		return
	}

	p.saveMu.Lock()
	if p.saveTimer != nil {
		p.saveTimer.Stop()
		p.saveTimer = nil
	}
	p.saveMu.Unlock()

	if err := p.saveSnapshot(); err != nil {
		zlog.Warn().Err(err).Msg("final snapshot save failed")
	}
}

// SaveNow writes a snapshot immediately.
func (p *Player) SaveNow() error {
	if p.store == nil {
		return errors.New("no snapshot store configured")
	}
	return p.saveSnapshot()
}

func (p *Player) saveSnapshot() error {
	p.mu.RLock()
	qs := p.state.Queue
	pos := p.lastPosition
	p.mu.RUnlock()

	if qs.IsEmpty() {
		return nil
	}

	var currentID string
	if current, ok := qs.Current(); ok {
		currentID = current.ID
	}

	return p.store.Save(store.Snapshot{
		Pool:          qs.Pool(),
		QueueOrder:    song.IDs(qs.Order()),
		CurrentSongID: currentID,
		PlayedIDs:     qs.PlayedIDs(),
		Position:      pos,
		SavedAt:       time.Now(),
	})
}
