// Package restore rebuilds a playback session from a persisted snapshot.
package restore

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/app/observer"
	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/infra/store"
)

// MaxSnapshotAge is the oldest a snapshot may be and still be restored.
const MaxSnapshotAge = 7 * 24 * time.Hour

var (
	ErrSnapshotEmpty = errors.New("snapshot has no songs")
	ErrSnapshotStale = errors.New("snapshot is too old")
)

// Restorer reinstalls a snapshot onto the transport. Restoration always
// lands paused; playback never starts on its own after a restart.
type Restorer struct {
	transport engine.Transport
	observer  *observer.Observer
	maxAge    time.Duration
}

// New creates a restorer. maxAge of zero means MaxSnapshotAge.
func New(transport engine.Transport, obs *observer.Observer, maxAge time.Duration) *Restorer {
	if maxAge <= 0 {
		maxAge = MaxSnapshotAge
	}
	return &Restorer{transport: transport, observer: obs, maxAge: maxAge}
}

// Restore validates the snapshot, rebuilds the queue state, pushes it to the
// transport paused at the saved song, and schedules a seek to the saved
// position. It fails closed: any validation or transport failure leaves the
// caller to start a fresh session.
func (r *Restorer) Restore(ctx context.Context, snap store.Snapshot, base queue.State) (queue.State, engine.Playback, error) {
	if len(snap.Pool) == 0 {
		return base, engine.EmptyPlayback(), ErrSnapshotEmpty
	}
	if age := time.Since(snap.SavedAt); age > r.maxAge {
		return base, engine.EmptyPlayback(), errors.Wrapf(ErrSnapshotStale, "saved %s ago", age.Round(time.Second))
	}

	qs, err := base.AddingSongs(snap.Pool)
	if err != nil {
		return base, engine.EmptyPlayback(), errors.Wrap(err, "restoring pool")
	}
	qs, ok := qs.Restored(snap.QueueOrder, snap.CurrentSongID, snap.PlayedIDs)
	if !ok {
		return base, engine.EmptyPlayback(), errors.New("snapshot order references no known songs")
	}
	current, ok := qs.Current()
	if !ok {
		return base, engine.EmptyPlayback(), errors.New("restored queue has no current song")
	}

	// Transport churn during the reinstall must not be mistaken for a user
	// initiated stop or skip.
	r.observer.BeginSuppression(0)
	if err := r.transport.ReplaceQueue(ctx, qs.Order(), current.ID, engine.PolicyForcePaused); err != nil {
		r.observer.EndSuppression()
		return base, engine.EmptyPlayback(), errors.Wrap(err, "reinstalling queue")
	}
	if snap.Position > 0 {
		// Seek while paused, and keep a pending seek in case the transport
		// resets the position when playback actually starts.
		if err := r.transport.Seek(ctx, snap.Position); err != nil {
			zlog.Warn().Err(err).Msg("seek to saved position failed")
		}
		r.observer.SetPendingSeek(current.ID, snap.Position)
	}

	zlog.Info().
		Int("pool", qs.PoolSize()).
		Int("queued", qs.OrderSize()).
		Str("currentSongId", current.ID).
		Dur("position", snap.Position).
		Msg("session restored")

	return qs, engine.PausedPlayback(current), nil
}
