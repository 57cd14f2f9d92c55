package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/app/telemetry"
)

// ErrUnknownCommand is returned when a command type has no transport mapping.
var ErrUnknownCommand = errors.New("unknown command type")

// Executor issues reduction command batches to the transport. It tracks the
// latest revision it has seen and silently drops any batch that is already
// superseded, recording the drop as drift.
type Executor struct {
	transport engine.Transport
	drift     *telemetry.Recorder

	mu     sync.Mutex
	latest uint64
}

// NewExecutor creates an executor bound to a transport. drift may be nil.
func NewExecutor(transport engine.Transport, drift *telemetry.Recorder) *Executor {
	return &Executor{transport: transport, drift: drift}
}

// LatestRevision returns the newest revision the executor has accepted.
func (e *Executor) LatestRevision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Apply issues the commands of a reduction in order. Batches whose revision
// is older than the latest accepted one are dropped without touching the
// transport. Reductions without commands only advance the revision watermark.
func (e *Executor) Apply(ctx context.Context, red engine.Reduction) error {
	e.mu.Lock()
	if red.State.Revision < e.latest {
		e.mu.Unlock()
		if e.drift != nil {
			e.drift.Record(telemetry.DriftStaleCommand,
				fmt.Sprintf("dropped batch at revision %d, latest is %d", red.State.Revision, e.LatestRevision()))
		}
		zlog.Debug().
			Uint64("revision", red.State.Revision).
			Int("commands", len(red.Commands)).
			Msg("dropping superseded command batch")
		return nil
	}
	e.latest = red.State.Revision
	e.mu.Unlock()

	for _, cmd := range red.Commands {
		if err := e.issue(ctx, cmd); err != nil {
			return errors.Wrapf(err, "issuing %s command", cmd.Type)
		}
	}
	return nil
}

func (e *Executor) issue(ctx context.Context, cmd engine.Command) error {
	switch cmd.Type {
	case engine.CommandSetQueue:
		return e.transport.SetQueue(ctx, cmd.Queue)
	case engine.CommandReplaceQueue:
		return e.transport.ReplaceQueue(ctx, cmd.Queue, cmd.StartAtSongID, cmd.Policy)
	case engine.CommandPlay:
		return e.transport.Play(ctx)
	case engine.CommandPause:
		return e.transport.Pause(ctx)
	case engine.CommandSkipNext:
		return e.transport.SkipToNext(ctx)
	case engine.CommandSkipPrevious:
		return e.transport.SkipToPrevious(ctx)
	case engine.CommandRestartOrSkipPrevious:
		return e.transport.RestartOrSkipToPrevious(ctx)
	default:
		return errors.Wrapf(ErrUnknownCommand, "type %d", cmd.Type)
	}
}
