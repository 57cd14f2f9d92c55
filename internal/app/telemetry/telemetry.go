// Package telemetry records detected domain/transport drift for diagnostics.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// recentEventCap bounds the recent-events log.
const recentEventCap = 32

// DriftKind classifies a recorded divergence.
type DriftKind int

const (
	DriftQueueLength  DriftKind = iota // Transport queue size differs from the domain
	DriftUnknownSong                   // Transport reported a song the pool does not hold
	DriftStaleCommand                  // A command batch was dropped for a superseded revision
	DriftStaleEvent                    // A raw event referenced state the domain already left
)

// String returns the string representation of the drift kind.
func (k DriftKind) String() string {
	switch k {
	case DriftQueueLength:
		return "queue_length"
	case DriftUnknownSong:
		return "unknown_song"
	case DriftStaleCommand:
		return "stale_command"
	case DriftStaleEvent:
		return "stale_event"
	default:
		return "unknown"
	}
}

// Event is one recorded drift occurrence.
type Event struct {
	ID         string
	Kind       DriftKind
	Detail     string
	ObservedAt time.Time
}

// Stats is a point-in-time snapshot of the recorder.
type Stats struct {
	Counts map[DriftKind]uint64
	Recent []Event
}

// Recorder accumulates drift counters and a bounded recent-events log.
// Write-only for the core, read-only for diagnostics.
type Recorder struct {
	mu     sync.Mutex
	counts map[DriftKind]uint64
	recent []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[DriftKind]uint64)}
}

// Record notes one drift occurrence.
func (r *Recorder) Record(kind DriftKind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[kind]++
	r.recent = append(r.recent, Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		Detail:     detail,
		ObservedAt: time.Now(),
	})
	if len(r.recent) > recentEventCap {
		r.recent = r.recent[len(r.recent)-recentEventCap:]
	}

	zlog.Debug().Msgf("drift: kind=%s detail=%s", kind, detail)
}

// Snapshot returns a copy of the counters and the recent events.
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[DriftKind]uint64, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	recent := make([]Event, len(r.recent))
	copy(recent, r.recent)
	return Stats{Counts: counts, Recent: recent}
}
