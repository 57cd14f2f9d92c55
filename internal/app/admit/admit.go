// Package admit provides the admission rule chain for song additions.
package admit

import (
	"context"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// Source identifies where an addition request came from.
type Source int

const (
	// SourceUser is an interactive addition.
	SourceUser Source = iota
	// SourceSeed is an automatic addition from a seed provider.
	SourceSeed
	// SourceRestore is a reinstall from a persisted snapshot.
	SourceRestore
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceSeed:
		return "seed"
	case SourceRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Result represents the result of a rule check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_song", "duration_limit_exceeded"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Rule is the interface for admission rules.
type Rule interface {
	// Name returns the rule name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this rule can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the rule configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this rule should be applied to the given source.
	AppliesTo(source Source) bool
	// Check performs the rule check against the current queue state.
	Check(ctx context.Context, candidate song.Song, qs queue.State) Result
}

// registry holds registered rule factories.
var registry = make(map[string]func() Rule)

// Register registers a rule factory.
func Register(name string, factory func() Rule) {
	registry[name] = factory
}

// GetRegistered returns all registered rule factories.
func GetRegistered() map[string]func() Rule {
	return registry
}
