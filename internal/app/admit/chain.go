package admit

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// Chain executes admission rules in sequence.
type Chain struct {
	rules []Rule
}

// NewChain creates an empty rule chain.
func NewChain() *Chain {
	return &Chain{
		rules: make([]Rule, 0),
	}
}

// RuleConfig names a rule and carries its settings.
type RuleConfig struct {
	Name     string
	Settings map[string]any
}

// NewChainFromConfig builds a chain of registered rules from configuration.
func NewChainFromConfig(configs []RuleConfig) (*Chain, error) {
	chain := NewChain()
	for _, rc := range configs {
		factory, ok := registry[rc.Name]
		if !ok {
			return nil, errors.Newf("unknown admission rule: %s", rc.Name)
		}
		rule := factory()
		if err := rule.ValidateConfig(rc.Settings); err != nil {
			return nil, errors.Wrapf(err, "configuring rule %s", rc.Name)
		}
		chain.Add(rule)
		zlog.Debug().Str("rule", rule.Name()).Msg("admission rule enabled")
	}
	return chain, nil
}

// Add adds a rule to the chain.
func (c *Chain) Add(r Rule) {
	c.rules = append(c.rules, r)
}

// Execute runs all rules in sequence.
// Returns immediately when any rule rejects the candidate.
// Rules are only applied if they declare they apply to the given source.
func (c *Chain) Execute(ctx context.Context, candidate song.Song, qs queue.State, source Source) Result {
	for _, r := range c.rules {
		if !r.AppliesTo(source) {
			continue
		}

		result := r.Check(ctx, candidate, qs)
		if !result.Accepted {
			zlog.Debug().
				Str("rule", r.Name()).
				Str("code", result.Code).
				Str("songId", candidate.ID).
				Msg("song rejected")
			return result
		}
	}
	return Accept()
}

// Rules returns all rules in the chain.
func (c *Chain) Rules() []Rule {
	return c.rules
}
