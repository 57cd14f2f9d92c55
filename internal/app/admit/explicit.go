package admit

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// ExplicitConfig represents the configuration for ExplicitContentRule.
type ExplicitConfig struct {
	Allow bool `yaml:"allow" mapstructure:"allow"`
}

// ExplicitContentRule rejects songs flagged as explicit unless allowed.
type ExplicitContentRule struct {
	config *ExplicitConfig
}

// NewExplicitContentRule creates a new explicit content rule.
func NewExplicitContentRule() *ExplicitContentRule {
	return &ExplicitContentRule{}
}

func (r *ExplicitContentRule) Name() string {
	return "explicit_content_rule"
}

func (r *ExplicitContentRule) Description() string {
	return "Rejects songs flagged as explicit unless explicitly allowed"
}

func (r *ExplicitContentRule) ReturnCodes() []string {
	return []string{"explicit_content"}
}

func (r *ExplicitContentRule) ValidateConfig(settings map[string]any) error {
	var config ExplicitConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	r.config = &config
	return nil
}

func (r *ExplicitContentRule) AppliesTo(source Source) bool {
	// Seeded songs are screened too; only restores bypass the check.
	return source != SourceRestore
}

func (r *ExplicitContentRule) Check(ctx context.Context, candidate song.Song, qs queue.State) Result {
	if r.config != nil && r.config.Allow {
		return Accept()
	}
	if candidate.Explicit {
		return Reject("explicit_content")
	}
	return Accept()
}

func init() {
	Register("explicit_content_rule", func() Rule {
		return NewExplicitContentRule()
	})
}
