package admit

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// DurationLimitConfig represents the configuration for DurationLimitRule.
type DurationLimitConfig struct {
	MinMinutes float64 `yaml:"min_minutes" mapstructure:"min_minutes" default:"1" validate:"gte=0"`
	MaxMinutes float64 `yaml:"max_minutes" mapstructure:"max_minutes" validate:"gte=0"`
}

// DurationLimitRule checks if song duration is within allowed limits.
type DurationLimitRule struct {
	config *DurationLimitConfig
}

// NewDurationLimitRule creates a new duration limit rule.
func NewDurationLimitRule() *DurationLimitRule {
	return &DurationLimitRule{}
}

func (r *DurationLimitRule) Name() string {
	return "duration_limit_rule"
}

func (r *DurationLimitRule) Description() string {
	return "Checks if song duration is within allowed limits"
}

func (r *DurationLimitRule) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (r *DurationLimitRule) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig

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

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// min_minutes cannot be greater than max_minutes (0 means no upper limit)
	if config.MaxMinutes > 0 && config.MinMinutes > config.MaxMinutes {
		return errors.New("min_minutes cannot be greater than max_minutes")
	}

	r.config = &config
	zlog.Info().Msgf("duration limit rule config: %+v", config)
	return nil
}

func (r *DurationLimitRule) AppliesTo(source Source) bool {
	// Seeds are curated and restores are trusted.
	return source == SourceUser
}

func (r *DurationLimitRule) Check(ctx context.Context, candidate song.Song, qs queue.State) Result {
	// If config is not set, accept all songs
	if r.config == nil {
		return Accept()
	}

	durationMinutes := candidate.Duration.Minutes()

	if durationMinutes < r.config.MinMinutes {
		return Reject("duration_limit_exceeded")
	}
	if r.config.MaxMinutes > 0 && durationMinutes > r.config.MaxMinutes {
		return Reject("duration_limit_exceeded")
	}

	return Accept()
}

func init() {
	Register("duration_limit_rule", func() Rule {
		return NewDurationLimitRule()
	})
}
