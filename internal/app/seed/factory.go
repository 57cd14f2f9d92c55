package seed

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ProviderConfig names a provider type and carries its settings.
type ProviderConfig struct {
	Type        string
	DisplayName string
	Settings    map[string]any
}

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(configs []ProviderConfig, candidateCount int, spotify SpotifyClient) (*ProviderChain, error) {
	if len(configs) == 0 {
		return nil, errors.New("no seed providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range configs {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating seed provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "playlist":
			provider, err = NewPlaylistProvider(spotify, candidateCount, pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFmProvider(spotify, candidateCount, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered seed provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
