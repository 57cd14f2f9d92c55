package seed

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/domain/song"
)

type PlaylistProviderConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
}

// PlaylistProvider provides seed songs by randomly selecting from a configured playlist.
// It maintains an internal cache to minimize Spotify API calls.
type PlaylistProvider struct {
	spotify        SpotifyClient
	cache          []song.Song
	candidateCount int // Target cache size
	config         *PlaylistProviderConfig
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(spotify SpotifyClient, candidateCount int, settings map[string]any) (*PlaylistProvider, error) {
	var config PlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("playlist provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &PlaylistProvider{
		spotify:        spotify,
		cache:          make([]song.Song, 0),
		candidateCount: candidateCount,
		config:         &config}, nil
}

// GetCandidates retrieves random songs from the configured playlist.
// Maintains a cache to avoid redundant API calls when random selection returns duplicates.
func (p *PlaylistProvider) GetCandidates(ctx context.Context, count int, seedSongs []song.Song, excludeIDs map[string]bool) ([]song.Song, error) {
	if count <= 0 {
		return []song.Song{}, nil
	}

	// Filter cache to exclude songs already in the pool
	availableFromCache := make([]song.Song, 0)
	for _, s := range p.cache {
		if !excludeIDs[s.ID] {
			availableFromCache = append(availableFromCache, s)
		}
	}

	// If the cache doesn't have enough songs, fetch more from Spotify
	if len(availableFromCache) < count {
		needed := p.candidateCount - len(availableFromCache)
		newSongs, err := p.spotify.GetPlaylistSongsRandom(ctx, p.config.PlaylistURL, needed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random songs from playlist")
		}

		for _, s := range newSongs {
			if !excludeIDs[s.ID] && !contains(availableFromCache, s.ID) {
				availableFromCache = append(availableFromCache, s)
			}
		}
	}

	if len(availableFromCache) == 0 {
		return []song.Song{}, nil
	}

	returnCount := count
	if returnCount > len(availableFromCache) {
		returnCount = len(availableFromCache)
	}

	result := availableFromCache[:returnCount]
	p.cache = availableFromCache[returnCount:]

	return result, nil
}

// Name returns the provider name.
func (p *PlaylistProvider) Name() string {
	return "playlist"
}

// contains checks if a song ID is in the slice.
func contains(songs []song.Song, id string) bool {
	for _, s := range songs {
		if s.ID == id {
			return true
		}
	}
	return false
}
