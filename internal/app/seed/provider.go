// Package seed provides song provision strategies for filling the pool.
package seed

import (
	"context"

	"github.com/osa030/shufflebox/internal/domain/song"
)

// Provider is the interface for seed song providers.
// Different implementations can provide songs through various strategies
// (e.g., playlist-based, recommendation-based, etc.).
type Provider interface {
	// GetCandidates retrieves seed song candidates.
	// count: the number of candidates to retrieve
	// seedSongs: recently played songs that can be used as hints for recommendations
	// excludeIDs: songs already in the pool (for duplicate avoidance)
	GetCandidates(ctx context.Context, count int, seedSongs []song.Song, excludeIDs map[string]bool) ([]song.Song, error)

	// Name returns the provider name (used in config).
	Name() string
}

// SpotifyClient defines the interface for Spotify operations needed by seed providers.
type SpotifyClient interface {
	GetPlaylistSongsRandom(ctx context.Context, playlistURL string, count int) ([]song.Song, error)
	Search(ctx context.Context, query string, limit int) ([]song.Song, error)
	GetSong(ctx context.Context, songID string) (*song.Song, error)
}
