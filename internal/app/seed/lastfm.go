package seed

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/shufflebox/internal/domain/song"
	"github.com/osa030/shufflebox/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

type LastFmProviderConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SeedSongCount int     `yaml:"seed_song_count" mapstructure:"seed_song_count" default:"3" validate:"gte=1"`
	TagCount      int     `yaml:"tag_count" mapstructure:"tag_count" default:"5" validate:"gte=1"`
	TagWeight     float64 `yaml:"tag_weight" mapstructure:"tag_weight" default:"0.4" validate:"lte=1.0"`
	SimilarWeight float64 `yaml:"similar_weight" mapstructure:"similar_weight" default:"0.6" validate:"lte=1.0"`
}

// LastFmProvider provides seed songs using the Last.fm API with hybrid scoring.
// Combines tag-based and similar-based strategies with configurable weights.
type LastFmProvider struct {
	lastfm  LastFmClient
	spotify SpotifyClient

	// Cache for Spotify search results
	spotifySearchCache map[string]*song.Song
	cacheMutex         sync.RWMutex

	candidateCount int
	config         *LastFmProviderConfig
}

// ScoredSong represents a song with its hybrid score.
type ScoredSong struct {
	Song  song.Song
	Score float64
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(spotify SpotifyClient, candidateCount int, settings map[string]any) (*LastFmProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if config.TagWeight+config.SimilarWeight != 1.0 {
		return nil, errors.New("tag weight and similar weight must sum to 1.0")
	}

	lastfmClient, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastFmProvider{
		spotify:            spotify,
		lastfm:             lastfmClient,
		spotifySearchCache: make(map[string]*song.Song),
		candidateCount:     candidateCount,
		config:             &config}, nil
}

// GetCandidates retrieves seed song candidates using hybrid scoring.
func (p *LastFmProvider) GetCandidates(ctx context.Context, count int, seedSongs []song.Song, excludeIDs map[string]bool) ([]song.Song, error) {
	if count <= 0 {
		return []song.Song{}, nil
	}

	if len(seedSongs) > p.config.SeedSongCount {
		seedSongs = seedSongs[:p.config.SeedSongCount]
	}

	if len(seedSongs) == 0 {
		// No seed songs available, use global charts as fallback
		return p.getChartBasedCandidates(ctx, count, excludeIDs)
	}

	tagCandidates := p.getTagBasedCandidates(ctx, seedSongs, excludeIDs)
	similarCandidates := p.getSimilarBasedCandidates(ctx, seedSongs, excludeIDs)

	scored := p.scoreAndMerge(tagCandidates, similarCandidates)
	if len(scored) == 0 {
		return []song.Song{}, nil
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Pick randomly from the top N*2 instead of always taking the absolute
	// top N, to add variety between refills.
	poolSize := count * 2
	if poolSize > len(scored) {
		poolSize = len(scored)
	}
	topCandidates := scored[:poolSize]

	rng := newRand()
	rng.Shuffle(len(topCandidates), func(i, j int) {
		topCandidates[i], topCandidates[j] = topCandidates[j], topCandidates[i]
	})

	result := make([]song.Song, 0, count)
	for i := 0; i < count && i < len(topCandidates); i++ {
		result = append(result, topCandidates[i].Song)
	}

	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// getTagBasedCandidates retrieves candidates using the tag-based strategy.
func (p *LastFmProvider) getTagBasedCandidates(ctx context.Context, seedSongs []song.Song, excludeIDs map[string]bool) []song.Song {
	// Collect tags from seed songs
	tagCounts := make(map[string]int)
	for _, seed := range seedSongs {
		if seed.Artist == "" {
			continue
		}
		tags, err := p.lastfm.GetTopTags(ctx, seed.Title, seed.Artist, 10)
		if err != nil {
			continue // Skip on error
		}
		for _, tag := range tags {
			tagCounts[tag.Name] += tag.Count
		}
	}

	if len(tagCounts) == 0 {
		return []song.Song{}
	}

	topTags := sortAndTakeTopTags(tagCounts, p.config.TagCount)

	var candidates []song.Song
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tagName := range topTags {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			lfmTracks, err := p.lastfm.GetTopTracks(ctx, tag, 20)
			if err != nil {
				return // Skip on error
			}

			for _, lfmTrack := range lfmTracks {
				found := p.searchOnSpotify(ctx, lfmTrack.Name, lfmTrack.Artist)
				if found != nil {
					mu.Lock()
					if !excludeIDs[found.ID] {
						candidates = append(candidates, *found)
					}
					mu.Unlock()
				}
			}
		}(tagName)
	}
	wg.Wait()

	return deduplicateByID(candidates)
}

// getSimilarBasedCandidates retrieves candidates using the similar-based strategy.
func (p *LastFmProvider) getSimilarBasedCandidates(ctx context.Context, seedSongs []song.Song, excludeIDs map[string]bool) []song.Song {
	var candidates []song.Song
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, seed := range seedSongs {
		if seed.Artist == "" {
			continue
		}

		wg.Add(1)
		go func(s song.Song) {
			defer wg.Done()
			similar, err := p.lastfm.GetSimilarTracks(ctx, s.Title, s.Artist, 10)
			if err != nil {
				return // Skip on error
			}

			for _, sim := range similar {
				found := p.searchOnSpotify(ctx, sim.Name, sim.Artist)
				if found != nil {
					mu.Lock()
					if !excludeIDs[found.ID] {
						candidates = append(candidates, *found)
					}
					mu.Unlock()
				}
			}
		}(seed)
	}
	wg.Wait()

	return deduplicateByID(candidates)
}

// scoreAndMerge scores and merges tag-based and similar-based candidates.
func (p *LastFmProvider) scoreAndMerge(tagCandidates, similarCandidates []song.Song) []ScoredSong {
	scoreMap := make(map[string]*ScoredSong)

	for _, s := range tagCandidates {
		scoreMap[s.ID] = &ScoredSong{
			Song:  s,
			Score: p.config.TagWeight,
		}
	}

	for _, s := range similarCandidates {
		if existing, ok := scoreMap[s.ID]; ok {
			// Found by both strategies
			existing.Score += p.config.SimilarWeight
		} else {
			scoreMap[s.ID] = &ScoredSong{
				Song:  s,
				Score: p.config.SimilarWeight,
			}
		}
	}

	result := make([]ScoredSong, 0, len(scoreMap))
	for _, scored := range scoreMap {
		result = append(result, *scored)
	}
	return result
}

// sortAndTakeTopTags sorts tags by count and returns top N tag names.
func sortAndTakeTopTags(tagCounts map[string]int, topN int) []string {
	type tagCount struct {
		name  string
		count int
	}

	tags := make([]tagCount, 0, len(tagCounts))
	for name, count := range tagCounts {
		tags = append(tags, tagCount{name: name, count: count})
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].count > tags[j].count
	})

	result := make([]string, 0, topN)
	for i := 0; i < topN && i < len(tags); i++ {
		result = append(result, tags[i].name)
	}
	return result
}

// searchOnSpotify searches for a song on Spotify with caching.
func (p *LastFmProvider) searchOnSpotify(ctx context.Context, trackName, artistName string) *song.Song {
	key := fmt.Sprintf("%s:%s", trackName, artistName)

	p.cacheMutex.RLock()
	if cached, ok := p.spotifySearchCache[key]; ok {
		p.cacheMutex.RUnlock()
		return cached
	}
	p.cacheMutex.RUnlock()

	query := fmt.Sprintf("track:%s artist:%s", trackName, artistName)
	results, err := p.spotify.Search(ctx, query, 1)
	if err != nil || len(results) == 0 {
		// Cache nil to avoid repeated failed searches
		p.cacheMutex.Lock()
		p.spotifySearchCache[key] = nil
		p.cacheMutex.Unlock()
		return nil
	}

	// Search returns a slim result; fetch the full song for duration and
	// explicit flags.
	full, err := p.spotify.GetSong(ctx, results[0].ID)
	if err != nil {
		p.cacheMutex.Lock()
		p.spotifySearchCache[key] = nil
		p.cacheMutex.Unlock()
		return nil
	}

	p.cacheMutex.Lock()
	p.spotifySearchCache[key] = full
	p.cacheMutex.Unlock()

	return full
}

// getChartBasedCandidates retrieves candidates from the global charts.
// Used as a fallback when no seed songs are available (e.g. a fresh pool).
func (p *LastFmProvider) getChartBasedCandidates(ctx context.Context, count int, excludeIDs map[string]bool) ([]song.Song, error) {
	chartTracks, err := p.lastfm.GetChartTopTracks(ctx, 50)
	if err != nil {
		return []song.Song{}, err
	}

	rng := newRand()
	// Shuffle so refills don't always pick the same chart toppers.
	rng.Shuffle(len(chartTracks), func(i, j int) {
		chartTracks[i], chartTracks[j] = chartTracks[j], chartTracks[i]
	})

	var candidates []song.Song
	for _, chartTrack := range chartTracks {
		found := p.searchOnSpotify(ctx, chartTrack.Name, chartTrack.Artist)
		if found != nil && !excludeIDs[found.ID] {
			candidates = append(candidates, *found)
		}

		if len(candidates) >= count*2 {
			break
		}
	}

	return deduplicateByID(candidates), nil
}

// deduplicateByID removes duplicate songs by ID.
func deduplicateByID(songs []song.Song) []song.Song {
	seen := make(map[string]bool)
	result := make([]song.Song, 0, len(songs))

	for _, s := range songs {
		if !seen[s.ID] {
			seen[s.ID] = true
			result = append(result, s)
		}
	}
	return result
}

func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
