// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client. Tag and tag-track lookups are cached for
// the lifetime of the client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	cacheMu        sync.RWMutex
	trackTagCache  map[string][]Tag
	tagTracksCache map[string][]TopTrack
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// SimilarTrack represents a similar track from Last.fm.
type SimilarTrack struct {
	Name   string
	Artist string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int
}

// TopTrack represents a top track for a tag or chart.
type TopTrack struct {
	Name   string
	Artist string
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type namedArtist struct {
	Name string `json:"name"`
}

type similarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string      `json:"name"`
			Artist namedArtist `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string      `json:"name"`
			Artist namedArtist `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		trackTagCache:  make(map[string][]Tag),
		tagTracksCache: make(map[string][]TopTrack),
	}, nil
}

// get performs a Last.fm API call and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "parsing %s response", method)
	}
	return nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// GetSimilarTracks retrieves similar tracks based on track name and artist.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 20)

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var response similarResponse
	if err := c.get(ctx, "track.getSimilar", params, &response); err != nil {
		return nil, err
	}

	similar := make([]SimilarTrack, 0, len(response.SimilarTracks.Track))
	for _, t := range response.SimilarTracks.Track {
		similar = append(similar, SimilarTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return similar, nil
}

// GetTopTags retrieves top tags for a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	cacheKey := fmt.Sprintf("tracktag:%s:%s", artistName, trackName)
	c.cacheMu.RLock()
	if tags, ok := c.trackTagCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached tags for track: %s - %s", artistName, trackName)
		return tags, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response topTagsResponse
	if err := c.get(ctx, "track.getTopTags", params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for i, t := range response.TopTags.Tag {
		if i >= limit {
			break
		}
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.trackTagCache[cacheKey] = tags
	c.cacheMu.Unlock()

	return tags, nil
}

// GetTopTracks retrieves top tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TopTrack, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit, 20)

	cacheKey := "tagtracks:" + tagName
	c.cacheMu.RLock()
	if tracks, ok := c.tagTracksCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached top tracks for tag: %s", tagName)
		return tracks, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("tag", tagName)
	params.Set("limit", strconv.Itoa(limit))

	var response topTracksResponse
	if err := c.get(ctx, "tag.getTopTracks", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}

	c.cacheMu.Lock()
	c.tagTracksCache[cacheKey] = tracks
	c.cacheMu.Unlock()

	return tracks, nil
}

// GetChartTopTracks retrieves global top tracks from Last.fm charts.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	limit = clampLimit(limit, 20)

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	// Same response shape as tag.getTopTracks.
	var response topTracksResponse
	if err := c.get(ctx, "chart.getTopTracks", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks, nil
}
