package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shufflebox/internal/domain/song"
	"github.com/osa030/shufflebox/internal/infra/lastfm"
)

type fakeSpotify struct {
	playlistSongs []song.Song
	playlistErr   error
	searchResults map[string]song.Song
}

func (f *fakeSpotify) GetPlaylistSongsRandom(_ context.Context, _ string, count int) ([]song.Song, error) {
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	if count > len(f.playlistSongs) {
		count = len(f.playlistSongs)
	}
	return f.playlistSongs[:count], nil
}

func (f *fakeSpotify) Search(_ context.Context, query string, _ int) ([]song.Song, error) {
	if s, ok := f.searchResults[query]; ok {
		return []song.Song{s}, nil
	}
	return nil, nil
}

func (f *fakeSpotify) GetSong(_ context.Context, songID string) (*song.Song, error) {
	for _, s := range f.searchResults {
		if s.ID == songID {
			return &s, nil
		}
	}
	for _, s := range f.playlistSongs {
		if s.ID == songID {
			return &s, nil
		}
	}
	return nil, assert.AnError
}

func songsWithIDs(ids ...string) []song.Song {
	songs := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		songs = append(songs, song.Song{ID: id, Title: "title " + id, Artist: "artist"})
	}
	return songs
}

func TestPlaylistProviderReturnsSongs(t *testing.T) {
	spotify := &fakeSpotify{playlistSongs: songsWithIDs("a", "b", "c", "d")}
	p, err := NewPlaylistProvider(spotify, 4, map[string]any{
		"playlist_url": "https://open.spotify.com/playlist/abc",
	})
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 2, nil, map[string]bool{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPlaylistProviderExcludesPooledSongs(t *testing.T) {
	spotify := &fakeSpotify{playlistSongs: songsWithIDs("a", "b", "c")}
	p, err := NewPlaylistProvider(spotify, 3, map[string]any{
		"playlist_url": "https://open.spotify.com/playlist/abc",
	})
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 3, nil, map[string]bool{"a": true})
	require.NoError(t, err)
	for _, s := range got {
		assert.NotEqual(t, "a", s.ID)
	}
}

func TestPlaylistProviderRequiresURL(t *testing.T) {
	_, err := NewPlaylistProvider(&fakeSpotify{}, 4, map[string]any{})
	assert.Error(t, err)
}

func TestPlaylistProviderZeroCount(t *testing.T) {
	p, err := NewPlaylistProvider(&fakeSpotify{}, 4, map[string]any{
		"playlist_url": "https://open.spotify.com/playlist/abc",
	})
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 0, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type stubProvider struct {
	name  string
	songs []song.Song
	err   error
}

func (s *stubProvider) GetCandidates(_ context.Context, _ int, _ []song.Song, excludeIDs map[string]bool) ([]song.Song, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []song.Song
	for _, c := range s.songs {
		if !excludeIDs[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestProviderChainMergesAndDeduplicates(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &stubProvider{name: "first", songs: songsWithIDs("a", "b")}, DisplayName: "First"},
		{Provider: &stubProvider{name: "second", songs: songsWithIDs("b", "c")}, DisplayName: "Second"},
	})

	got, err := chain.GetCandidates(context.Background(), 4, nil, map[string]bool{})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.Song.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "Second", got[2].DisplayName)
}

func TestProviderChainSkipsFailingProvider(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &stubProvider{name: "broken", err: assert.AnError}, DisplayName: "Broken"},
		{Provider: &stubProvider{name: "working", songs: songsWithIDs("x")}, DisplayName: "Working"},
	})

	got, err := chain.GetCandidates(context.Background(), 1, nil, map[string]bool{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Song.ID)
}

func TestProviderChainAllFail(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &stubProvider{name: "broken", err: assert.AnError}, DisplayName: "Broken"},
	})

	_, err := chain.GetCandidates(context.Background(), 1, nil, map[string]bool{})
	assert.Error(t, err)
}

func TestNewProviderChainFromConfig(t *testing.T) {
	spotify := &fakeSpotify{}

	chain, err := NewProviderChainFromConfig([]ProviderConfig{
		{
			Type:        "playlist",
			DisplayName: "House Playlist",
			Settings:    map[string]any{"playlist_url": "https://open.spotify.com/playlist/abc"},
		},
	}, 10, spotify)
	require.NoError(t, err)
	assert.Len(t, chain.providers, 1)
}

func TestNewProviderChainFromConfigUnknownType(t *testing.T) {
	_, err := NewProviderChainFromConfig([]ProviderConfig{
		{Type: "telepathy"},
	}, 10, &fakeSpotify{})
	assert.Error(t, err)
}

func TestNewProviderChainFromConfigEmpty(t *testing.T) {
	_, err := NewProviderChainFromConfig(nil, 10, &fakeSpotify{})
	assert.Error(t, err)
}

type fakeLastFm struct {
	similar map[string][]lastfm.SimilarTrack
	tags    map[string][]lastfm.Tag
	top     map[string][]lastfm.TopTrack
	chart   []lastfm.TopTrack
}

func (f *fakeLastFm) GetSimilarTracks(_ context.Context, trackName, _ string, _ int) ([]lastfm.SimilarTrack, error) {
	return f.similar[trackName], nil
}

func (f *fakeLastFm) GetTopTags(_ context.Context, trackName, _ string, _ int) ([]lastfm.Tag, error) {
	return f.tags[trackName], nil
}

func (f *fakeLastFm) GetTopTracks(_ context.Context, tagName string, _ int) ([]lastfm.TopTrack, error) {
	return f.top[tagName], nil
}

func (f *fakeLastFm) GetChartTopTracks(_ context.Context, _ int) ([]lastfm.TopTrack, error) {
	return f.chart, nil
}

func newLastFmProviderForTest(spotify SpotifyClient, client LastFmClient) *LastFmProvider {
	return &LastFmProvider{
		spotify:            spotify,
		lastfm:             client,
		spotifySearchCache: make(map[string]*song.Song),
		candidateCount:     10,
		config: &LastFmProviderConfig{
			SeedSongCount: 3,
			TagCount:      5,
			TagWeight:     0.4,
			SimilarWeight: 0.6,
		},
	}
}

func TestLastFmProviderUsesChartWithoutSeeds(t *testing.T) {
	spotify := &fakeSpotify{
		searchResults: map[string]song.Song{
			"track:Chart Hit artist:Chart Artist": {ID: "chart1", Title: "Chart Hit", Artist: "Chart Artist"},
		},
	}
	client := &fakeLastFm{
		chart: []lastfm.TopTrack{{Name: "Chart Hit", Artist: "Chart Artist"}},
	}

	p := newLastFmProviderForTest(spotify, client)
	got, err := p.GetCandidates(context.Background(), 1, nil, map[string]bool{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chart1", got[0].ID)
}

func TestLastFmProviderHybridScoring(t *testing.T) {
	seedSong := song.Song{ID: "seed", Title: "Seed Song", Artist: "Seed Artist"}
	spotify := &fakeSpotify{
		searchResults: map[string]song.Song{
			"track:Both Ways artist:Common": {ID: "both", Title: "Both Ways", Artist: "Common"},
			"track:Tag Only artist:Tagged":  {ID: "tagonly", Title: "Tag Only", Artist: "Tagged"},
		},
	}
	client := &fakeLastFm{
		tags: map[string][]lastfm.Tag{
			"Seed Song": {{Name: "rock", Count: 100}},
		},
		top: map[string][]lastfm.TopTrack{
			"rock": {
				{Name: "Both Ways", Artist: "Common"},
				{Name: "Tag Only", Artist: "Tagged"},
			},
		},
		similar: map[string][]lastfm.SimilarTrack{
			"Seed Song": {{Name: "Both Ways", Artist: "Common"}},
		},
	}

	p := newLastFmProviderForTest(spotify, client)
	got, err := p.GetCandidates(context.Background(), 2, []song.Song{seedSong}, map[string]bool{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	scored := p.scoreAndMerge(
		[]song.Song{{ID: "both"}, {ID: "tagonly"}},
		[]song.Song{{ID: "both"}},
	)
	scores := make(map[string]float64, len(scored))
	for _, s := range scored {
		scores[s.Song.ID] = s.Score
	}
	// Found by both strategies, so it outranks the tag-only candidate.
	assert.InDelta(t, 1.0, scores["both"], 0.001)
	assert.InDelta(t, 0.4, scores["tagonly"], 0.001)
}

func TestLastFmProviderConfigValidation(t *testing.T) {
	spotify := &fakeSpotify{}

	_, err := NewLastFmProvider(spotify, 10, map[string]any{
		"api_key":        "key",
		"tag_weight":     0.7,
		"similar_weight": 0.6,
	})
	assert.Error(t, err)

	_, err = NewLastFmProvider(spotify, 10, map[string]any{})
	assert.Error(t, err)
}
