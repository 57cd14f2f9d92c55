package admit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/song"
)

func poolWith(t *testing.T, songs ...song.Song) queue.State {
	t.Helper()
	qs, err := queue.New(shuffle.NoRepeat).AddingSongs(songs)
	require.NoError(t, err)
	return qs
}

func TestDuplicateSongRule(t *testing.T) {
	pooled := song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead"}
	qs := poolWith(t, pooled)
	rule := NewDuplicateSongRule()

	tests := []struct {
		name      string
		candidate song.Song
		accepted  bool
	}{
		{
			name:      "exact id match rejected",
			candidate: song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead"},
			accepted:  false,
		},
		{
			name:      "remaster rejected",
			candidate: song.Song{ID: "s2", Title: "Creep - 2009 Remaster", Artist: "Radiohead"},
			accepted:  false,
		},
		{
			name:      "parenthesised remaster rejected",
			candidate: song.Song{ID: "s3", Title: "Creep (Remastered 2021)", Artist: "Radiohead"},
			accepted:  false,
		},
		{
			name:      "cover by another artist allowed",
			candidate: song.Song{ID: "s4", Title: "Creep", Artist: "Scala & Kolacny Brothers"},
			accepted:  true,
		},
		{
			name:      "different song allowed",
			candidate: song.Song{ID: "s5", Title: "Karma Police", Artist: "Radiohead"},
			accepted:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := rule.Check(context.Background(), tt.candidate, qs)
			assert.Equal(t, tt.accepted, result.Accepted)
			if !tt.accepted {
				assert.Equal(t, "duplicate_song", result.Code)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Creep - 2009 Remaster", "creep"},
		{"Creep (Remastered 2021)", "creep"},
		{"Creep [Remastered]", "creep"},
		{"Creep (Radio Edit)", "creep"},
		{"Creep - Live", "creep"},
		{"Creep", "creep"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeTitle(tt.input))
		})
	}
}

func TestDurationLimitRule(t *testing.T) {
	rule := NewDurationLimitRule()
	require.NoError(t, rule.ValidateConfig(map[string]any{
		"min_minutes": 1.0,
		"max_minutes": 8.0,
	}))

	qs := poolWith(t)

	tests := []struct {
		name     string
		duration time.Duration
		accepted bool
	}{
		{"too short", 30 * time.Second, false},
		{"within limits", 4 * time.Minute, true},
		{"at upper limit", 8 * time.Minute, true},
		{"too long", 12 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := song.Song{ID: "c", Title: "t", Artist: "a", Duration: tt.duration}
			result := rule.Check(context.Background(), candidate, qs)
			assert.Equal(t, tt.accepted, result.Accepted)
		})
	}
}

func TestDurationLimitRuleConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{
			name:     "valid",
			settings: map[string]any{"min_minutes": 1.0, "max_minutes": 10.0},
			wantErr:  false,
		},
		{
			name:     "min greater than max",
			settings: map[string]any{"min_minutes": 5.0, "max_minutes": 2.0},
			wantErr:  true,
		},
		{
			name:     "zero max means unlimited",
			settings: map[string]any{"min_minutes": 1.0, "max_minutes": 0.0},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDurationLimitRule().ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationLimitRuleUnconfiguredAcceptsAll(t *testing.T) {
	rule := NewDurationLimitRule()
	result := rule.Check(context.Background(), song.Song{ID: "c", Duration: time.Second}, poolWith(t))
	assert.True(t, result.Accepted)
}

func TestExplicitContentRule(t *testing.T) {
	qs := poolWith(t)
	explicit := song.Song{ID: "e", Title: "t", Artist: "a", Explicit: true}
	clean := song.Song{ID: "c", Title: "t", Artist: "a"}

	rule := NewExplicitContentRule()
	require.NoError(t, rule.ValidateConfig(map[string]any{"allow": false}))

	assert.False(t, rule.Check(context.Background(), explicit, qs).Accepted)
	assert.True(t, rule.Check(context.Background(), clean, qs).Accepted)

	allowing := NewExplicitContentRule()
	require.NoError(t, allowing.ValidateConfig(map[string]any{"allow": true}))
	assert.True(t, allowing.Check(context.Background(), explicit, qs).Accepted)
}

func TestChainStopsAtFirstRejection(t *testing.T) {
	pooled := song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead"}
	qs := poolWith(t, pooled)

	chain := NewChain()
	chain.Add(NewDuplicateSongRule())
	chain.Add(NewExplicitContentRule())

	dup := song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead", Explicit: true}
	result := chain.Execute(context.Background(), dup, qs, SourceUser)
	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_song", result.Code)
}

func TestChainSkipsRulesBySource(t *testing.T) {
	pooled := song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead"}
	qs := poolWith(t, pooled)

	chain := NewChain()
	chain.Add(NewDuplicateSongRule())

	// Duplicate check applies to interactive additions only.
	dup := song.Song{ID: "s1", Title: "Creep", Artist: "Radiohead"}
	assert.True(t, chain.Execute(context.Background(), dup, qs, SourceSeed).Accepted)
	assert.False(t, chain.Execute(context.Background(), dup, qs, SourceUser).Accepted)
}

func TestNewChainFromConfig(t *testing.T) {
	chain, err := NewChainFromConfig([]RuleConfig{
		{Name: "duplicate_song_rule"},
		{Name: "duration_limit_rule", Settings: map[string]any{"min_minutes": 1.0, "max_minutes": 10.0}},
		{Name: "explicit_content_rule", Settings: map[string]any{"allow": false}},
	})
	require.NoError(t, err)
	assert.Len(t, chain.Rules(), 3)
}

func TestNewChainFromConfigUnknownRule(t *testing.T) {
	_, err := NewChainFromConfig([]RuleConfig{{Name: "no_such_rule"}})
	assert.Error(t, err)
}

func TestNewChainFromConfigInvalidSettings(t *testing.T) {
	_, err := NewChainFromConfig([]RuleConfig{
		{Name: "duration_limit_rule", Settings: map[string]any{"min_minutes": 9.0, "max_minutes": 1.0}},
	})
	assert.Error(t, err)
}
