package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Spotify: SpotifyConfig{
					ClientID:     "test-client-id",
					ClientSecret: "test-client-secret",
					RefreshToken: "test-refresh-token",
					Market:       "JP",
				},
				Seed: SeedConfig{
					CandidateCount: 10,
					Providers: []ProviderConfig{
						{
							Type:        "lastfm",
							DisplayName: "Last.fm",
							Settings:    map[string]any{"api_key": "test-api-key"},
						},
					},
				},
			},
			wantErr: false,
		},
		{
			name: "missing spotify client id",
			config: Config{
				Spotify: SpotifyConfig{
					ClientSecret: "test-client-secret",
					RefreshToken: "test-refresh-token",
				},
				Seed: SeedConfig{CandidateCount: 10},
			},
			wantErr: true,
			errMsg:  "ClientID",
		},
		{
			name: "missing spotify client secret",
			config: Config{
				Spotify: SpotifyConfig{
					ClientID:     "test-client-id",
					RefreshToken: "test-refresh-token",
				},
				Seed: SeedConfig{CandidateCount: 10},
			},
			wantErr: true,
			errMsg:  "ClientSecret",
		},
		{
			name: "invalid market length",
			config: Config{
				Spotify: SpotifyConfig{
					ClientID:     "test-client-id",
					ClientSecret: "test-client-secret",
					RefreshToken: "test-refresh-token",
					Market:       "JAPAN",
				},
				Seed: SeedConfig{CandidateCount: 10},
			},
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name: "provider missing type",
			config: Config{
				Spotify: SpotifyConfig{
					ClientID:     "test-client-id",
					ClientSecret: "test-client-secret",
					RefreshToken: "test-refresh-token",
				},
				Seed: SeedConfig{
					CandidateCount: 10,
					Providers: []ProviderConfig{
						{DisplayName: "No Type", Settings: map[string]any{"k": "v"}},
					},
				},
			},
			wantErr: true,
			errMsg:  "Type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
spotify:
  client_id: file-client-id
  client_secret: file-client-secret
  refresh_token: file-refresh-token
seed:
  providers:
    - type: playlist
      display_name: House Playlist
      settings:
        playlist_url: https://open.spotify.com/playlist/abc
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "no_repeat", cfg.Player.Algorithm)
	assert.Equal(t, time.Second, cfg.Player.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Player.SuppressionWindow())
	assert.Equal(t, 3*time.Second, cfg.Player.AutosaveDebounce())
	assert.Equal(t, 30*time.Second, cfg.Player.DriftProbeInterval())
	assert.Equal(t, 10, cfg.Seed.CandidateCount)
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.SnapshotMaxAge())
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
spotify:
  client_id: file-client-id
  client_secret: file-client-secret
  refresh_token: file-refresh-token
seed:
  providers:
    - type: lastfm
      display_name: Last.fm
      settings:
        api_key: file-key
`)

	t.Setenv("SPOTIFY_CLIENT_ID", "env-client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-client-secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-refresh-token")
	t.Setenv("LASTFM_API_KEY", "env-api-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-client-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-client-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "env-refresh-token", cfg.Spotify.RefreshToken)
	assert.Equal(t, "env-api-key", cfg.Seed.Providers[0].Settings["api_key"])
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "spotify: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRuleHelpers(t *testing.T) {
	cfg := Config{
		Admission: map[string]RuleConfig{
			"duration_limit_rule": {
				Enabled:  true,
				Settings: map[string]any{"max_minutes": 8.0},
			},
			"explicit_content_rule": {Enabled: false},
		},
	}

	assert.True(t, cfg.IsRuleEnabled("duration_limit_rule"))
	assert.False(t, cfg.IsRuleEnabled("explicit_content_rule"))
	assert.False(t, cfg.IsRuleEnabled("unknown_rule"))
	assert.Equal(t, 8.0, cfg.RuleSettings("duration_limit_rule")["max_minutes"])
	assert.Nil(t, cfg.RuleSettings("unknown_rule"))
}
