// Package main provides the playback engine entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/admit"
	"github.com/osa030/shufflebox/internal/app/player"
	"github.com/osa030/shufflebox/internal/app/seed"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/infra/config"
	"github.com/osa030/shufflebox/internal/infra/logger"
	"github.com/osa030/shufflebox/internal/infra/spotify"
	"github.com/osa030/shufflebox/internal/infra/store"
)

var (
	app        = kingpin.New("shufflebox", "shufflebox playback engine")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	noRestore  = app.Flag("no-restore", "Skip session restoration and start fresh").Bool()

	// list-rules command
	listRulesCmd = app.Command("list-rules", "List available admission rules and exit")
)

func init() {
	app.Command("start", "Start the playback engine (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listRulesCmd.FullCommand() {
		printRules()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main engine logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	algorithm, err := shuffle.Parse(cfg.Player.Algorithm)
	if err != nil {
		return fmt.Errorf("invalid shuffle algorithm: %w", err)
	}

	// Create Spotify client
	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	if err := validateSeedPlaylists(ctx, cfg, spotifyClient); err != nil {
		return fmt.Errorf("playlist validation failed: %w", err)
	}

	// Admission chain from enabled rules
	admission, err := buildAdmissionChain(cfg)
	if err != nil {
		return fmt.Errorf("invalid admission config: %w", err)
	}

	// Seed provider chain (optional)
	var seeds *seed.ProviderChain
	if len(cfg.Seed.Providers) > 0 {
		providerConfigs := make([]seed.ProviderConfig, 0, len(cfg.Seed.Providers))
		for _, pc := range cfg.Seed.Providers {
			providerConfigs = append(providerConfigs, seed.ProviderConfig{
				Type:        pc.Type,
				DisplayName: pc.DisplayName,
				Settings:    pc.Settings,
			})
		}
		seeds, err = seed.NewProviderChainFromConfig(providerConfigs, cfg.Seed.CandidateCount, spotifyClient)
		if err != nil {
			return fmt.Errorf("failed to create seed providers: %w", err)
		}
	}

	// Snapshot store
	snapshots, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer snapshots.Close()

	transport := spotify.NewTransport(spotifyClient, cfg.Player.PollInterval())

	p, err := player.New(player.Options{
		Transport:          transport,
		Admission:          admission,
		Seeds:              seeds,
		Store:              snapshots,
		Algorithm:          algorithm,
		SuppressionWindow:  cfg.Player.SuppressionWindow(),
		AutosaveDebounce:   cfg.Player.AutosaveDebounce(),
		DriftProbeInterval: cfg.Player.DriftProbeInterval(),
		SnapshotMaxAge:     cfg.Store.SnapshotMaxAge(),
	})
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	if !*noRestore {
		if err := p.RestoreSession(ctx); err != nil {
			zlog.Warn().Err(err).Msg("Session restoration failed, starting fresh")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go transport.Run(runCtx)

	playerDone := make(chan error, 1)
	go func() {
		playerDone <- p.Run(runCtx)
	}()

	zlog.Info().Msg("Playback engine started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		cancel()
		<-playerDone
	case err := <-playerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("player error: %w", err)
		}
	}

	if err := p.SaveNow(); err != nil {
		zlog.Warn().Err(err).Msg("Final snapshot save failed")
	}

	zlog.Info().Msg("Playback engine stopped")
	return nil
}

// buildAdmissionChain creates the admission chain from the enabled rules.
func buildAdmissionChain(cfg *config.Config) (*admit.Chain, error) {
	var ruleConfigs []admit.RuleConfig
	for name, rc := range cfg.Admission {
		if !rc.Enabled {
			continue
		}
		ruleConfigs = append(ruleConfigs, admit.RuleConfig{
			Name:     name,
			Settings: rc.Settings,
		})
	}
	return admit.NewChainFromConfig(ruleConfigs)
}

// validateSeedPlaylists checks that configured playlist providers point at
// playlists that actually exist before the engine starts.
func validateSeedPlaylists(ctx context.Context, cfg *config.Config, client *spotify.Client) error {
	for _, pc := range cfg.Seed.Providers {
		if pc.Type != "playlist" {
			continue
		}
		url, ok := pc.Settings["playlist_url"].(string)
		if !ok || url == "" {
			return fmt.Errorf("playlist provider %q has no playlist_url", pc.DisplayName)
		}
		if err := client.CheckPlaylistExists(ctx, url); err != nil {
			return fmt.Errorf("playlist %q: %w", url, err)
		}
	}
	return nil
}

// printRules prints available admission rules.
func printRules() {
	fmt.Println("Available Admission Rules:")
	for _, factory := range admit.GetRegistered() {
		r := factory()
		codes := strings.Join(r.ReturnCodes(), ", ")
		fmt.Printf("  %-25s - %s [codes: %s]\n", r.Name(), r.Description(), codes)
	}
}
