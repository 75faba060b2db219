package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/costhound/costhound/config"
	"github.com/costhound/costhound/engine"
	"github.com/costhound/costhound/journal"
	"github.com/costhound/costhound/orchestrator"
	"github.com/costhound/costhound/provider"
	_ "github.com/costhound/costhound/provider/aws" // register the aws adapter factory
	"github.com/costhound/costhound/queue"
	"github.com/costhound/costhound/storage"
)

var (
	version = "0.1.0"

	cfgPath string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "costhound",
		Short: "Cloud Cost Waste Scanner",
		Long: `Costhound - Cloud Cost Waste Scanner

Costhound scans cloud accounts for resources that cost money without
doing work: unattached volumes, idle instances, empty load balancers,
stale snapshots, and more. Each finding carries an estimated monthly
cost so you can clean up the expensive waste first.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Costhound {{.Version}} - Cloud Cost Waste Scanner
`)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app bundles the wired engine with the handles it needs closed
type app struct {
	cfg   *config.Config
	store *storage.Store
	jnl   *journal.Journal
	eng   *engine.Engine
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && !debug {
		zerolog.SetGlobalLevel(level)
	}

	if err := os.MkdirAll(cfg.Storage.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	store, err := storage.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	jnl, err := journal.Open(cfg.Storage.JournalDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	eng := engine.New(store, store, configResolver{cfg: cfg}, jnl, engine.Config{
		Provider:     cfg.Provider,
		ScanDeadline: cfg.Engine.ScanDeadline,
		PricingTTL:   cfg.Pricing.TTL,
		Orchestrator: orchestrator.Config{
			MaxRegions:        cfg.Engine.MaxRegions,
			RegionConcurrency: cfg.Engine.RegionConcurrency,
		},
		Queue: queue.Config{
			Workers: cfg.Engine.QueueWorkers,
			Buffer:  cfg.Engine.QueueBuffer,
		},
	})

	return &app{cfg: cfg, store: store, jnl: jnl, eng: eng}, nil
}

func (a *app) Close() {
	_ = a.jnl.Close()
	_ = a.store.Close()
}

// configResolver resolves credentials from the config file. Every
// account shares the configured profile; a secrets-backed resolver
// would slot in here without touching the engine.
type configResolver struct {
	cfg *config.Config
}

func (r configResolver) Resolve(_ context.Context, _ string) (provider.Credentials, error) {
	return provider.Credentials{
		Provider: r.cfg.Provider,
		Profile:  r.cfg.AWS.Profile,
		Regions:  r.cfg.AWS.Regions,
	}, nil
}
