package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/shiftcheck/internal/config"
	"github.com/Tiliavir/shiftcheck/internal/jira"
	"github.com/Tiliavir/shiftcheck/internal/logging"
	"github.com/Tiliavir/shiftcheck/internal/msgraph"
	"github.com/Tiliavir/shiftcheck/internal/service"
	"github.com/Tiliavir/shiftcheck/internal/storage"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "shiftcheck",
	Short: "shiftcheck – reconcile Teams shifts against Jira worklogs",
	Long: `shiftcheck pulls a week's published shifts from Microsoft Teams and the
worklogs of the same week from Jira, and reports which shifts were actually
worked. Snapshots are stored in ~/.shiftcheck/.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for storage failures and 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, service.ErrStorage) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.shiftcheck/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err = logging.New(level, cfg.Log.Development)
	if err != nil {
		return err
	}
	return nil
}

// providers selects which upstream clients openService wires in.
type providers struct {
	schedules bool
	worklogs  bool
}

// openService opens the configured store and wires the requested providers.
// Providers that are not configured are left out; syncing against them
// reports service.ErrProviderNotConfigured. The returned close func releases
// the store.
func openService(ctx context.Context, want providers) (*service.Service, func(), error) {
	dataDir, err := cfg.ResolveDataDir(storage.BaseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", service.ErrStorage, err)
	}
	store, err := storage.Open(cfg.Storage, dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", service.ErrStorage, err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}

	opts := service.Options{
		Store:    store,
		Location: cfg.Location(),
		Logger:   logger,
	}

	if want.schedules && cfg.GraphEnabled() {
		hc, err := msgraph.HTTPClient(ctx, cfg.Graph, dataDir, logger)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("authentication failed: %w", err)
		}
		opts.Schedules = msgraph.NewClient(hc, msgraph.Options{
			TeamID: cfg.Graph.TeamID,
			ActsAs: cfg.Graph.ActsAs,
		}, logger)
	}
	if want.worklogs && cfg.JiraEnabled() {
		opts.Worklogs = jira.NewClient(jira.Options{
			BaseURL:        cfg.Jira.BaseURL,
			Email:          cfg.Jira.Email,
			APIToken:       cfg.Jira.APIToken,
			MaxConcurrency: cfg.Jira.MaxConcurrency,
		}, logger)
	}

	return service.New(opts), closeStore, nil
}
