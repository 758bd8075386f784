package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/waabox/ghlconnect/internal/backend"
	"github.com/waabox/ghlconnect/internal/callback"
	"github.com/waabox/ghlconnect/internal/config"
	"github.com/waabox/ghlconnect/internal/domain"
	"github.com/waabox/ghlconnect/internal/logging"
	"github.com/waabox/ghlconnect/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

type globalFlags struct {
	configPath string
	apiURL     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	var withCallback bool

	cmd := &cobra.Command{
		Use:           "ghlconnect",
		Short:         "Drive the CRM OAuth integration from a terminal",
		Long:          "ghlconnect exercises the brand/location connection flow: an interactive tester for the backend endpoints and an OAuth callback server that redeems authorization codes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTester(cmd.Context(), flags, withCallback)
		},
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultConfigPath(), "config file path")
	cmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "backend base URL (overrides config and environment)")
	cmd.Flags().BoolVar(&withCallback, "with-callback", false, "also run the OAuth callback server and show its results")

	cmd.AddCommand(
		testerCmd(flags),
		serveCmd(flags),
		configCmd(flags),
		versionCmd(),
	)
	return cmd
}

func testerCmd(flags *globalFlags) *cobra.Command {
	var withCallback bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive tester",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTester(cmd.Context(), flags, withCallback)
		},
	}
	cmd.Flags().BoolVar(&withCallback, "with-callback", false, "also run the OAuth callback server and show its results")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the OAuth callback server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := logging.InitStderr(cfg.Log.Level); err != nil {
				return oops.In("main").Wrapf(err, "Failed to initialise the logger")
			}
			ctx := cmd.Context()
			slogctx.Info(ctx, "Starting the callback server", "apiUrl", cfg.Backend.APIURL, "address", cfg.Callback.ListenAddr)

			server := newCallbackServer(cfg, nil)
			if err := server.ListenAndServe(ctx, cfg.Callback.ListenAddr); err != nil {
				return oops.In("main").Wrapf(err, "Failed to run the callback server")
			}
			return nil
		},
	}
}

func configCmd(flags *globalFlags) *cobra.Command {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", flags.configPath)
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := config.Save(flags.configPath, cfg); err != nil {
				return oops.In("main").Wrapf(err, "Failed to write the config file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", flags.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(initCmd)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ghlconnect", version)
		},
	}
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.LoadFrom(flags.configPath)
	if err != nil {
		return config.Config{}, oops.In("main").Wrapf(err, "Failed to load the configuration")
	}
	if flags.apiURL != "" {
		cfg.Backend.APIURL = flags.apiURL
	}
	return cfg, nil
}

func newCallbackServer(cfg config.Config, onOutcome func(callback.Outcome)) *callback.Server {
	client := backend.NewClient(cfg.Backend.APIURL, cfg.Backend.RequestTimeout.Duration)
	return callback.NewServer(client, callback.Options{
		Path:           cfg.Callback.Path,
		PublicOrigin:   cfg.Callback.PublicOrigin,
		DisplayOnly:    !cfg.Callback.ExchangeEnabled(),
		RequestTimeout: cfg.Backend.RequestTimeout.Duration,
		HandlerTTL:     cfg.Callback.HandlerTTL.Duration,
		OnOutcome:      onOutcome,
	})
}

// runTester runs the terminal UI. The UI owns stdout, so logs go to the configured file.
func runTester(ctx context.Context, flags *globalFlags, withCallback bool) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	closer, err := logging.InitFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to initialise the logger")
	}
	defer closer.Close()

	client := backend.NewClient(cfg.Backend.APIURL, cfg.Backend.RequestTimeout.Duration)
	dateRange := domain.DateRange{Start: cfg.Calendar.StartDate, End: cfg.Calendar.EndDate}
	model := tui.NewAppModel(client, dateRange, cfg.Backend.APIURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var outcomes chan callback.Outcome
	if withCallback {
		outcomes = make(chan callback.Outcome, 8)
		server := newCallbackServer(cfg, func(o callback.Outcome) {
			select {
			case outcomes <- o:
			default:
				slogctx.Warn(ctx, "dropping callback outcome: tester is not keeping up")
			}
		})
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Callback.ListenAddr); err != nil {
				slogctx.Error(ctx, "callback server stopped", "error", err)
			}
		}()
	}

	err = tui.Run(ctx, model, outcomes)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return oops.In("main").Wrapf(err, "Failed to run the tester")
	}
	return nil
}
