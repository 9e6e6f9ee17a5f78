package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phillarmonic/credstore/internal/config"
	"github.com/phillarmonic/credstore/internal/logging"
	"github.com/phillarmonic/credstore/internal/metrics"
	"github.com/phillarmonic/credstore/internal/secrets"
)

// Domain: CLI Application Structure
// This file contains the root command, global flags and per-run setup

const skipSetup = "credstore/skip-setup"

// App represents the CLI application
type App struct {
	version string
	commit  string
	date    string

	rootCmd *cobra.Command

	// Global flags
	configFile      string
	backend         string
	logLevel        string
	metricsTextfile string

	// Resolved per run
	cfg     *config.Config
	metrics *metrics.Metrics
	builder secrets.Builder

	// builderOverride replaces backend selection (tests)
	builderOverride secrets.Builder
}

// NewApp creates a new CLI application
func NewApp(version, commit, date string) *App {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	app.rootCmd = &cobra.Command{
		Use:   "credstore",
		Short: "Store and retrieve secrets in the platform credential store",
		Long: `credstore reads and writes secrets in the operating system's credential store:
the macOS Keychain, the Windows Credential Manager, or the Secret Service
(falling back to the kernel keyring) on Linux.

Examples:
  credstore set myapp alice              # Prompt for a password and store it
  credstore get myapp alice              # Print the stored password
  credstore find myapp --json            # List accounts stored for a service
  credstore delete myapp alice           # Remove the stored secret
  credstore probe                        # Show which backend is in use`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.flushMetrics(cmd)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true, // Disable default 'completion' command
		},
	}

	app.setupFlags()
	app.setupCommands()

	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// setupFlags sets up the global flags
func (a *App) setupFlags() {
	flags := a.rootCmd.PersistentFlags()

	flags.StringVar(&a.configFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/credstore/credstore.yaml)")
	flags.StringVar(&a.backend, "backend", "", "Backend: auto, keychain, wincred, secret-service, keyutils, portable, mock")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.metricsTextfile, "metrics-textfile", "", "Write operation metrics to this file in textfile collector format")
}

// setupCommands sets up subcommands
func (a *App) setupCommands() {
	a.rootCmd.AddCommand(a.createSetCommand())
	a.rootCmd.AddCommand(a.createGetCommand())
	a.rootCmd.AddCommand(a.createDeleteCommand())
	a.rootCmd.AddCommand(a.createFindCommand())
	a.rootCmd.AddCommand(a.createProbeCommand())
	a.rootCmd.AddCommand(a.createVersionCommand())
	a.rootCmd.AddCommand(a.createCompletionCommand())
}

// setup loads configuration, applies flag overrides and selects the backend
func (a *App) setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsTextfile != "" {
		cfg.MetricsTextfile = a.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	secrets.SetLogger(logger)

	b := a.builderOverride
	if b == nil {
		if b, err = secrets.BuilderFor(cfg.BackendKind(), cfg.BackendConfig()); err != nil {
			return err
		}
	}
	a.metrics = metrics.New()
	a.builder = metrics.Instrument(b, a.metrics)
	return nil
}

func (a *App) flushMetrics(cmd *cobra.Command) error {
	if a.cfg == nil || a.metrics == nil || a.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := a.metrics.WriteToTextfile(a.cfg.MetricsTextfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// entry builds the entry for service and user, honouring --target and the
// configured default target
func (a *App) entry(cmd *cobra.Command, service, user string) (*secrets.Entry, error) {
	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		target = a.cfg.Target
	}
	if target != "" {
		return secrets.NewEntryWithTarget(target, service, user, secrets.WithBuilder(a.builder))
	}
	return secrets.NewEntry(service, user, secrets.WithBuilder(a.builder))
}

func (a *App) findTarget(cmd *cobra.Command) *string {
	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		target = a.cfg.Target
	}
	if target == "" {
		return nil
	}
	return &target
}

func (a *App) timeout(cmd *cobra.Command) time.Duration {
	d, _ := cmd.Flags().GetDuration("timeout")
	return d
}

// ExitCode maps an error onto the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, secrets.ErrNoEntry):
		return 2
	case errors.Is(err, secrets.ErrAmbiguous):
		return 3
	default:
		return 1
	}
}

// stdinFile returns the process stdin when cmd reads from it
func stdinFile(cmd *cobra.Command) (*os.File, bool) {
	f, ok := cmd.InOrStdin().(*os.File)
	return f, ok
}
