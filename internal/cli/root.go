// Package cli implements the swimimport command line: preview and commit
// result workbooks, and apply the database schema, without the HTTP server.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/swimresults/internal/config"
	"github.com/JonMunkholm/swimresults/internal/core"
	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/store"
	"github.com/JonMunkholm/swimresults/internal/workbook"
)

// Source is the ingest source recorded for runs started from the CLI.
const Source = "cli"

// Backend is the storage the commands need. *store.Store satisfies it.
type Backend interface {
	core.Store
	core.UploadLog
	Migrate(ctx context.Context) error
	Close()
}

// Opener connects to the backend described by cfg.
type Opener func(ctx context.Context, cfg *config.Config) (Backend, error)

// App holds the state shared by all commands of one invocation.
type App struct {
	open   Opener
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	flags   globalFlags
	backend Backend
}

type globalFlags struct {
	rulesFile string
	logLevel  string
	logFormat string
	jsonOut   bool
}

// Option configures an App.
type Option func(*App)

// WithOpener replaces the database connection used by the commands.
func WithOpener(open Opener) Option {
	return func(a *App) { a.open = open }
}

// WithOutput redirects report output and log output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// New creates an App connecting through store.Connect.
func New(opts ...Option) *App {
	a := &App{
		open:   openStore,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func openStore(ctx context.Context, cfg *config.Config) (Backend, error) {
	st, err := store.Connect(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Execute runs the command line described by args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "swimimport",
		Short: "Import swim meet results into the results database",
		Long: `swimimport reads result workbooks (.xlsx or .csv), resolves every row
against the canonical athletes, clubs and events, and reports what it found.

preview only analyses; commit writes the results when no athlete is missing.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.rulesFile, "rules", "", "matching rules YAML file (overrides MATCH_RULES_FILE)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text, json (overrides LOG_FORMAT)")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print the full report as JSON")

	root.AddCommand(
		a.previewCommand(),
		a.commitCommand(),
		a.migrateCommand(),
	)
	return root
}

// setup loads configuration and logging before any command runs. Logs go to
// stderr so stdout carries only the report.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.flags.rulesFile != "" {
		cfg.Matching.RulesFile = a.flags.rulesFile
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Logging.Format = a.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(logging.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format))
	workbook.MaxFileSize = cfg.Upload.MaxFileSize
	a.cfg = cfg
	return nil
}

// connect opens the backend once per invocation.
func (a *App) connect(ctx context.Context) (Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.backend = b
	return b, nil
}

func (a *App) close() {
	if a.backend != nil {
		a.backend.Close()
		a.backend = nil
	}
}

// service builds the ingestion service from the loaded configuration.
func (a *App) service(ctx context.Context) (*core.Service, error) {
	b, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(a.cfg.Matching.RulesFile)
	if err != nil {
		return nil, err
	}
	return core.NewService(b,
		core.WithRules(rules),
		core.WithSheetWorkers(a.cfg.Upload.SheetWorkers),
		core.WithTimeout(a.cfg.Upload.Timeout),
	), nil
}
