// Package cli implements the n2edm command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/n2edm/n2read/internal/config"
	"github.com/n2edm/n2read/internal/dataset"
	"github.com/n2edm/n2read/internal/index"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/internal/observability"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configFile string
	root       string
	layout     string
	stateDir   string
	logLevel   string
	logFormat  string
	plain      bool
}

// env is the state shared by the subcommands once the configuration has
// been loaded.
type env struct {
	opts    rootOptions
	cfg     *config.Config
	repeat  *logger.RepeatFilter
	stats   *observability.ReadStats
	reader  *dataset.Reader
	scanner *index.Scanner
}

// NewRootCommand builds the n2edm command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{})
}

func newRootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "n2edm",
		Short: "Read and index N2 EDM time-series datasets",
		Long: `n2edm lists, reads and merges the binary time-series datasets written by
the N2 EDM slow-control system.

A dataset is a header file RRRRRR_CCCCCC_SSS_<subsystem>_VVV.hd describing the
columns, and a data file RRRRRR_CCCCCC_SSS_<subsystem>.EDMdat holding the rows.

Configuration is read from --config (YAML or JSON), then N2EDM_* environment
variables, then flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&e.opts.configFile, "config", "c", "", "configuration file (YAML or JSON)")
	flags.StringVar(&e.opts.root, "root", "", "data root directory")
	flags.StringVar(&e.opts.layout, "layout", "", "directory layout: sharded or flat")
	flags.StringVar(&e.opts.stateDir, "state-dir", "", "directory for the catalog and archive")
	flags.StringVar(&e.opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&e.opts.logFormat, "log-format", "", "log format: console or json")
	flags.BoolVar(&e.opts.plain, "plain", false, "disable table styling")

	rootCmd.AddCommand(
		newRunsCommand(e),
		newSubsystemsCommand(e),
		newCyclesCommand(e),
		newSpansCommand(e),
		newDumpCommand(e),
		newSeriesCommand(e),
		newCatalogCommand(e),
		newStageCommand(e),
		newPublishCommand(e),
	)
	return rootCmd
}

// Execute runs the command tree with args and flushes any suppressed log
// messages before returning.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	e := &env{}
	cmd := newRootCommand(e)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if e.repeat != nil {
		e.repeat.Flush()
	}
	return err
}

// load builds the configuration from file, environment and flags, in that
// order, then sets up logging and the shared reader and scanner.
func (e *env) load(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if e.opts.configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(e.opts.configFile)
		if err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	if e.opts.root != "" {
		cfg.DataRoot = e.opts.root
	}
	if e.opts.layout != "" {
		cfg.Layout = e.opts.layout
	}
	if e.opts.stateDir != "" {
		cfg.StateDir = e.opts.stateDir
	}
	if e.opts.logLevel != "" {
		cfg.Log.Level = e.opts.logLevel
	}
	if e.opts.logFormat != "" {
		cfg.Log.Format = e.opts.logFormat
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repeat, err := logger.Setup(logger.Options{
		Level:             cfg.Log.Level,
		Format:            cfg.Log.Format,
		File:              cfg.Log.File,
		Output:            cmd.ErrOrStderr(),
		NoRepeatLastN:     cfg.Log.NoRepeatLastN,
		RepeatMaxCount:    cfg.Log.RepeatMaxCount,
		RepeatMaxInterval: cfg.Log.RepeatMaxInterval,
	})
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.repeat = repeat
	e.stats = observability.NewReadStats(time.Hour)
	e.reader = dataset.NewReader(dataset.WithStats(e.stats))
	e.scanner = index.NewScanner(cfg.DataRoot, cfg.LayoutValue())
	e.scanner.Reader = e.reader
	setStyling(cmd.OutOrStdout(), e.opts.plain)
	return nil
}
