package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/n2edm/n2read/internal/catalog"
	"github.com/n2edm/n2read/internal/logger"
)

func newCatalogCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain and query the run span catalog",
		Long: `The catalog caches the time span and subsystems of every run in a SQLite
database so time-range lookups do not rescan the data root.

Subcommands:
- refresh: scan the data root and update changed runs
- spans: list the cached spans
- between: list the runs overlapping a time range
- subsystem: list the runs that may hold a subsystem
- watch: refresh periodically until interrupted`,
	}
	cmd.AddCommand(
		newCatalogRefreshCommand(e),
		newCatalogSpansCommand(e),
		newCatalogBetweenCommand(e),
		newCatalogSubsystemCommand(e),
		newCatalogWatchCommand(e),
	)
	return cmd
}

// openCatalog opens the configured catalog, creating its directory.
func (e *env) openCatalog() (*catalog.Catalog, error) {
	if err := e.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return catalog.Open(e.cfg.Catalog.Path)
}

func (e *env) refreshOptions(force bool, start int32) catalog.RefreshOptions {
	return catalog.RefreshOptions{
		Subsystem:    e.cfg.Catalog.Subsystem,
		StartFromRun: start,
		Workers:      e.cfg.Catalog.Workers,
		Force:        force,
	}
}

func printScanResult(cmd *cobra.Command, res *catalog.ScanResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "scan %s: %d scanned, %d unchanged, %d failed in %s\n",
		res.ScanID, res.Scanned, res.Skipped, res.Failed, res.Duration.Round(1e6))
}

func newCatalogRefreshCommand(e *env) *cobra.Command {
	var (
		force bool
		start int32
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Scan the data root and update the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Refresh(cmd.Context(), e.scanner, e.refreshOptions(force, start))
			if err != nil {
				return err
			}
			printScanResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rescan runs whose headers have not changed")
	cmd.Flags().Int32Var(&start, "start", 0, "skip runs below this number")
	return cmd
}

func newCatalogSpansCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "spans",
		Short: "List the cached run spans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			spans, err := c.Spans(cmd.Context())
			if err != nil {
				return err
			}
			if err := printSpans(cmd.OutOrStdout(), spans); err != nil {
				return err
			}

			last, err := c.LastScan(cmd.Context())
			if err != nil {
				return err
			}
			if last != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "last scan %s at %s\n", last.ScanID, last.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newCatalogBetweenCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "between <start> <end>",
		Short: "List the runs overlapping a time range",
		Long: `List the runs whose cached span overlaps [start, end]. Times are
nanoseconds since the epoch, RFC 3339 or YYYYMMDD-HHMMSS; an empty string
leaves that side open.

Examples:
  n2edm catalog between 20200101-000000 20200102-000000
  n2edm catalog between 2020-01-01T00:00:00Z ""`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			startNs, err := parseTime(args[0])
			if err != nil {
				return err
			}
			endNs, err := parseTime(args[1])
			if err != nil {
				return err
			}

			c, err := e.openCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			runs, err := c.RunsBetween(cmd.Context(), startNs, endNs)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func newCatalogSubsystemCommand(e *env) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "subsystem <name>",
		Short: "List the runs that may hold a subsystem",
		Long: `List the runs whose subsystem filter matches name. The filters may report
runs that do not hold the subsystem; --verify lists each candidate run to
drop those.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			runs, err := c.RunsWithSubsystem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, r := range runs {
				if verify && !e.hasSubsystem(r, args[0]) {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "confirm every candidate against the data root")
	return cmd
}

func (e *env) hasSubsystem(run int32, subsystem string) bool {
	subs, err := e.scanner.ListSubsystems(run)
	return err == nil && slices.Contains(subs, subsystem)
}

func newCatalogWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Refresh the catalog periodically until interrupted",
		Long: `Refresh the catalog at catalog.refresh_interval, or on the cron schedule
catalog.refresh_schedule when one is configured, until the process receives
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			r, err := catalog.NewRefresher(c, e.scanner, catalog.RefresherConfig{
				Interval: e.cfg.Catalog.RefreshInterval,
				Schedule: e.cfg.Catalog.RefreshSchedule,
				Options:  e.refreshOptions(false, 0),
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := r.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			r.Stop()

			log := logger.Get("cli")
			if res, err := r.Last(); res != nil {
				printScanResult(cmd, res)
			} else if err != nil {
				log.Warn().Err(err).Msg("Last refresh failed")
			}
			return nil
		},
	}
}
