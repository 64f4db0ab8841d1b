package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(e *env) *cobra.Command {
	var (
		start   int32
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs under the data root",
		Long: `List the runs under the data root in ascending order.

Examples:
  n2edm runs --root /data/edm
  n2edm runs --start 1200 --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if summary {
				lo, hi, n, err := e.scanner.MinMaxRuns(start)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "runs: %d  min: %d  max: %d\n", n, lo, hi)
				return nil
			}
			runs, err := e.scanner.ListRuns(start)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintln(w, r)
			}
			return nil
		},
	}
	cmd.Flags().Int32Var(&start, "start", 0, "skip runs below this number")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the count and the lowest and highest run")
	return cmd
}

func newSubsystemsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "subsystems <run>",
		Short: "List the subsystems recorded in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			subs, err := e.scanner.ListSubsystems(run)
			if err != nil {
				return err
			}
			for _, s := range subs {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newCyclesCommand(e *env) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "cycles <run> <subsystem>",
		Short: "List the cycles of a run for one subsystem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if summary {
				lo, hi, n, err := e.scanner.MinMaxCycles(run, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "cycles: %d  min: %d  max: %d\n", n, lo, hi)
				return nil
			}
			cycles, err := e.scanner.ListCycles(run, args[1])
			if err != nil {
				return err
			}
			for _, c := range cycles {
				fmt.Fprintln(w, c)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the count and the lowest and highest cycle")
	return cmd
}

func newSpansCommand(e *env) *cobra.Command {
	var (
		start     int32
		subsystem string
	)
	cmd := &cobra.Command{
		Use:   "spans",
		Short: "Compute the time span of every run by scanning the data root",
		Long: `Compute the time span of every run from the first and last cycle of one
subsystem. Runs whose span cannot be established are listed with the reason
in place of the timestamps.

The scan reads two header files per run; see "n2edm catalog" for a cached
version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subsystem == "" {
				subsystem = e.cfg.Catalog.Subsystem
			}
			spans, err := e.scanner.RunTimeSpans(cmd.Context(), subsystem, start)
			if err != nil {
				return err
			}
			return printSpans(cmd.OutOrStdout(), spans)
		},
	}
	cmd.Flags().Int32Var(&start, "start", 0, "skip runs below this number")
	cmd.Flags().StringVar(&subsystem, "subsystem", "", "subsystem bounding each run (default: first listed)")
	return cmd
}
