package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/n2edm/n2read/internal/dataset"
	"github.com/n2edm/n2read/internal/merge"
	"github.com/n2edm/n2read/pkg/types"
)

type dumpOptions struct {
	run       int32
	cycle     int32
	subsystem string
	limit     int
}

func newDumpCommand(e *env) *cobra.Command {
	opts := dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump [header.hd]",
		Short: "Read one dataset and print its metadata and rows",
		Long: `Read one dataset and print its metadata and first rows.

The dataset is either given as the path of its header file, or located under
the data root with --run, --cycle and --subsystem.

Examples:
  n2edm dump /data/edm/001/234/001234_000007_000_coils_000.hd
  n2edm dump --run 1234 --cycle 7 --subsystem coils --limit 100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ds     *dataset.Dataset
				report *dataset.ReadReport
				err    error
			)
			switch {
			case len(args) == 1:
				ds, report, err = e.reader.ReadFile(args[0])
			case opts.subsystem != "":
				ds, report, err = e.reader.ReadDataset(e.scanner.Location(opts.run, opts.cycle, opts.subsystem), 0)
			default:
				return errors.New("give a header path or --run, --cycle and --subsystem")
			}
			if err != nil {
				return err
			}
			defer ds.Clear()

			w := cmd.OutOrStdout()
			printMetadata(w, ds)
			fmt.Fprintf(w, "rows:       %d of %d expected, %d integrity warnings\n",
				report.Rows, report.ExpectedRows, report.IntegrityWarnings)
			if report.PartialBytes > 0 {
				fmt.Fprintf(w, "partial:    %d trailing bytes\n", report.PartialBytes)
			}
			return printRows(w, ds, opts.limit)
		},
	}
	cmd.Flags().Int32Var(&opts.run, "run", 0, "run number")
	cmd.Flags().Int32Var(&opts.cycle, "cycle", 0, "cycle number")
	cmd.Flags().StringVar(&opts.subsystem, "subsystem", "", "subsystem name")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of rows to print (0 prints none, -1 all)")
	return cmd
}

type seriesOptions struct {
	fromCycle  int32
	toCycle    int32
	decimation uint32
	maxRows    uint32
	start      string
	end        string
	export     string
	limit      int
}

func newSeriesCommand(e *env) *cobra.Command {
	opts := seriesOptions{}
	cmd := &cobra.Command{
		Use:   "series <run> <subsystem>",
		Short: "Merge the cycles of a run into one series",
		Long: `Read the cycles of one run in order and merge them into a single series,
keeping every Nth row (--decimation) inside a time window (--start/--end) up to
--max-rows rows. The relative time axis is continuous across cycles.

Defaults for the filter come from the read section of the configuration.

Examples:
  n2edm series 1234 coils --decimation 10
  n2edm series 1234 coils --start 20200101-000000 --max-rows 5000 --export ./out`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			filter, err := opts.filter(cmd, e.cfg.Read)
			if err != nil {
				return err
			}

			series, err := merge.ReadRunSeries(cmd.Context(), e.reader, e.scanner, merge.SeriesRequest{
				Run:       run,
				Subsystem: args[1],
				CycleFrom: opts.fromCycle,
				CycleTo:   opts.toCycle,
				Filter:    filter,
			})
			if err != nil {
				return err
			}
			ds := series.Dataset
			defer ds.Clear()

			w := cmd.OutOrStdout()
			printMetadata(w, ds)
			fmt.Fprintf(w, "cycles:     %d merged, %d skipped\n", len(series.Cycles), len(series.Skipped))
			fmt.Fprintf(w, "rows:       %d (remainder %d)\n", ds.Len(), series.Remaining)

			if opts.export != "" {
				res, err := dataset.Write(ds, opts.export, e.cfg.LayoutValue())
				if err != nil {
					return fmt.Errorf("export series: %w", err)
				}
				fmt.Fprintf(w, "exported:   %s (%d rows)\n", res.ConfigPath, res.Rows)
			}
			return printRows(w, ds, opts.limit)
		},
	}
	f := cmd.Flags()
	f.Int32Var(&opts.fromCycle, "from-cycle", 0, "first cycle to read")
	f.Int32Var(&opts.toCycle, "to-cycle", 0, "last cycle to read (0 reads to the end)")
	f.Uint32Var(&opts.decimation, "decimation", 0, "keep every Nth row")
	f.Uint32Var(&opts.maxRows, "max-rows", 0, "stop after this many rows (0 is unbounded)")
	f.StringVar(&opts.start, "start", "", "drop rows before this time")
	f.StringVar(&opts.end, "end", "", "drop rows after this time")
	f.StringVar(&opts.export, "export", "", "write the merged series as a dataset under this directory")
	f.IntVar(&opts.limit, "limit", 20, "maximum number of rows to print (0 prints none, -1 all)")
	return cmd
}

// filter overrides the configured filter with the flags that were set.
func (o *seriesOptions) filter(cmd *cobra.Command, base types.FilterSpec) (types.FilterSpec, error) {
	f := base
	flags := cmd.Flags()
	if flags.Changed("decimation") {
		f.Decimation = o.decimation
	}
	if flags.Changed("max-rows") {
		f.MaxRows = o.maxRows
	}
	if flags.Changed("start") {
		ns, err := parseTime(o.start)
		if err != nil {
			return f, err
		}
		f.StartTimestampNs = ns
	}
	if flags.Changed("end") {
		ns, err := parseTime(o.end)
		if err != nil {
			return f, err
		}
		f.EndTimestampNs = ns
	}
	if f.StartTimestampNs != 0 && f.EndTimestampNs != 0 && f.StartTimestampNs > f.EndTimestampNs {
		return f, errors.New("--start is after --end")
	}
	return f, nil
}

func printMetadata(w io.Writer, ds *dataset.Dataset) {
	fmt.Fprintf(w, "name:       %s\n", ds.Name)
	fmt.Fprintf(w, "run/cycle:  %d/%d\n", ds.Run, ds.Cycle)
	fmt.Fprintf(w, "columns:    %d\n", ds.NumColumns())
	fmt.Fprintf(w, "first:      %s\n", formatNs(ds.FirstTimestampNs))
	fmt.Fprintf(w, "last:       %s\n", formatNs(ds.LastTimestampNs))
}

// printRows prints up to limit rows; a negative limit prints every row.
func printRows(w io.Writer, ds *dataset.Dataset, limit int) error {
	n := ds.Len()
	if limit >= 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}

	colTypes := ds.Schema.Types()
	header := append([]string{"TIMESTAMP"}, ds.Labels()...)
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := ds.Rows.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, types.FormatTimestamp(ds.Rows.Timestamp(i)))
		for _, v := range row.Values(colTypes) {
			cells = append(cells, v.String())
		}
		rows = append(rows, cells)
	}
	if err := printTable(w, header, rows); err != nil {
		return err
	}
	if n < ds.Len() {
		fmt.Fprintln(w, "... "+strconv.Itoa(ds.Len()-n)+" more rows")
	}
	return nil
}
