package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/n2edm/n2read/pkg/types"
)

// setStyling turns pterm colors off unless w is an interactive terminal.
func setStyling(w io.Writer, plain bool) {
	f, ok := w.(*os.File)
	if plain || !ok || !term.IsTerminal(int(f.Fd())) {
		pterm.DisableStyling()
		return
	}
	pterm.EnableStyling()
}

// printTable renders rows under header.
func printTable(w io.Writer, header []string, rows [][]string) error {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func printSpans(w io.Writer, spans []types.RunSpan) error {
	rows := make([][]string, 0, len(spans))
	for _, s := range spans {
		cycles := "-"
		if s.MaxCycle > 0 || s.MinCycle > 0 || s.Valid() {
			cycles = fmt.Sprintf("%d-%d", s.MinCycle, s.MaxCycle)
		}
		rows = append(rows, []string{itoa32(s.Run), s.Subsystem, formatNs(s.StartNs), formatNs(s.EndNs), cycles})
	}
	return printTable(w, []string{"RUN", "SUBSYSTEM", "START", "END", "CYCLES"}, rows)
}

// formatNs renders a timestamp, or the name of a span sentinel.
func formatNs(ns int64) string {
	if ns <= 0 {
		if ns == 0 {
			return "-"
		}
		return types.SpanStatus(ns)
	}
	return types.FormatTimestamp(ns)
}

// parseTime accepts nanoseconds since the epoch, RFC 3339 or the
// YYYYMMDD-HHMMSS form printed by the tools. The empty string is 0.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ns, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixNano(), nil
	}
	if t, err := time.Parse(types.DefaultTimestampLayout, s); err == nil {
		return t.UnixNano(), nil
	}
	return 0, fmt.Errorf("invalid time %q: want nanoseconds, RFC 3339 or YYYYMMDD-HHMMSS", s)
}

func parseRun(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid run number %q", s)
	}
	return int32(v), nil
}

func itoa32(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}
