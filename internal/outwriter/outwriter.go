// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

// GetMaxNameWidth calculates the maximum width for repository names in
// progress lines based on terminal width.
func GetMaxNameWidth() int {
	termWidth := 80 // Conservative default for narrow terminals and CI
	if detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && detectedWidth > 0 {
		termWidth = detectedWidth
	}

	// Counter + label + stage + duration with separators
	available := termWidth - 45
	if available < 20 {
		return 20
	}
	if available > 60 {
		return 60
	}
	return available
}

// PrintBanner prints a phase banner.
func PrintBanner(w io.Writer, useColors bool, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if useColors {
		text = contract.HeaderColor.Sprint(text)
	}
	_, _ = fmt.Fprintln(w, text)
}

// PrintOutcomeLine prints one progress line for a finished attempt.
func PrintOutcomeLine(w io.Writer, attempt, limit int, o schema.AnalysisOutcome, useColors bool, nameWidth int) {
	label := contract.GetPlainLabel(o.Succeeded())
	if useColors {
		label = contract.GetColorLabel(o.Succeeded())
	}
	name := contract.TruncateName(o.Repository.FullName, nameWidth)
	duration := o.Duration.Round(time.Millisecond)

	if o.Succeeded() {
		_, _ = fmt.Fprintf(w, "[%d/%d] %-*s %s classes=%d loc=%d (%s)\n",
			attempt, limit, nameWidth, name, label, o.Summary.ClassesCount, o.Summary.LOC, duration)
		return
	}
	_, _ = fmt.Fprintf(w, "[%d/%d] %-*s %s at %s: %s (%s)\n",
		attempt, limit, nameWidth, name, label, o.Stage, o.Reason, duration)
}

// PrintBatchSummary prints the tallies for a finished batch.
func PrintBatchSummary(w io.Writer, progress *schema.BatchProgress, duration time.Duration) {
	_, _ = fmt.Fprintf(w, "Attempted %d, succeeded %d, skipped %d", progress.Attempted, len(progress.Successes()), progress.Skipped())
	if progress.Resumed > 0 {
		_, _ = fmt.Fprintf(w, ", resumed %d", progress.Resumed)
	}
	_, _ = fmt.Fprintf(w, " in %s\n", duration.Round(time.Millisecond))
}

// PrintBatchStats renders the batch statistics table.
func PrintBatchStats(w io.Writer, stats schema.BatchStats) error {
	_, _ = fmt.Fprintf(w, "Repositories analyzed: %d\n", stats.Analyzed)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Min", "Mean", "Max"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	rows := []struct {
		name string
		r    schema.StatRange
	}{
		{"Stars", stats.Stars},
		{"CBO mean", stats.CBO},
		{"DIT mean", stats.DIT},
		{"LCOM mean", stats.LCOM},
	}
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, []string{row.name, formatFloat(row.r.Min), formatFloat(row.r.Mean), formatFloat(row.r.Max)})
	}

	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("error adding table data: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("error rendering table: %w", err)
	}
	return nil
}

// WriteSmokeTest writes a single-outcome table used to verify the analyzer setup.
func WriteSmokeTest(path string, o schema.AnalysisOutcome) error {
	return WriteCheckpoint(path, []schema.AnalysisOutcome{o})
}
