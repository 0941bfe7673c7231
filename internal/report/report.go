// Package report renders check results for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

const (
	separator = "================================================"
	// Missing marks an absent optional value.
	Missing = "—"
	// TargetPointer is printed in the pointer column of the target row.
	TargetPointer = "← это вы"
)

// Options control what the Writer prints besides the summary.
type Options struct {
	ShowTable bool
}

// Writer prints a block per check result to an io.Writer.
type Writer struct {
	out  io.Writer
	opts Options
}

var _ admission.Reporter = (*Writer)(nil)

// New creates a Writer over out.
func New(out io.Writer, opts Options) *Writer {
	return &Writer{out: out, opts: opts}
}

// Write prints the program name, the optional roster table, and the summary
// line for one result. Failed results print the error instead.
func (w *Writer) Write(result admission.CheckResult) error {
	var b strings.Builder
	if result.Err != nil {
		fmt.Fprintf(&b, "Ошибка: %s: %v\n", result.URL, result.Err)
		b.WriteString(separator + "\n")
		return w.flush(b.String())
	}

	fmt.Fprintf(&b, "Направление: %s\n", optionalString(result.Facts.ProgramName, result.Facts.HasProgram))
	if w.opts.ShowTable {
		b.WriteString(RenderRoster(result.Roster))
		b.WriteString("\n")
	}
	b.WriteString(Summary(result))
	b.WriteString("\n")
	b.WriteString(separator + "\n")
	return w.flush(b.String())
}

func (w *Writer) flush(s string) error {
	if _, err := io.WriteString(w.out, s); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Summary formats budget seats, roster size, rank, and priority on one line.
func Summary(result admission.CheckResult) string {
	seats := Missing
	if result.Facts.HasBudgetSeat {
		seats = strconv.Itoa(result.Facts.BudgetSeats)
	}
	rank := Missing
	if r, ok := result.Roster.Rank(); ok {
		rank = strconv.Itoa(r)
	}
	priority := Missing
	if p, ok := result.Roster.Priority(); ok {
		priority = formatNumber(p)
	}
	return fmt.Sprintf("Бюджетных мест: %s; Всего в списке: %d; Твоё место: %s; Приоритет: %s",
		seats, len(result.Roster.Records), rank, priority)
}

// RenderRoster draws the filtered roster as a table.
func RenderRoster(roster admission.RankedRoster) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{
		"позиция", "№", "код", "приоритет", "балл", "условия", "согласие", "",
	})
	for _, rec := range roster.Records {
		pointer := ""
		if rec.IsTarget {
			pointer = TargetPointer
		}
		t.AppendRow(table.Row{
			optionalInt(rec.Position),
			rec.SequenceNumber,
			rec.ApplicantCode,
			optionalFloat(rec.Priority),
			rec.CompetitiveScore,
			rec.AdmissionCondition,
			rec.ConsentFlag,
			pointer,
		})
	}
	return t.Render()
}

func optionalString(s string, ok bool) string {
	if !ok || s == "" {
		return Missing
	}
	return s
}

func optionalInt(v *int) string {
	if v == nil {
		return Missing
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return Missing
	}
	return formatNumber(*v)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
