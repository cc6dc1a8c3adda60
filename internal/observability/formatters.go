// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 8
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer

	box     lipgloss.Style
	title   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	current lipgloss.Style
}

// NewPrinter creates a new Printer that writes to the given writer.
// Colors are only emitted when the writer is a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out: out,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(boxWidth),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#888888")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#D29922")),
		fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		current: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
	}
}

// printBox prints a bordered box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	body := lipgloss.JoinVertical(lipgloss.Left, p.title.Render(title), "", content)
	fmt.Fprintln(p.out, p.box.Render(body))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func (p *Printer) statusMark(status steps.Status) string {
	switch status {
	case steps.StatusCompleted:
		return p.ok.Render("✓")
	case steps.StatusFailed:
		return p.fail.Render("✗")
	case steps.StatusInProgress:
		return p.current.Render("›")
	case steps.StatusSkipped:
		return p.muted.Render("↷")
	default:
		return p.muted.Render("·")
	}
}

// PrintProgress outputs one line per pipeline progress event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	prefix := fmt.Sprintf("Step %d/%d", event.Number, len(steps.Order))
	if event.Unit > 0 {
		prefix = fmt.Sprintf("[Article %d] %s", event.Unit, prefix)
	}
	line := fmt.Sprintf("%s %s: %s", p.statusMark(event.Status), prefix, event.Message)
	if event.Status == steps.StatusFailed {
		line = p.fail.Render(line)
	}
	fmt.Fprintln(p.out, line)
}

// PrintRunReport outputs the step table of a finished run.
func (p *Printer) PrintRunReport(report *pipeline.RunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	if report.Refresh != nil {
		sb.WriteString(p.stepLine(report.Refresh))
		if report.Refreshed != nil {
			sb.WriteString(p.muted.Render(fmt.Sprintf("    %d queries synced, %d opportunities scored",
				report.Refreshed.QueriesSynced, report.Refreshed.OpportunitiesScored)))
			sb.WriteString("\n")
		}
	}

	for _, unit := range report.Units {
		header := fmt.Sprintf("Article %d", unit.Index)
		if unit.ScheduledDate != nil {
			header += " · " + unit.ScheduledDate.Format(types.DateLayout)
		}
		if unit.Keyword != "" {
			header += fmt.Sprintf(" · %q", truncate(unit.Keyword, 32))
		}
		sb.WriteString("\n" + header + "\n")
		for _, s := range unit.Steps {
			sb.WriteString(p.stepLine(s))
		}
		if unit.Publish != nil {
			sb.WriteString(p.ok.Render("    → " + unit.Publish.PublishedURL))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\nPublished %d of %d", report.Published(), len(report.Units)))
	if report.Error != "" {
		sb.WriteString("\n" + p.fail.Render(truncate(report.Error, boxWidth-4)))
	}

	p.printBox(fmt.Sprintf("%s RUN", strings.ToUpper(string(report.Mode))), sb.String())
}

func (p *Printer) stepLine(s *pipeline.StepState) string {
	line := fmt.Sprintf("  %s %d. %s", p.statusMark(s.Status), s.Number, steps.StepRegistry[s.Step].Title)
	if s.Status == steps.StatusFailed && s.Error != "" {
		line += ": " + p.fail.Render(truncate(s.Error, 36))
	}
	return line + "\n"
}

// PrintAutopilotConfig outputs a site's autopilot settings and progress.
func (p *Printer) PrintAutopilotConfig(cfg *types.AutopilotConfig) {
	if cfg == nil {
		return
	}

	var sb strings.Builder
	enabled := p.warn.Render("disabled")
	if cfg.Enabled {
		enabled = p.ok.Render("enabled")
	}
	sb.WriteString(fmt.Sprintf("Domain:     %s\n", cfg.Domain))
	sb.WriteString(fmt.Sprintf("Autopilot:  %s\n", enabled))
	sb.WriteString(fmt.Sprintf("Cadence:    %s\n", cfg.Cadence))
	sb.WriteString(fmt.Sprintf("Reasoning:  %s\n", cfg.ReasoningLevel))
	sb.WriteString(fmt.Sprintf("Per run:    %d article(s)\n", cfg.ArticlesPerRun))
	sb.WriteString(fmt.Sprintf("Next run:   %s\n", formatTime(cfg.NextRunAt)))
	sb.WriteString(fmt.Sprintf("Last run:   %s\n", formatTime(cfg.LastRunAt)))

	if cfg.InFlight() {
		sb.WriteString("\n" + p.warn.Render("Awaiting generation: resume to continue from step 3"))
	}
	if cfg.LastError != nil {
		sb.WriteString("\n" + p.fail.Render("Last error: "+truncate(*cfg.LastError, boxWidth-16)))
	}

	p.printBox("AUTOPILOT", strings.TrimSuffix(sb.String(), "\n"))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

// calendarMark is the one-letter marker shown next to a scheduled day.
func calendarMark(status types.ScheduledRunStatus) string {
	switch status {
	case types.ScheduledRunPending:
		return "p"
	case types.ScheduledRunKeywordPicked:
		return "k"
	case types.ScheduledRunRunning:
		return "r"
	case types.ScheduledRunCompleted:
		return "✓"
	case types.ScheduledRunFailed:
		return "✗"
	}
	return " "
}

// PrintCalendar outputs a month grid with the status of every scheduled day.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCalendar(ym calendar.YearMonth, runs []types.ScheduledRun, today time.Time) {
	byDay := make(map[int]types.ScheduledRun, len(runs))
	for _, r := range runs {
		if ym.Contains(r.ScheduledDate) {
			byDay[r.ScheduledDate.Day()] = r
		}
	}

	var sb strings.Builder
	sb.WriteString(p.muted.Render(" Su   Mo   Tu   We   Th   Fr   Sa") + "\n")

	days := ym.Days()
	col := int(days[0].Weekday())
	sb.WriteString(strings.Repeat("     ", col))
	for _, d := range days {
		mark := " "
		if r, ok := byDay[d.Day()]; ok {
			mark = calendarMark(r.Status)
		}
		cell := fmt.Sprintf("%3d%s", d.Day(), mark)
		switch {
		case d.Equal(types.Day(today)):
			cell = p.current.Render(cell)
		case d.Before(types.Day(today)):
			cell = p.muted.Render(cell)
		}
		sb.WriteString(cell + " ")
		col++
		if col == 7 {
			sb.WriteString("\n")
			col = 0
		}
	}
	sb.WriteString("\n" + p.muted.Render("p pending  k keyword picked  r running  ✓ completed  ✗ failed"))

	p.printBox(ym.String(), sb.String())
	p.PrintScheduledRuns(runs)
}

// PrintScheduledRuns outputs the detail of scheduled rows that carry a keyword or result.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintScheduledRuns(runs []types.ScheduledRun) {
	shown := 0
	for _, r := range runs {
		if r.KeywordText == nil && r.PublishedURL == nil && r.LastError == nil {
			continue
		}
		if shown == maxItemsToShow {
			fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("  ... and %d more", len(runs)-shown)))
			return
		}
		shown++

		line := fmt.Sprintf("  %s  %-14s", r.ScheduledDate.Format(types.DateLayout), r.Status)
		if r.KeywordText != nil {
			line += fmt.Sprintf(" %q", truncate(*r.KeywordText, 30))
		}
		switch {
		case r.PublishedURL != nil:
			line += " → " + *r.PublishedURL
		case r.LastError != nil:
			line += " " + p.fail.Render(truncate(*r.LastError, 40))
		}
		fmt.Fprintln(p.out, line)
	}
}

// PrintToggle outputs the outcome of a day toggle.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintToggle(result *calendar.ToggleResult) {
	if result == nil {
		return
	}
	msg := fmt.Sprintf("%s: %s", result.Date.Format(types.DateLayout), result.Action)
	if result.Action == calendar.ToggleUnchanged && result.Run != nil {
		msg += p.muted.Render(fmt.Sprintf(" (row is %s)", result.Run.Status))
	}
	fmt.Fprintln(p.out, msg)
}

// PrintSweep outputs one line per site processed by a sweep.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSweep(results []pipeline.SiteSweep) {
	for _, r := range results {
		var parts []string
		if r.Scheduled != nil {
			parts = append(parts, fmt.Sprintf("%d scheduled published", r.Scheduled.Published()))
		}
		if r.Cadence != nil {
			parts = append(parts, fmt.Sprintf("%d cadence published", r.Cadence.Published()))
		}
		if r.Skipped != "" {
			parts = append(parts, p.muted.Render("skipped: "+r.Skipped))
		}

		mark := p.ok.Render("✓")
		if r.Error != "" {
			mark = p.fail.Render("✗")
			parts = append(parts, p.fail.Render(truncate(r.Error, 60)))
		}
		if len(parts) == 0 {
			parts = append(parts, p.muted.Render("nothing to do"))
		}
		fmt.Fprintf(p.out, "%s %s: %s\n", mark, r.Domain, strings.Join(parts, ", "))
	}
}
