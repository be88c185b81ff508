package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/runner"
	"hostpin/internal/storage/models"
)

type runModel struct {
	table  table.Model
	width  int
	height int

	// Progress of the run in flight.
	progress progress.Model
	current  int
	total    int
	failed   int
	last     *models.Outcome

	summary string
}

func newRunModel() runModel {
	t := table.New(
		table.WithColumns(runColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorRule).
		BorderBottom(true).
		Bold(true).
		Foreground(colorAccent)
	s.Selected = s.Selected.
		Foreground(colorText).
		Background(lipgloss.AdaptiveColor{Light: "#E8E0F0", Dark: "#2A1A3E"}).
		Bold(true)
	t.SetStyles(s)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	return runModel{table: t, progress: p}
}

func runColumns(w int) []table.Column {
	domainW := max(w/3, 20)
	return []table.Column{
		{Title: "Domain", Width: domainW},
		{Title: "Address", Width: 18},
		{Title: "Latency", Width: 10},
		{Title: "Pick", Width: 10},
	}
}

func (rm *runModel) setSize(w, h int) {
	rm.width = w
	rm.height = h
	rm.table.SetColumns(runColumns(w))
	rm.progress.Width = max(w-30, 10)
	rm.adjustTableHeight()
}

// adjustTableHeight leaves room for the progress and summary lines.
func (rm *runModel) adjustTableHeight() {
	rm.table.SetHeight(max(rm.height-2, 1))
}

// reset clears progress before a new run.
func (rm *runModel) reset() {
	rm.current, rm.total, rm.failed = 0, 0, 0
	rm.last = nil
	rm.summary = ""
}

func (rm *runModel) updateProgress(msg runProgressMsg) {
	rm.current = msg.current
	rm.total = msg.total
	rm.last = msg.outcome
	if msg.outcome != nil && !msg.outcome.Success {
		rm.failed++
	}
}

// setAssignment shows a stored assignment when no run happened in this view.
func (rm *runModel) setAssignment(a models.Assignment) {
	rows := make([]table.Row, 0, len(a))
	for _, e := range a {
		rows = append(rows, table.Row{e.Domain, e.Address, formatMS(e.LatencyMS), e.Source})
	}
	rm.table.SetRows(rows)
	if len(a) > 0 {
		rm.summary = "Last known assignment"
	}
}

func (rm *runModel) setResult(res *runner.Result) {
	rm.table.SetRows(resultRows(res))
	rm.table.GotoTop()

	if res.State == runner.StateDone {
		rm.summary = fmt.Sprintf("Done: %d tested, %d ok, %d failed", res.Tested, res.Succeeded, res.Failed)
		if res.BackupPath != "" {
			rm.summary += ", backup " + res.BackupPath
		}
	} else {
		rm.summary = "Failed: " + res.Reason
	}
}

// resultRows lists every reachable address per domain, fastest first, and
// marks the one written to the hosts file.
func resultRows(res *runner.Result) []table.Row {
	var rows []table.Row
	for _, e := range res.Assignment {
		if e.Source == models.SourceFallback {
			rows = append(rows, table.Row{e.Domain, e.Address, "-", models.SourceFallback})
			continue
		}

		type candidate struct {
			address string
			ms      float64
		}
		var cands []candidate
		for addr, ms := range res.Table[e.Domain] {
			cands = append(cands, candidate{addr, ms})
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].ms != cands[j].ms {
				return cands[i].ms < cands[j].ms
			}
			return cands[i].address < cands[j].address
		})

		for i, c := range cands {
			domain, pick := "", ""
			if i == 0 {
				domain = e.Domain
			}
			if c.address == e.Address {
				pick = "*"
			}
			ms := c.ms
			rows = append(rows, table.Row{domain, c.address, formatMS(&ms), pick})
		}
	}
	for _, d := range res.Unresolved {
		rows = append(rows, table.Row{d, "-", "-", "unresolved"})
	}
	return rows
}

func (rm *runModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		return root.startRun()
	}
	var cmd tea.Cmd
	rm.table, cmd = rm.table.Update(msg)
	return cmd
}

func (rm *runModel) View(s spinner.Model, running bool) string {
	var b strings.Builder

	switch {
	case running:
		pct := 0.0
		if rm.total > 0 {
			pct = float64(rm.current) / float64(rm.total)
		}
		b.WriteString(fmt.Sprintf("%s Probing %d/%d ", s.View(), rm.current, rm.total))
		b.WriteString(rm.progress.ViewAs(pct))
		b.WriteString("\n")
		if rm.last != nil {
			b.WriteString(dimStyle.Render(describeOutcome(rm.last)))
		}
		b.WriteString("\n")
	case rm.summary != "":
		if strings.HasPrefix(rm.summary, "Failed") {
			b.WriteString(errorStyle.Render(rm.summary))
		} else {
			b.WriteString(successStyle.Render(rm.summary))
		}
		b.WriteString("\n\n")
	default:
		b.WriteString(dimStyle.Render("No run yet. Press enter or u to probe and update the hosts file."))
		b.WriteString("\n\n")
	}

	b.WriteString(rm.table.View())

	return forceHeight(b.String(), rm.width, rm.height)
}

func describeOutcome(o *models.Outcome) string {
	if o.Success {
		return fmt.Sprintf("%s via %s: %s", o.Domain, o.Address, formatMS(o.LatencyMS))
	}
	reason := "failed"
	if o.Err != nil {
		reason = o.Err.Error()
	}
	return fmt.Sprintf("%s via %s: %s", o.Domain, o.Address, truncate(reason, 60))
}

// formatMS renders a latency in milliseconds, "-" when absent.
func formatMS(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fms", *ms)
}

// formatLatency colors a latency for use outside the table.
func formatLatency(ms *float64) string {
	if ms == nil {
		return dimStyle.Render("-")
	}
	return latencyStyle(*ms).Render(formatMS(ms))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
