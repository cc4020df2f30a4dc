package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/endorses/paycat/internal/pkg/audit"
)

// Solarized accents
var (
	colorGreen  = lipgloss.Color("#859900")
	colorRed    = lipgloss.Color("#dc322f")
	colorYellow = lipgloss.Color("#b58900")
	colorBlue   = lipgloss.Color("#268bd2")
	colorMuted  = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(24)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Render formats a report for the terminal
func Render(r Report, now time.Time) string {
	sections := []string{
		boxStyle.Render(renderSummary(r, now)),
	}
	if len(r.HourlyCounts) > 0 {
		sections = append(sections, boxStyle.Render(renderHourly(r.HourlyCounts)))
	}
	sections = append(sections, boxStyle.Render(renderTransactions(r.Transactions)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderSummary(r Report, now time.Time) string {
	statusColor := colorGreen
	if r.Status.Status != "RUNNING" {
		statusColor = colorRed
	}

	lines := []string{
		titleStyle.Render("paycat switch"),
		row("Status", lipgloss.NewStyle().Bold(true).Foreground(statusColor).Render(r.Status.Status)),
		row("Started", fmt.Sprintf("%s (%s ago)", r.Status.StartTime.Format(time.DateTime), since(now, r.Status.StartTime))),
		row("Transactions processed", fmt.Sprint(r.Status.TransactionsProcessed)),
		row("Last updated", r.Status.LastUpdated.Format(time.DateTime)),
	}
	if r.Health != "" {
		healthColor := colorGreen
		if r.Health != "SERVING" {
			healthColor = colorRed
		}
		lines = append(lines, row("Health", lipgloss.NewStyle().Foreground(healthColor).Render(r.Health)))
	}
	return strings.Join(lines, "\n")
}

func renderHourly(counts map[string]int64) string {
	hours := make([]string, 0, len(counts))
	var peak int64
	for h, n := range counts {
		hours = append(hours, h)
		if n > peak {
			peak = n
		}
	}
	sort.Strings(hours)

	const barWidth = 30
	lines := []string{titleStyle.Render("Requests per hour")}
	bar := lipgloss.NewStyle().Foreground(colorBlue)
	for _, h := range hours {
		n := counts[h]
		width := 0
		if peak > 0 {
			width = int(n * barWidth / peak)
		}
		if width == 0 && n > 0 {
			width = 1
		}
		lines = append(lines, fmt.Sprintf("%s  %s %d", h, bar.Render(strings.Repeat("█", width)), n))
	}
	return strings.Join(lines, "\n")
}

func renderTransactions(records []audit.Record) string {
	lines := []string{titleStyle.Render("Recent messages")}
	if len(records) == 0 {
		return strings.Join(append(lines, lipgloss.NewStyle().Foreground(colorMuted).Render("none")), "\n")
	}

	cols := []int{19, 9, 5, 7, 13, 5, 9}
	lines = append(lines, headerStyle.Render(columns(cols,
		"TIME", "DIR", "MTI", "STAN", "AMOUNT", "RC", "TERMINAL")))
	for _, rec := range records {
		lines = append(lines, columns(cols,
			rec.Timestamp.Local().Format(time.DateTime),
			string(rec.Direction),
			rec.MTI,
			rec.STAN,
			rec.Amount,
			codeStyle(rec.ResponseCode).Render(rec.ResponseCode),
			rec.TerminalID))
	}
	return strings.Join(lines, "\n")
}

func codeStyle(code string) lipgloss.Style {
	switch code {
	case "":
		return lipgloss.NewStyle()
	case "00":
		return lipgloss.NewStyle().Foreground(colorGreen)
	case "96":
		return lipgloss.NewStyle().Foreground(colorRed)
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}

func columns(widths []int, values ...string) string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = lipgloss.NewStyle().Width(widths[i] + 1).Render(v)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func since(now, t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return now.Sub(t).Round(time.Second).String()
}
