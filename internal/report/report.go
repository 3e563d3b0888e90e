// Package report renders the end-of-session summary box.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/formcheck/internal/tally"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

var (
	ColorSuccess = lipgloss.Color("#00D787")
	ColorWarning = lipgloss.Color("#FFAF00")
	ColorError   = lipgloss.Color("#FF5F87")
	ColorInfo    = lipgloss.Color("#5FAFFF")
	ColorMuted   = lipgloss.Color("#888888")
)

var (
	StyleTitle = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold  = lipgloss.NewStyle().Bold(true)
)

// TerminalWidth returns the width of stderr, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(os.Stderr.Fd())
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// FormatDuration renders milliseconds as HH:MM:SS.
func FormatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// tierColor picks the border color from the average score.
func tierColor(score float64) lipgloss.Color {
	switch tally.TierFor(int(score)) {
	case tally.Perfect:
		return ColorSuccess
	case tally.Good:
		return ColorWarning
	default:
		return ColorError
	}
}

// Summary renders the session box. width <= 0 uses the terminal width.
func Summary(t *tally.Tally, rule string, malformed int, width int) string {
	if width <= 0 {
		width = TerminalWidth()
	}

	var b strings.Builder
	title := fmt.Sprintf("📊 %s SESSION SUMMARY", strings.ToUpper(t.Exercise))
	if rule != "" && rule != t.Exercise {
		title += StyleMuted.Render(fmt.Sprintf(" (%s rule)", rule))
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleMuted.Render(fmt.Sprintf("%-16s", label)), StyleBold.Render(value))
	}
	row("Repetitions", fmt.Sprintf("%d", t.Reps))
	row("Average score", fmt.Sprintf("%.1f (%s)", t.AverageScore(), tally.TierFor(int(t.AverageScore()))))
	row("Lowest score", fmt.Sprintf("%d", t.Lowest()))
	row("Calories", fmt.Sprintf("%d kcal", t.Calories()))
	row("Duration", FormatDuration(t.DurationMS()))
	row("Samples", fmt.Sprintf("%d analyzed, %d out of frame", t.Analyzed, t.OutOfFrame))
	if malformed > 0 {
		row("Skipped lines", fmt.Sprintf("%d malformed", malformed))
	}

	if len(t.RepScores) > 0 {
		scores := make([]string, len(t.RepScores))
		for i, s := range t.RepScores {
			scores[i] = fmt.Sprintf("%d", s)
		}
		row("Score per rep", strings.Join(scores, " "))
	}

	if top := t.TopIssues(); len(top) > 0 {
		b.WriteString("\n")
		b.WriteString(StyleTitle.Render("Most frequent issues"))
		b.WriteString("\n")
		for _, ic := range top {
			fmt.Fprintf(&b, "  %-16s %d\n", ic.Kind, ic.Count)
		}
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(tierColor(t.AverageScore())).
		Padding(0, 1).
		Width(width - 2)

	return box.Render(strings.TrimRight(b.String(), "\n"))
}
