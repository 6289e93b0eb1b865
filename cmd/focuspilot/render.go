package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/loykin/focuspilot/pkg/client"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Width(14)

	focusedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	distractedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 2)
)

// renderStats draws the 24 hour summary as a bordered box.
func renderStats(st client.Stats) string {
	focused := time.Duration(st.TotalFocusedMs) * time.Millisecond
	rows := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Last 24 hours"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("Focused"), focusedStyle.Render(formatFocus(focused))),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("Distractions"), distractedStyle.Render(fmt.Sprintf("%d", st.DistractionCount))),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("Samples"), fmt.Sprintf("%d", st.Samples)),
	)
	return boxStyle.Render(rows)
}

func formatFocus(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
