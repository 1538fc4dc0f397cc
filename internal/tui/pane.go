package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// pane is a rounded box with the title set into the top border. Height grows
// with the content unless capped.
type pane struct {
	title   string
	content string
	focused bool
	success bool
}

func (p pane) render(width, maxHeight int) string {
	if width < 8 {
		width = 8
	}
	border := colorBorder
	switch {
	case p.success:
		border = colorSuccess
	case p.focused:
		border = colorAccent
	}
	bs := lipgloss.NewStyle().Foreground(border)

	innerWidth := width - 2
	contentWidth := innerWidth - 2

	titleText := " " + strings.TrimSpace(p.title) + " "
	if ansi.StringWidth(titleText) > innerWidth-1 {
		titleText = " " + ansi.Truncate(strings.TrimSpace(p.title), max(1, innerWidth-3), "…") + " "
	}
	rest := innerWidth - 1 - ansi.StringWidth(titleText)
	if rest < 0 {
		rest = 0
	}
	top := bs.Render("╭─") + titleStyle.Render(titleText) + bs.Render(strings.Repeat("─", rest)+"╮")

	lines := strings.Split(p.content, "\n")
	if maxHeight > 2 && len(lines) > maxHeight-2 {
		lines = lines[len(lines)-(maxHeight-2):]
	}
	rows := make([]string, 0, len(lines)+2)
	rows = append(rows, top)
	side := bs.Render("│")
	for _, line := range lines {
		line = ansi.Truncate(line, contentWidth, "")
		rows = append(rows, side+" "+padRight(line, contentWidth)+" "+side)
	}
	rows = append(rows, bs.Render("╰"+strings.Repeat("─", innerWidth)+"╯"))
	return strings.Join(rows, "\n")
}

func padRight(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
