package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// barPainter paints header and command bar segments on one background.
// Without it the ANSI reset after each styled segment leaves the spaces
// between words unpainted.
type barPainter struct {
	bg    lipgloss.Color
	space string
}

func newBarPainter(color string) barPainter {
	bg := lipgloss.Color(color)
	return barPainter{bg: bg, space: lipgloss.NewStyle().Background(bg).Render(" ")}
}

// text renders s word by word so runs of spaces keep the background.
func (p barPainter) text(s string, style lipgloss.Style) string {
	if s == "" {
		return ""
	}
	style = style.Background(p.bg)
	words := strings.Split(s, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, p.space)
}

func (p barPainter) gap(n int) string {
	if n == 1 {
		return p.space
	}
	return strings.Repeat(p.space, max(n, 0))
}

func (p barPainter) sep(s string) string {
	return lipgloss.NewStyle().Background(p.bg).Render(s)
}

func (p barPainter) join(parts []string, sep string) string {
	return strings.Join(parts, p.sep(sep))
}

// fill stretches a bar to width, painting the remainder.
func (p barPainter) fill(content string, fg string, width int) string {
	return lipgloss.NewStyle().
		Background(p.bg).
		Foreground(lipgloss.Color(fg)).
		Width(width).
		Padding(0, 1).
		Render(content)
}
