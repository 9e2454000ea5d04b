// Package cli provides terminal UI components for the sagevox CLI.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the TUI.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default warm amber theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#ffb454"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is a labeled block of a monitor frame with dynamic content.
type Section struct {
	Label   string
	Content func() []string
}

// Frame renders a bordered monitor frame: title and status on top, labeled
// sections, help text below.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame to a string for the given terminal size.
func (f Frame) Render(width, height int) string {
	if width == 0 || height == 0 {
		return "Loading..."
	}

	bc := f.Styles.Border
	maxContentWidth := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+
		strings.Repeat(" ", padding)+" "+bc.Render("│"))

	numSections := max(len(f.Sections), 1)
	sectionHeight := max((height-4-numSections)/numSections, 2)

	for _, sec := range f.Sections {
		lines = append(lines, f.renderSection(bc, sec.Label, sec.Content(), sectionHeight, width, maxContentWidth)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))
	return strings.Join(lines, "\n")
}

func (f Frame) renderSection(bc lipgloss.Style, label string, content []string, height, width, maxContentWidth int) []string {
	var lines []string

	labelText := f.Styles.Label.Render(label)
	padding := max(0, width-3-lipgloss.Width(labelText))
	lines = append(lines, bc.Render("├")+bc.Render("─")+labelText+
		bc.Render(strings.Repeat("─", padding))+bc.Render("┤"))

	// Show the last lines that fit.
	start := max(len(content)-height, 0)
	for i := 0; i < height; i++ {
		var text string
		if start+i < len(content) {
			text = content[start+i]
		}
		if lipgloss.Width(text) > maxContentWidth {
			text = truncate(text, maxContentWidth)
		}
		pad := max(0, width-4-lipgloss.Width(text))
		lines = append(lines, bc.Render("│")+" "+text+strings.Repeat(" ", pad)+" "+bc.Render("│"))
	}
	return lines
}

func truncate(s string, w int) string {
	runes := []rune(s)
	if len(runes) <= w {
		return s
	}
	if w <= 1 {
		return "…"
	}
	return string(runes[:w-1]) + "…"
}

// barGlyphs maps amplitude to a block character, low to high.
var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// Bars renders a normalized amplitude slice as a one-line block-character
// meter. Values are clamped to [0, 1].
func Bars(amps []float64) string {
	var b strings.Builder
	for _, a := range amps {
		if a < 0 {
			a = 0
		}
		if a > 1 {
			a = 1
		}
		idx := int(a * float64(len(barGlyphs)-1))
		b.WriteRune(barGlyphs[idx])
	}
	return b.String()
}
