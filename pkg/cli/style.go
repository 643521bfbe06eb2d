package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Offsets and repeat markers
	Zero    lipgloss.Color // Zero bytes in dumps
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Zero:    lipgloss.Color("#3b4048"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Label  lipgloss.Style
	Offset lipgloss.Style
	Byte   lipgloss.Style
	Zero   lipgloss.Style
	ASCII  lipgloss.Style
	Repeat lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Offset: lipgloss.NewStyle().Foreground(t.Dim),
		Byte:   lipgloss.NewStyle(),
		Zero:   lipgloss.NewStyle().Foreground(t.Zero),
		ASCII:  lipgloss.NewStyle().Foreground(t.Primary),
		Repeat: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Label:  plain,
		Offset: plain,
		Byte:   plain,
		Zero:   plain,
		ASCII:  plain,
		Repeat: plain,
	}
}

// padRight pads s with spaces to the given display width.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
