package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/contacts/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers and table headings.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// CellStyle pads table cells.
var CellStyle = lipgloss.NewStyle().
	Padding(0, 1)

// LabelStyle is used for field names in the contact card.
var LabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for failures reported to the user.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// BorderStyle provides a rounded border for the contact card.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// FolderStyle returns a color-coded style for a folder: broken mounts in
// red, shares in magenta, the trash and its content in gray.
func FolderStyle(f model.ContactsFolder) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch {
	case f.Broken:
		return base.Foreground(ColorRed).Strikethrough(true)
	case f.IsShared:
		return base.Foreground(ColorMagenta)
	case f.InTrash():
		return base.Foreground(ColorGray)
	case model.IsSystemFolder(f.ID):
		return base.Foreground(ColorBlue).Bold(true)
	default:
		return base.Foreground(ColorWhite)
	}
}

// SyncStateStyle returns a color-coded style for a notification channel
// state name.
func SyncStateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch state {
	case "running":
		return base.Foreground(ColorGreen)
	case "error":
		return base.Foreground(ColorRed)
	case "idle":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}
