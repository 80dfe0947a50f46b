// Package ui renders the contacts cache for the terminal.
package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/theme"
)

// RenderHeader renders a header bar of the given width with a title on
// the left and a status on the right.
func RenderHeader(title, status string, width int) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// SyncLine summarizes the notification channel.
func SyncLine(state, session string, lastSeq int) string {
	line := theme.SyncStateStyle(state).Render(state)
	if session != "" {
		line += theme.HelpStyle.Render(fmt.Sprintf(" session %s, seq %d", session, lastSeq))
	}
	return line
}

// FolderTree lists folders indented by depth, with the number of cached
// contacts when the folder was fetched.
func FolderTree(folders []model.ContactsFolder, contacts map[string][]model.Contact) string {
	parents := make(map[string]string, len(folders))
	for _, f := range folders {
		parents[f.ID] = f.Parent
	}

	var b strings.Builder
	for _, f := range folders {
		depth := 0
		for p, ok := parents[f.Parent]; ok && depth < len(folders); p, ok = parents[p] {
			depth++
		}

		label := f.Label
		if label == "" {
			label = f.Path
		}
		line := strings.Repeat("  ", depth) + theme.FolderStyle(f).Render(label)

		var notes []string
		notes = append(notes, "#"+f.ID)
		if bucket, ok := contacts[f.ID]; ok {
			notes = append(notes, strconv.Itoa(len(bucket))+" cached")
		} else {
			notes = append(notes, strconv.Itoa(f.ItemsCount)+" items")
		}
		if f.Owner != "" {
			notes = append(notes, "shared by "+f.Owner)
		}
		if len(f.SharedWith) > 0 {
			notes = append(notes, fmt.Sprintf("shared with %d", len(f.SharedWith)))
		}
		if f.Broken {
			notes = append(notes, "broken")
		}
		b.WriteString(line)
		b.WriteString(theme.HelpStyle.Render("  " + strings.Join(notes, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

// ContactTable renders contacts one per row.
func ContactTable(contacts []model.Contact) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "NAME", "EMAIL", "PHONE", "COMPANY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.HeaderStyle
			}
			return theme.CellStyle
		})

	for _, c := range contacts {
		t.Row(c.ID, c.DisplayName(), c.PrimaryEmail(), primaryPhone(c), c.Company)
	}
	return t.String()
}

func primaryPhone(c model.Contact) string {
	keys := model.SortedKeys(c.Phone)
	if len(keys) == 0 {
		return ""
	}
	return c.Phone[keys[0]].Number
}

// ContactCard renders every populated field of c.
func ContactCard(c model.Contact) string {
	var lines []string
	add := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, theme.LabelStyle.Render(label+":")+" "+value)
	}

	add("Name", c.DisplayName())
	for _, f := range model.ScalarFields {
		add(string(f), c.Scalar(f))
	}
	for _, id := range model.SortedKeys(c.Email) {
		add(id.String(), c.Email[id].Mail)
	}
	for _, id := range model.SortedKeys(c.Phone) {
		add(id.String(), c.Phone[id].Number)
	}
	for _, id := range model.SortedKeys(c.Address) {
		add(id.String(), formatAddress(c.Address[id]))
	}
	for _, id := range model.SortedKeys(c.URL) {
		add(id.String(), c.URL[id].URL)
	}
	if len(c.Tags) > 0 {
		add("tags", strings.Join(c.Tags, ", "))
	}
	add("image", c.Image)
	add("folder", c.Parent)

	return theme.BorderStyle.Render(strings.Join(lines, "\n"))
}

func formatAddress(a model.Address) string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.PostalCode, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
