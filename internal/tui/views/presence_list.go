package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/rivo/tview"
)

// PresenceList is the buddy list table.
type PresenceList struct {
	*tview.Table
	theme *ui.Theme
	users []api.PresenceEntry
	now   func() time.Time
}

// NewPresenceList creates the buddy list.
func NewPresenceList(theme *ui.Theme) *PresenceList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Users ")
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg))

	return &PresenceList{Table: table, theme: theme, now: time.Now}
}

// Update refreshes the table. Users arrive sorted by the daemon.
func (pl *PresenceList) Update(users []api.PresenceEntry) {
	pl.users = users
	pl.Clear()

	for i, u := range users {
		name := u.FullName
		if name == "" {
			name = u.Email
		}
		pl.SetCell(i, 0, tview.NewTableCell(" "+Glyph(u.Status)).SetTextColor(pl.statusColor(u.Status)))
		pl.SetCell(i, 1, tview.NewTableCell(cleanText(name)).SetMaxWidth(28).SetExpansion(1))
		pl.SetCell(i, 2, tview.NewTableCell(LastSeen(u, pl.now())).SetTextColor(pl.theme.FgColor))
	}
}

// Selected returns the email of the highlighted user.
func (pl *PresenceList) Selected() string {
	row, _ := pl.GetSelection()
	if row >= 0 && row < len(pl.users) {
		return pl.users[row].Email
	}
	return ""
}

func (pl *PresenceList) statusColor(status string) tcell.Color {
	switch status {
	case "active":
		return pl.theme.PresenceActive
	case "idle":
		return pl.theme.PresenceIdle
	default:
		return pl.theme.PresenceOffline
	}
}

// Glyph is the status dot drawn next to a user.
func Glyph(status string) string {
	switch status {
	case "active":
		return "●"
	case "idle":
		return "◐"
	default:
		return "○"
	}
}

// LastSeen renders how long ago an offline user was active.
func LastSeen(u api.PresenceEntry, now time.Time) string {
	if u.Status != "offline" || u.LastActive == 0 {
		return ""
	}
	d := now.Sub(time.Unix(u.LastActive, 0))
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
