package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Menu displays keyboard shortcut hints in a vertical list.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints of the form "key:description", one per line.
func (m *Menu) Update(hints []string) {
	m.Clear()
	keyColor := Tag(m.theme.MenuKeyColor)
	for _, h := range hints {
		i := strings.LastIndex(h, ":")
		if i < 0 {
			_, _ = fmt.Fprintln(m, tview.Escape(h))
			continue
		}
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s\n", keyColor, tview.Escape(h[:i]), tview.Escape(h[i+1:]))
	}
}
