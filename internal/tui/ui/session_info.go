package ui

import (
	"fmt"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/rivo/tview"
)

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the daemon status.
func (si *SessionInfo) Update(st *api.StatusResponse) {
	si.Clear()
	if st == nil {
		return
	}

	rows := [][2]string{
		{"Session", st.Session},
		{"Realm", orDash(st.Realm)},
		{"Email", orDash(st.Email)},
		{"Status", st.Status},
		{"Users", fmt.Sprint(st.Users)},
		{"Pending", fmt.Sprint(st.PendingSends)},
		{"Uptime", FormatDuration(time.Duration(st.UptimeMs) * time.Millisecond)},
	}
	fg, counter := Tag(si.theme.FgColor), Tag(si.theme.CounterColor)
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprintln(si)
		}
		_, _ = fmt.Fprintf(si, "[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r[0]+":", counter, tview.Escape(r[1]))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatDuration renders d as "1h2m" or "5m".
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
