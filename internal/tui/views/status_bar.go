package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/rivo/tview"
)

// StatusBar is the one-line footer: session, connection state, pending
// sends and the clock.
type StatusBar struct {
	*tview.TextView
	session string
	status  *api.StatusResponse
}

// NewStatusBar creates a new status bar.
func NewStatusBar(session string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	sb := &StatusBar{TextView: tv, session: session}
	sb.render()
	return sb
}

// SetStatus updates the daemon status.
func (sb *StatusBar) SetStatus(st *api.StatusResponse) {
	sb.status = st
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state, pending, unsent := "CONNECTING", 0, 0
	if sb.status != nil {
		state, pending, unsent = sb.status.Status, sb.status.PendingSends, sb.status.Unsent
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(sb.session), stateColor(state))
	if pending > 0 {
		line += fmt.Sprintf(" | [yellow]%d sending[-]", pending)
	}
	if unsent > 0 {
		line += fmt.Sprintf(" | %d unsent", unsent)
	}
	line += " | " + time.Now().Format("15:04")
	_, _ = fmt.Fprint(sb, line)
}

func stateColor(state string) string {
	switch state {
	case "POLLING":
		return "[green]" + state + "[-]"
	case "RECONNECTING":
		return "[yellow]" + state + "[-]"
	case "ERROR":
		return "[red]" + state + "[-]"
	default:
		return state
	}
}
