package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
}

var helpSections = []struct {
	title string
	rows  [][2]string
}{
	{"Keys", [][2]string{
		{":", "Command prompt"},
		{"Tab", "Cycle focus: compose, users, messages"},
		{"Ctrl-S", "Send the draft"},
		{"Enter / Alt-Enter", "Send or newline (see compose.enter_sends)"},
		{"Esc", "Leave the compose box / close help"},
		{"Ctrl-C", "Quit"},
	}},
	{"Users", [][2]string{
		{"Enter", "Start a private message to the user"},
	}},
	{"Commands", [][2]string{
		{":stream <name> [> topic]", "Compose to a stream"},
		{":topic <topic>", "Change the topic"},
		{":pm <email>[,email...]", "Compose a private message"},
		{":send", "Send the draft"},
		{":confirm", "Send despite a wildcard or announce warning"},
		{":subscribe", "Join the stream the draft targets"},
		{":cancel", "Close the compose box"},
		{":upload <path>", "Attach a file"},
		{":unsent send | discard", "Act on a restored draft"},
		{":resend <local id>", "Retry a failed message"},
		{":help / :quit", "This help / exit"},
	}},
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	kc := ui.Tag(theme.MenuKeyColor)
	var b strings.Builder
	for _, sec := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, r := range sec.rows {
			fmt.Fprintf(&b, "  [%s]%-28s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	tv.SetText(b.String())
	return &HelpView{TextView: tv}
}
