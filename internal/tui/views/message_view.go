package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageView lists the messages sent from this client, locally echoed
// ones included.
type MessageView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Sent ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)

	return &MessageView{TextView: tv, theme: theme}
}

// Update refreshes the view. msgs come newest first.
func (mv *MessageView) Update(msgs []api.Message) {
	mv.Clear()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		_, _ = fmt.Fprintf(mv, "[\"%s\"]%s[\"\"]\n", m.LocalID, FormatMessage(m, mv.theme))
	}
	mv.ScrollToEnd()
}

// FormatMessage renders one message as tview markup.
func FormatMessage(m api.Message, theme *ui.Theme) string {
	where := "#" + m.Stream + " > " + m.Topic
	if m.Type == "private" {
		where = "PM " + m.Recipient
	}
	mark := ""
	switch m.Status {
	case "sending":
		mark = fmt.Sprintf(" [%s]sending...[-]", ui.Tag(theme.FlashWarnColor))
	case "failed":
		mark = fmt.Sprintf(" [%s]failed: %s (:resend %s)[-]", ui.Tag(theme.FlashErrColor), tview.Escape(m.Error), m.LocalID)
	}
	return fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n",
		cleanText(where), formatTimestamp(m.Timestamp), mark, cleanText(m.Content))
}

func formatTimestamp(sec int64) string {
	if sec == 0 {
		return ""
	}
	t := time.Unix(sec, 0)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
