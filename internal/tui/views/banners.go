package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rivo/tview"
)

// BannerView shows compose banners and the unsent-messages offer above the
// compose box.
type BannerView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewBannerView creates an empty banner area.
func NewBannerView(theme *ui.Theme) *BannerView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	tv.SetBackgroundColor(theme.BgColor)

	return &BannerView{TextView: tv, theme: theme}
}

// Update re-renders the banners for v.
func (bv *BannerView) Update(v *api.ComposeView) {
	_, _, width, _ := bv.GetInnerRect()
	bv.SetText(RenderBanners(v, bv.theme, width))
}

// Lines reports how many rows the current banners need.
func (bv *BannerView) Lines() int {
	text := bv.GetText(false)
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

// RenderBanners formats every visible banner as tview markup, wrapped to
// width columns. Empty when nothing is shown.
func RenderBanners(v *api.ComposeView, theme *ui.Theme, width int) string {
	if v == nil {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	var blocks []string
	add := func(color, text, hint string) {
		body := wordwrap.String(text, width)
		block := fmt.Sprintf("[%s]%s[-]", ui.Tag(bannerColor(theme, color)), tview.Escape(body))
		if hint != "" {
			block += fmt.Sprintf("\n[::d]%s[-:-:-]", tview.Escape(hint))
		}
		blocks = append(blocks, block)
	}

	b := v.Banners
	if b.Error != nil {
		add("err", b.Error.Text, "")
	}
	for _, w := range b.Wildcard {
		add("warn", fmt.Sprintf("Are you sure you want to mention all %d people in #%s?", w.SubscriberCount, w.StreamName), ":confirm to send anyway")
	}
	for _, w := range b.Announce {
		add("warn", fmt.Sprintf("#%s is an announcement stream with %d subscribers.", w.StreamName, w.SubscriberCount), ":confirm to send anyway")
	}
	if b.NotSubscribed != "" {
		hint := ""
		if b.CanSubscribe {
			hint = ":subscribe to join it"
		}
		add("info", fmt.Sprintf("You're not subscribed to #%s. You will not see new messages there.", b.NotSubscribed), hint)
	}
	if u := v.Unsent; u != nil && u.Visible {
		text := "You have an unsent message from a previous session."
		if u.Remaining > 0 {
			text = fmt.Sprintf("You have %d unsent messages from a previous session.", u.Remaining+1)
		}
		add("info", text, ":unsent send | :unsent discard")
	}
	return strings.Join(blocks, "\n")
}

func bannerColor(theme *ui.Theme, level string) tcell.Color {
	switch level {
	case "err":
		return theme.BannerErrColor
	case "warn":
		return theme.BannerWarnColor
	default:
		return theme.BannerInfoColor
	}
}
