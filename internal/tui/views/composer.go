package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the compose box: a recipient row and a multi-line content
// area. Edits are reported through the change callback once focus leaves
// a field or before sending.
type Composer struct {
	*tview.Flex
	theme *ui.Theme

	stream    *tview.InputField
	topic     *tview.InputField
	recipient *tview.InputField
	content   *tview.TextArea
	header    *tview.Flex

	kind       message.Type
	applied    compose.State
	enterSends bool

	onSend   func(*api.UpdateRequest)
	onChange func(*api.UpdateRequest)
}

// NewComposer creates an empty, closed compose box.
func NewComposer(theme *ui.Theme) *Composer {
	field := func(label string) *tview.InputField {
		f := tview.NewInputField().SetLabel(label).SetFieldWidth(0)
		f.SetFieldBackgroundColor(theme.BgColor)
		f.SetLabelColor(theme.MenuKeyColor)
		f.SetBackgroundColor(theme.BgColor)
		return f
	}
	c := &Composer{
		theme:      theme,
		stream:     field(" # "),
		topic:      field(" > "),
		recipient:  field(" To: "),
		content:    tview.NewTextArea().SetPlaceholder("Compose your message here..."),
		header:     tview.NewFlex(),
		enterSends: true,
	}
	c.content.SetBackgroundColor(theme.BgColor)

	c.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.header, 1, 0, false).
		AddItem(c.content, 0, 1, false)
	c.SetBorder(true).SetTitle(" Compose ")
	c.SetBorderColor(theme.BorderColor)
	c.SetBackgroundColor(theme.BgColor)
	c.setKind(message.Stream)

	for _, f := range []*tview.InputField{c.stream, c.topic, c.recipient} {
		f.SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter || key == tcell.KeyTab {
				c.Flush()
			}
		})
	}
	c.content.SetInputCapture(c.captureContent)
	return c
}

// SetOnSend sets the callback fired by the send key. It receives the edits
// not yet reported through the change callback, or nil.
func (c *Composer) SetOnSend(fn func(*api.UpdateRequest)) {
	c.onSend = fn
}

// SetOnChange sets the callback receiving local edits.
func (c *Composer) SetOnChange(fn func(*api.UpdateRequest)) {
	c.onChange = fn
}

// SetEnterSends picks whether Enter sends or inserts a newline. The other
// behavior moves to Alt+Enter.
func (c *Composer) SetEnterSends(v bool) {
	c.enterSends = v
}

// Content returns the primitive that takes focus when composing.
func (c *Composer) Content() tview.Primitive {
	return c.content
}

func (c *Composer) captureContent(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlS {
		c.Submit()
		return nil
	}
	if ev.Key() != tcell.KeyEnter {
		return ev
	}
	alt := ev.Modifiers()&tcell.ModAlt != 0
	if alt == c.enterSends {
		// Newline: hand the TextArea a plain Enter.
		return tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	}
	c.Submit()
	return nil
}

// Submit fires the send callback with the pending edits.
func (c *Composer) Submit() {
	if c.onSend != nil {
		c.onSend(c.Draft())
	}
}

// Draft returns the fields that differ from the last state applied from
// the daemon, or nil when nothing changed.
func (c *Composer) Draft() *api.UpdateRequest {
	req := &api.UpdateRequest{}
	changed := false
	set := func(dst **string, now, before string) {
		if now != before {
			v := now
			*dst = &v
			changed = true
		}
	}
	if c.kind == message.Stream {
		set(&req.Stream, c.stream.GetText(), c.applied.StreamName)
		set(&req.Topic, c.topic.GetText(), c.applied.Topic)
	} else {
		set(&req.PrivateRecipient, c.recipient.GetText(), c.applied.PrivateRecipient)
	}
	set(&req.Content, c.content.GetText(), c.applied.Content)
	if !changed {
		return nil
	}
	return req
}

// Flush reports pending edits through the change callback.
func (c *Composer) Flush() {
	req := c.Draft()
	if req == nil || c.onChange == nil {
		return
	}
	c.onChange(req)
}

// Update shows the daemon's view of the draft. Fields are only overwritten
// when the daemon state moved since the last update, so typing is kept.
func (c *Composer) Update(v *api.ComposeView) {
	if v == nil || !v.Open {
		c.applied = compose.State{}
		c.stream.SetText("")
		c.topic.SetText("")
		c.recipient.SetText("")
		c.content.SetText("", false)
		c.SetTitle(" Compose (closed) ")
		return
	}
	st := v.State
	c.setKind(st.Type)
	if st.StreamName != c.applied.StreamName {
		c.stream.SetText(st.StreamName)
	}
	if st.Topic != c.applied.Topic {
		c.topic.SetText(st.Topic)
	}
	if st.PrivateRecipient != c.applied.PrivateRecipient {
		c.recipient.SetText(st.PrivateRecipient)
	}
	if st.Content != c.applied.Content {
		c.content.SetText(st.Content, true)
	}
	c.applied = st

	title := " Compose "
	if v.Status == "sending" {
		title = " Compose (sending...) "
	} else if !v.Banners.SendEnabled {
		title = " Compose (send disabled) "
	}
	c.SetTitle(title)
}

func (c *Composer) setKind(t message.Type) {
	if t == c.kind && c.header.GetItemCount() > 0 {
		return
	}
	c.kind = t
	c.header.Clear()
	if t == message.Private {
		c.header.AddItem(c.recipient, 0, 1, false)
		return
	}
	c.header.AddItem(c.stream, 0, 1, false).AddItem(c.topic, 0, 2, false)
}
