package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHintsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyCtrlC, Description: "^C:quit", Visible: true, Handler: func() {}})
	r.AddGlobal("help", &Action{Key: tcell.KeyF1, Description: "F1:help", Visible: true, Handler: func() {}})
	r.AddView("compose", "send", &Action{Key: tcell.KeyCtrlS, Description: "^S:send", Visible: true, Handler: func() {}})
	r.AddView("compose", "hidden", &Action{Key: tcell.KeyCtrlX, Handler: func() {}})

	got := r.Hints("compose")
	want := []string{"^S:send", "^C:quit", "F1:help"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Hints = %v, want %v", got, want)
	}
}

func TestHandleEventPrefersView(t *testing.T) {
	var hit string
	r := NewRegistry()
	r.AddGlobal("g", &Action{Key: tcell.KeyRune, Rune: 'x', Handler: func() { hit = "global" }})
	r.AddView("presence", "v", &Action{Key: tcell.KeyRune, Rune: 'x', Handler: func() { hit = "view" }})

	ev := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	if !r.HandleEvent("presence", ev) || hit != "view" {
		t.Fatalf("presence view: hit = %q", hit)
	}
	if !r.HandleEvent("compose", ev) || hit != "global" {
		t.Fatalf("compose view: hit = %q", hit)
	}
	if r.HandleEvent("compose", tcell.NewEventKey(tcell.KeyRune, 'y', tcell.ModNone)) {
		t.Fatal("unbound key should not match")
	}
}

func TestReplaceBinding(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyCtrlQ, Description: "old", Visible: true, Handler: func() {}})
	r.AddGlobal("quit", &Action{Key: tcell.KeyCtrlQ, Description: "new", Visible: true, Handler: func() { calls++ }})

	if got := r.Hints(""); len(got) != 1 || got[0] != "new" {
		t.Fatalf("Hints = %v", got)
	}
	r.HandleEvent("", tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl))
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestModifierMustMatch(t *testing.T) {
	a := &Action{Key: tcell.KeyEnter, Mod: tcell.ModAlt}
	if a.Matches(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) {
		t.Fatal("plain enter matched alt binding")
	}
	if !a.Matches(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModAlt)) {
		t.Fatal("alt+enter did not match")
	}
}
