package ui

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFlashExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("fresh model should be empty")
	}
	f.Info("sent")
	if m := f.Current(); m == nil || m.Text != "sent" || m.Level != FlashInfo {
		t.Fatalf("Current = %+v", m)
	}
	now = now.Add(6 * time.Second)
	if f.Current() != nil {
		t.Fatal("info flash should expire after 5s")
	}
}

func TestFlashErrUsesStatusMessage(t *testing.T) {
	f := NewFlashModel()
	f.Err(status.Error(codes.FailedPrecondition, "compose box is not open"))
	if m := f.Current(); m == nil || m.Text != "compose box is not open" || m.Level != FlashErr {
		t.Fatalf("Current = %+v", m)
	}
	f.Err(errors.New("dial: refused"))
	if m := f.Current(); m.Text != "dial: refused" {
		t.Fatalf("Current = %+v", m)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.remember("stream general")
	p.remember("send")
	p.remember("send")

	if len(p.history) != 2 {
		t.Fatalf("history = %v", p.history)
	}
	p.recall(-1)
	if p.GetText() != "send" {
		t.Fatalf("recall -1 = %q", p.GetText())
	}
	p.recall(-1)
	if p.GetText() != "stream general" {
		t.Fatalf("recall -2 = %q", p.GetText())
	}
	p.recall(-1)
	if p.GetText() != "stream general" {
		t.Fatal("recall past the start should stay put")
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Fatalf("recall to the end = %q", p.GetText())
	}
}

func TestFormatDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		90 * time.Second:            "1m",
		2*time.Hour + 5*time.Minute: "2h5m",
	} {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
