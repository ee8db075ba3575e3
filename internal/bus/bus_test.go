package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("compose.", 10)
	defer unsub()

	b.Publish(Event{Kind: ComposeStarted, Timestamp: time.Now(), Payload: "stream"})

	select {
	case evt := <-ch:
		if evt.Kind != ComposeStarted {
			t.Errorf("got kind %q, want %s", evt.Kind, ComposeStarted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: ComposeCanceled})
	b.Publish(Event{Kind: MessageReified})

	select {
	case evt := <-ch:
		if evt.Kind != MessageReified {
			t.Errorf("got kind %q, want %s", evt.Kind, MessageReified)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure compose event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 10)
	unsub()
	// Second call is a no-op.
	unsub()

	b.Publish(Event{Kind: PresenceUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestEmitFillsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	defer unsub()

	b.Emit(UnsentShown, 2)
	evt := <-ch
	if evt.Timestamp.IsZero() {
		t.Error("Emit left a zero timestamp")
	}
	if evt.Namespace() != "unsent." {
		t.Errorf("Namespace() = %q, want unsent.", evt.Namespace())
	}
}
