package outbox

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/store"
	"go.uber.org/zap"
)

// mockClient records calls and returns configurable results.
type mockClient struct {
	mu     sync.Mutex
	forms  []url.Values
	err    error
	nextID int64
	// during runs inside SendMessage, before the reply.
	during func()
}

func (m *mockClient) SendMessage(_ context.Context, form url.Values) (int64, error) {
	m.mu.Lock()
	m.forms = append(m.forms, form)
	m.mu.Unlock()
	if m.during != nil {
		m.during()
	}
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	return m.nextID, nil
}

type liveness struct{ kicks int }

func (l *liveness) EnsureRunning() { l.kicks++ }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tracked(t *testing.T, c *echo.Coordinator, content string) *message.Outbound {
	t.Helper()
	msg := &message.Outbound{Type: message.Stream, Content: content, Stream: "general", Topic: "t", QueueID: "q"}
	c.TryLocallyEcho(msg)
	if err := c.Track(msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestSendReifiesAndKicksPoller(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	ch, unsub := b.Subscribe("message.reified", 10)
	defer unsub()

	coord := echo.NewCoordinator(db, nil, b, zap.NewNop())
	coord.ObserveMessageID(41)
	client := &mockClient{nextID: 41}
	live := &liveness{}
	s := NewSender(client, coord, live, zap.NewNop())

	msg := tracked(t, coord, "hello")
	var during *store.Message
	client.during = func() { during, _ = db.GetMessage(msg.LocalID.String()) }

	id, err := s.Send(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Errorf("server id = %d, want 42", id)
	}
	if during == nil || during.Status != store.StatusSending {
		t.Errorf("row during send = %+v, want status sending", during)
	}

	form := client.forms[0]
	if got := form.Get("to"); got != `["general"]` {
		t.Errorf("to = %q", got)
	}
	if form.Get("local_id") != "41.01" || form.Get("queue_id") != "q" {
		t.Errorf("local_id/queue_id = %q/%q", form.Get("local_id"), form.Get("queue_id"))
	}

	row, err := db.GetMessage(msg.LocalID.String())
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != store.StatusSent || row.ServerID != 42 {
		t.Errorf("row = %s/%d, want sent/42", row.Status, row.ServerID)
	}
	if live.kicks != 1 {
		t.Errorf("EnsureRunning calls = %d, want 1", live.kicks)
	}
	if evt := <-ch; evt.Kind != bus.MessageReified {
		t.Errorf("event kind = %q", evt.Kind)
	}
}

// TestFastErrorFindsTrackedEntry verifies bookkeeping is in place before the
// request leaves: an immediate error still resolves to a tracked entry.
func TestFastErrorFindsTrackedEntry(t *testing.T) {
	db := testDB(t)
	coord := echo.NewCoordinator(db, nil, nil, nil)
	live := &liveness{}
	s := NewSender(&mockClient{err: errors.New("connection refused")}, coord, live, nil)

	msg := tracked(t, coord, "hello")
	if _, err := s.Send(context.Background(), msg); err == nil {
		t.Fatal("Send should fail")
	}

	e, ok := coord.Entry(msg.LocalID)
	if !ok {
		t.Fatal("entry missing")
	}
	if e.State != echo.EchoFailed {
		t.Errorf("state = %s, want %s", e.State, echo.EchoFailed)
	}
	row, _ := db.GetMessage(msg.LocalID.String())
	if row.Status != store.StatusFailed {
		t.Errorf("row status = %q, want failed", row.Status)
	}
	if live.kicks != 0 {
		t.Errorf("EnsureRunning calls = %d, want 0 after failure", live.kicks)
	}
}

func TestTrackedOnlyFailureLeavesNoRow(t *testing.T) {
	db := testDB(t)
	coord := echo.NewCoordinator(db, nil, nil, nil)
	s := NewSender(&mockClient{err: errors.New("boom")}, coord, nil, nil)

	msg := tracked(t, coord, "/poll lunch?")
	if msg.LocallyEchoed {
		t.Fatal("poll should not be echoed")
	}
	if _, err := s.Send(context.Background(), msg); err == nil {
		t.Fatal("Send should fail")
	}
	e, _ := coord.Entry(msg.LocalID)
	if e.State != echo.Failed {
		t.Errorf("state = %s, want %s", e.State, echo.Failed)
	}
	if n, _ := db.MessageCount(); n != 0 {
		t.Errorf("message rows = %d, want 0", n)
	}
}

func TestResendAfterFailure(t *testing.T) {
	db := testDB(t)
	coord := echo.NewCoordinator(db, nil, nil, nil)
	client := &mockClient{err: errors.New("timeout")}
	s := NewSender(client, coord, nil, nil)

	msg := tracked(t, coord, "again")
	if _, err := s.Send(context.Background(), msg); err == nil {
		t.Fatal("first send should fail")
	}

	client.err = nil
	if _, err := s.Resend(context.Background(), msg.LocalID); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	e, _ := coord.Entry(msg.LocalID)
	if e.State != echo.Reified {
		t.Errorf("state = %s, want %s", e.State, echo.Reified)
	}
	if len(client.forms) != 2 || client.forms[1].Get("local_id") != msg.LocalID.String() {
		t.Errorf("resend should reuse the local id, forms = %v", client.forms)
	}

	if _, err := s.Resend(context.Background(), msg.LocalID); err == nil {
		t.Error("resending a reified message should fail")
	}
}

func TestSerializeErrorFails(t *testing.T) {
	coord := echo.NewCoordinator(testDB(t), nil, nil, nil)
	client := &mockClient{}
	s := NewSender(client, coord, nil, nil)

	msg := &message.Outbound{Type: message.Private, Content: "hi"}
	coord.TryLocallyEcho(msg)
	if err := coord.Track(msg); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(context.Background(), msg); err == nil {
		t.Fatal("Send should fail without recipients")
	}
	if len(client.forms) != 0 {
		t.Errorf("client called %d times, want 0", len(client.forms))
	}
}
