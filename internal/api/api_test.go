package api

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/outbox"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/store"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/unsent"
	"github.com/matheus3301/zpp/internal/zulip"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type fakeMessages struct {
	mu    sync.Mutex
	forms []url.Values
	next  int64
	err   error
}

func (f *fakeMessages) SendMessage(_ context.Context, form url.Values) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form)
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return 1000 + f.next, nil
}

func (f *fakeMessages) RenderMessage(_ context.Context, content string) (string, error) {
	return "<p>" + content + "</p>", nil
}

func (f *fakeMessages) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type harness struct {
	client   *Client
	db       *store.DB
	bus      *bus.Bus
	machine  *status.Machine
	messages *fakeMessages
	presence *presence.Model
	actions  *compose.Actions
	queue    *unsent.Queue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	// Short path to stay under the unix socket length limit.
	dir, err := os.MkdirTemp("/tmp", "zpp-api-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "zpp.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ppl := people.NewRegistry()
	ppl.Add(people.User{ID: 1, Email: "me@x.com", FullName: "Me", IsActive: true})
	ppl.Add(people.User{ID: 10, Email: "alice@x.com", FullName: "Alice", IsActive: true})
	ppl.Add(people.User{ID: 20, Email: "bob@x.com", FullName: "Bob", IsActive: true})
	ppl.SetMe(1)
	strs := streams.NewRegistry()
	strs.Add(streams.Sub{StreamID: 100, Name: "general", Subscribed: true, SubscriberCount: 40})
	strs.Add(streams.Sub{StreamID: 101, Name: "small", Subscribed: true, SubscriberCount: 3})

	b := bus.New()
	realm := config.Default().Realm
	coord := echo.NewCoordinator(db, nil, b, nil)
	msgs := &fakeMessages{}
	sender := outbox.NewSender(msgs, coord, nil, nil)
	actions := compose.NewActions(compose.Deps{
		Lifecycle: compose.NewLifecycle(b),
		Validator: compose.NewValidator(realm, ppl, strs, nil, nil, nil),
		Builder:   compose.NewBuilder(realm, "https://zulip.example.com", ppl, strs),
		Echo:      coord,
		Sender:    sender,
		Self:      ppl,
	})
	queue := unsent.New(db, actions, b, nil)
	model := presence.New(config.Default().Presence, ppl, b)
	machine := status.NewMachine(b)

	srv := grpc.NewServer()
	Register(srv,
		NewComposeService(actions, queue, msgs),
		NewPresenceService(model, ppl),
		NewSessionService(SessionInfo{Name: "test", Realm: "https://zulip.example.com", Email: "me@x.com"}, SessionDeps{
			Machine: machine, People: ppl, Echo: coord, Unsent: queue, DB: db, Bus: b,
		}),
		NewMessageService(db, coord, sender),
		NewUnsentService(queue, actions),
	)
	socket := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", socket)
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial(socket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &harness{client: client, db: db, bus: b, machine: machine, messages: msgs, presence: model, actions: actions, queue: queue}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.machine.Transition(status.Registering))

	resp, err := h.client.Status(ctx(t))
	require.NoError(t, err)
	require.Equal(t, "test", resp.Session)
	require.Equal(t, string(status.Registering), resp.Status)
	require.Equal(t, 3, resp.Users)
	require.Zero(t, resp.MessageCount)
}

func TestSendEchoesAndReifies(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Send(ctx(t), &StartRequest{Stream: "general", Topic: "hi", Content: "hello"})
	require.NoError(t, err)
	require.True(t, resp.Sent)
	require.True(t, resp.Echoed)
	require.Equal(t, "0.01", resp.LocalID)
	require.Equal(t, int64(1001), resp.ServerID)
	require.False(t, resp.View.Open)

	list, err := h.client.Messages(ctx(t), 10)
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	require.Equal(t, store.StatusSent, list.Messages[0].Status)
	require.Equal(t, int64(1001), list.Messages[0].ServerID)

	form := h.messages.forms[0]
	require.Equal(t, "hello", form.Get("content"))
	require.Equal(t, "0.01", form.Get("local_id"))
}

func TestWildcardWarningThenConfirm(t *testing.T) {
	h := newHarness(t)

	view, err := h.client.StartCompose(ctx(t), &StartRequest{Stream: "general", Topic: "t"})
	require.NoError(t, err)
	require.True(t, view.Open)

	content := "@**all** standup"
	_, err = h.client.UpdateCompose(ctx(t), &UpdateRequest{Content: &content})
	require.NoError(t, err)

	resp, err := h.client.FinishCompose(ctx(t))
	require.NoError(t, err)
	require.True(t, resp.Blocked)
	require.Len(t, resp.View.Banners.Wildcard, 1)
	require.Equal(t, 40, resp.View.Banners.Wildcard[0].SubscriberCount)
	require.True(t, resp.View.Banners.SendEnabled)
	require.Empty(t, h.messages.forms)

	resp, err = h.client.ConfirmWildcard(ctx(t))
	require.NoError(t, err)
	require.True(t, resp.Sent)
	require.Empty(t, resp.View.Banners.Wildcard)
}

func TestInvalidRecipientBanner(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Send(ctx(t), &StartRequest{PrivateRecipient: "alice@x.com, nobody@x.com", Content: "hey"})
	require.NoError(t, err)
	require.True(t, resp.Blocked)
	require.NotNil(t, resp.View.Banners.Error)
	require.Equal(t, string(compose.ErrRecipient), resp.View.Banners.Error.Kind)
	require.Equal(t, []string{"nobody@x.com"}, resp.View.Banners.Error.Invalid)
	require.Equal(t, message.Private, resp.View.State.Type)

	_, err = h.client.Send(ctx(t), &StartRequest{Stream: "general", Content: "again"})
	require.Equal(t, codes.FailedPrecondition, code(err))

	_, err = h.client.StartCompose(ctx(t), &StartRequest{Type: "carrier-pigeon"})
	require.Equal(t, codes.InvalidArgument, code(err))
}

func TestSendFailureAndResend(t *testing.T) {
	h := newHarness(t)
	h.messages.fail(&zulip.APIError{HTTPStatus: 502, Msg: "bad gateway"})

	resp, err := h.client.Send(ctx(t), &StartRequest{Stream: "small", Topic: "t", Content: "first try"})
	require.NoError(t, err)
	require.True(t, resp.Echoed)
	require.False(t, resp.Sent)
	require.Equal(t, "bad gateway", resp.Error)

	list, err := h.client.Messages(ctx(t), 0)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, list.Messages[0].Status)

	h.messages.fail(nil)
	resp, err = h.client.Resend(ctx(t), list.Messages[0].LocalID)
	require.NoError(t, err)
	require.True(t, resp.Sent)

	_, err = h.client.Resend(ctx(t), list.Messages[0].LocalID)
	require.Equal(t, codes.FailedPrecondition, code(err))
	_, err = h.client.Resend(ctx(t), "9.99")
	require.Equal(t, codes.NotFound, code(err))
}

func TestPresence(t *testing.T) {
	h := newHarness(t)
	now := time.Now().Unix()
	h.presence.SetInfo(map[int64]zulip.RawPresence{
		10: {ActiveTimestamp: now - 10},
		20: {IdleTimestamp: now - 30},
	}, now, 7)

	list, err := h.client.Presence(ctx(t))
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	require.Equal(t, "Alice", list.Users[0].FullName)
	require.Equal(t, string(presence.Active), list.Users[0].Status)
	require.Equal(t, string(presence.Idle), list.Users[1].Status)

	entry, err := h.client.UserPresence(ctx(t), &GetPresenceRequest{Email: "BOB@x.com"})
	require.NoError(t, err)
	require.Equal(t, int64(20), entry.UserID)

	_, err = h.client.UserPresence(ctx(t), &GetPresenceRequest{Email: "ghost@x.com"})
	require.Equal(t, codes.NotFound, code(err))
	_, err = h.client.UserPresence(ctx(t), &GetPresenceRequest{})
	require.Equal(t, codes.InvalidArgument, code(err))
}

func TestUnsentConfirmAndCancel(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.queue.Store(compose.State{Type: message.Stream, StreamName: "small", Topic: "t", Content: "one"}))
	require.NoError(t, h.queue.Store(compose.State{Type: message.Stream, StreamName: "small", Topic: "t", Content: "two"}))
	require.NoError(t, h.queue.Initialize())

	view, err := h.client.Unsent(ctx(t))
	require.NoError(t, err)
	require.True(t, view.Visible)
	require.Equal(t, "one", view.Current.Content)
	require.Equal(t, 1, view.Remaining)

	resp, err := h.client.ConfirmUnsent(ctx(t))
	require.NoError(t, err)
	require.True(t, resp.Sent)
	require.Equal(t, "two", resp.View.Unsent.Current.Content)
	require.Equal(t, "two", resp.View.State.Content)

	view, err = h.client.CancelUnsent(ctx(t))
	require.NoError(t, err)
	require.False(t, view.Visible)

	_, err = h.client.CancelUnsent(ctx(t))
	require.Equal(t, codes.FailedPrecondition, code(err))
	require.Len(t, h.messages.forms, 1)
}

func TestWatchStreamsEvents(t *testing.T) {
	h := newHarness(t)
	c, cancel := context.WithCancel(ctx(t))
	defer cancel()

	got := make(chan *Event, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- h.client.Watch(c, []string{"events."}, func(e *Event) error {
			got <- e
			return nil
		})
	}()

	// The subscription is registered asynchronously; publish until one arrives.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	var evt *Event
	for evt == nil {
		select {
		case <-tick.C:
			h.bus.Emit(bus.MessageEchoed, nil)
			h.bus.Emit(bus.EventsConnected, map[string]string{"queue_id": "q1"})
		case evt = <-got:
		case <-deadline:
			t.Fatal("no event received")
		}
	}
	require.Equal(t, bus.EventsConnected, evt.Kind)
	require.JSONEq(t, `{"queue_id":"q1"}`, string(evt.Payload))
	require.NotEmpty(t, evt.ID)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return")
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Preview(ctx(t), "")
	require.Equal(t, codes.FailedPrecondition, code(err))

	resp, err := h.client.Preview(ctx(t), "/poll lunch?")
	require.NoError(t, err)
	require.Equal(t, "<p>/poll lunch?</p>", resp.Rendered)
	require.False(t, resp.LocalEcho)

	_, err = h.client.StartCompose(ctx(t), &StartRequest{Stream: "general", Topic: "t", Content: "**bold**"})
	require.NoError(t, err)
	resp, err = h.client.Preview(ctx(t), "")
	require.NoError(t, err)
	require.Equal(t, "<p>**bold**</p>", resp.Rendered)
	require.True(t, resp.LocalEcho)

	_, err = h.client.Preview(ctx(t), "   ")
	require.Equal(t, codes.InvalidArgument, code(err))
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{unsent.ErrNothingOnOffer, codes.FailedPrecondition},
		{&zulip.APIError{HTTPStatus: 401}, codes.Unauthenticated},
		{&zulip.APIError{HTTPStatus: 429, Code: zulip.CodeRateLimitHit}, codes.ResourceExhausted},
		{&zulip.APIError{HTTPStatus: 400, Code: zulip.CodeBadRequest}, codes.InvalidArgument},
		{&zulip.APIError{HTTPStatus: 503}, codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, codeOf(tc.err), "%v", tc.err)
	}
}
