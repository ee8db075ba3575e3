package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/zulip"
	"github.com/stretchr/testify/require"
)

type step struct {
	events []zulip.Event
	err    error
}

type fakeClient struct {
	mu        sync.Mutex
	registers int
	regErr    error
	steps     chan step
	deleted   []string
	lastSeen  []int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{steps: make(chan step, 16)}
}

func (f *fakeClient) Register(_ context.Context, types []string) (*zulip.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &zulip.RegisterResponse{
		QueueID:          "q" + string(rune('0'+f.registers)),
		LastEventID:      -1,
		UserID:           1,
		MaxMessageID:     500,
		ServerTimestamp:  1000,
		OfflineThreshold: 200,
		Presences:        map[string]zulip.RawPresence{"2": {ActiveTimestamp: 990}},
		RealmUsers: []zulip.User{
			{UserID: 1, Email: "me@x.com", IsActive: true},
			{UserID: 2, Email: "a@x.com", IsActive: true},
		},
		Subscriptions: []zulip.Subscription{{StreamID: 9, Name: "general", Subscribers: []int64{1, 2}}},
	}, nil
}

func (f *fakeClient) GetEvents(ctx context.Context, queueID string, last int64) ([]zulip.Event, error) {
	f.mu.Lock()
	f.lastSeen = append(f.lastSeen, last)
	f.mu.Unlock()
	select {
	case s := <-f.steps:
		return s.events, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeClient) DeleteQueue(_ context.Context, queueID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, queueID)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) lastPolled() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lastSeen) == 0 {
		return -2
	}
	return f.lastSeen[len(f.lastSeen)-1]
}

func (f *fakeClient) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}

type fakeEcho struct {
	mu      sync.Mutex
	maxID   int64
	known   map[string]message.LocalID
	reified map[string]int64
}

func (f *fakeEcho) ObserveMessageID(id int64) {
	f.mu.Lock()
	f.maxID = max(f.maxID, id)
	f.mu.Unlock()
}

func (f *fakeEcho) Lookup(v string) (message.LocalID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.known[v]
	return id, ok
}

func (f *fakeEcho) Reify(id message.LocalID, serverID int64) error {
	f.mu.Lock()
	f.reified[id.String()] = serverID
	f.mu.Unlock()
	return nil
}

func (f *fakeEcho) reifiedID(v string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reified[v]
}

func event(t *testing.T, js string) zulip.Event {
	t.Helper()
	var e zulip.Event
	require.NoError(t, json.Unmarshal([]byte(js), &e))
	return e
}

type harness struct {
	client *fakeClient
	poller *Poller
	models Models
	echo   *fakeEcho
}

func newHarness() *harness {
	ppl := people.NewRegistry()
	echo := &fakeEcho{known: map[string]message.LocalID{"500.01": message.Echoed("500.01")}, reified: map[string]int64{}}
	models := Models{
		People:   ppl,
		Streams:  streams.NewRegistry(),
		Presence: presence.New(config.Presence{OfflineThresholdSeconds: 60}, ppl, nil),
		Echo:     echo,
	}
	client := newFakeClient()
	p := NewPoller(client, models, nil, nil, nil)
	p.SetBackoff(Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond})
	return &harness{client: client, poller: p, models: models, echo: echo}
}

func TestRegisterLoadsModels(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.poller.Register(context.Background()))

	require.Equal(t, "q1", h.poller.QueueID())
	require.Equal(t, int64(1), h.models.People.MyUserID())
	_, ok := h.models.Streams.ByName("general")
	require.True(t, ok)
	require.Equal(t, presence.Active, h.models.Presence.GetStatus(2))
	require.Equal(t, int64(500), h.echo.maxID)
	require.Equal(t, status.Registering, h.poller.Machine().Current())
}

func TestDispatchAppliesEvents(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.steps <- step{events: []zulip.Event{
		event(t, `{"id":0,"type":"heartbeat"}`),
		event(t, `{"id":1,"type":"realm_user","op":"add","person":{"user_id":3,"email":"b@x.com","is_active":true}}`),
		event(t, `{"id":2,"type":"subscription","op":"peer_add","stream_ids":[9],"user_ids":[3]}`),
		event(t, `{"id":3,"type":"presence","user_id":3,"server_timestamp":1010,"presence":{"website":{"status":"idle","timestamp":1005}}}`),
		event(t, `{"id":4,"type":"message","local_message_id":"500.01","message":{"id":501,"sender_id":1,"content":"hi"}}`),
		event(t, `{"id":5,"type":"message","local_message_id":"500.01","message":{"id":502,"sender_id":2,"content":"spoof"}}`),
	}}

	h.poller.Start(ctx)
	require.Eventually(t, func() bool { return h.client.lastPolled() == 5 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int64(501), h.echo.reifiedID("500.01"))
	require.Equal(t, presence.Idle, h.models.Presence.GetStatus(3))
	require.True(t, h.poller.Running())
	require.Equal(t, status.Polling, h.poller.Machine().Current())

	_, ok := h.models.People.ByEmail("b@x.com")
	require.True(t, ok)
	sub, _ := h.models.Streams.ByID(9)
	require.Equal(t, 3, sub.SubscriberCount)

	h.poller.Stop(ctx)
	require.False(t, h.poller.Running())
	require.Equal(t, []string{"q1"}, h.client.deleted)
	require.Equal(t, status.Stopped, h.poller.Machine().Current())
	require.Equal(t, int64(-1), h.client.lastSeen[0])
}

func TestBadQueueReregisters(t *testing.T) {
	h := newHarness()
	h.client.steps <- step{err: &zulip.APIError{HTTPStatus: 400, Code: zulip.CodeBadEventQueueID, Msg: "Bad event queue id"}}

	h.poller.Start(context.Background())
	defer h.poller.Stop(context.Background())

	require.Eventually(t, func() bool { return h.client.registerCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.poller.QueueID() == "q2" }, time.Second, 5*time.Millisecond)
}

func TestTransientErrorsRetry(t *testing.T) {
	h := newHarness()
	h.client.steps <- step{err: errors.New("connection reset")}
	h.client.steps <- step{err: &zulip.APIError{HTTPStatus: 502, Msg: "bad gateway"}}
	h.client.steps <- step{events: []zulip.Event{event(t, `{"id":7,"type":"heartbeat"}`)}}

	h.poller.Start(context.Background())
	defer h.poller.Stop(context.Background())

	require.Eventually(t, func() bool {
		h.client.mu.Lock()
		defer h.client.mu.Unlock()
		n := len(h.client.lastSeen)
		return n >= 4 && h.client.lastSeen[n-1] == 7
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, h.client.registerCount())
	require.True(t, h.poller.Running())
}

func TestFatalErrorStopsAndEnsureRunningRestarts(t *testing.T) {
	h := newHarness()
	h.client.steps <- step{err: &zulip.APIError{HTTPStatus: 401, Code: zulip.CodeInvalidAPIKey, Msg: "Invalid API key"}}

	ctx := context.Background()
	h.poller.Start(ctx)
	require.Eventually(t, func() bool { return !h.poller.Running() }, time.Second, 5*time.Millisecond)
	require.Equal(t, status.Error, h.poller.Machine().Current())

	h.poller.EnsureRunning()
	require.True(t, h.poller.Running())
	require.Eventually(t, func() bool { return h.client.registerCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.poller.Machine().Current() == status.Polling }, time.Second, 5*time.Millisecond)

	h.poller.Stop(ctx)
	h.poller.EnsureRunning()
	require.False(t, h.poller.Running())
}
