package compose

import (
	"context"
	"sync"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/streams"
)

type fakeChecker struct {
	calls  []string
	result SubscribeResult
	err    error
}

func (f *fakeChecker) CheckAndSubscribe(_ context.Context, name string) (SubscribeResult, error) {
	f.calls = append(f.calls, name)
	return f.result, f.err
}

type fakeMirror struct{ down bool }

func (f fakeMirror) MirrorDown() bool { return f.down }

type fakeSender struct {
	mu   sync.Mutex
	sent []*message.Outbound
	id   int64
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *message.Outbound) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return 0, f.err
	}
	f.id++
	return f.id, nil
}

type fakeEcho struct {
	echo    bool
	tracked []message.LocalID
}

func (f *fakeEcho) TryLocallyEcho(msg *message.Outbound) message.LocalID {
	if f.echo {
		msg.LocalID = message.Echoed("1.01")
		msg.LocallyEchoed = true
	} else {
		msg.LocalID = message.TrackedOnly("loc-1")
	}
	return msg.LocalID
}

func (f *fakeEcho) Track(msg *message.Outbound) error {
	f.tracked = append(f.tracked, msg.LocalID)
	return nil
}

func testRealm() config.Realm {
	return config.Default().Realm
}

// fixture builds registries with alice, bob, an admin-only stream and two
// large streams.
func fixture() (*people.Registry, *streams.Registry) {
	ppl := people.NewRegistry()
	ppl.Add(people.User{ID: 1, Email: "me@x.com", IsActive: true})
	ppl.Add(people.User{ID: 10, Email: "a@x.com", IsActive: true})
	ppl.Add(people.User{ID: 20, Email: "b@x.com", IsActive: true})
	ppl.Add(people.User{ID: 30, Email: "gone@x.com", IsActive: false})
	ppl.SetMe(1)

	st := streams.NewRegistry()
	st.Add(streams.Sub{StreamID: 100, Name: "general", Subscribed: true, SubscriberCount: 50})
	st.Add(streams.Sub{StreamID: 101, Name: "small", Subscribed: true, SubscriberCount: 3})
	st.Add(streams.Sub{StreamID: 102, Name: "announce", Subscribed: true, SubscriberCount: 80})
	st.Add(streams.Sub{StreamID: 103, Name: "staff", Subscribed: true, SubscriberCount: 4, PostPolicy: streams.PostAdminsOnly})
	st.Add(streams.Sub{StreamID: 104, Name: "elsewhere", Subscribed: false, SubscriberCount: 9})
	return ppl, st
}

func streamDraft(stream, topic, content string) State {
	return State{Type: message.Stream, StreamName: stream, Topic: topic, Content: content}
}
