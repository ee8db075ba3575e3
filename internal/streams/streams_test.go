package streams

import (
	"testing"

	"github.com/matheus3301/zpp/internal/zulip"
	"github.com/stretchr/testify/require"
)

func TestFromWireCountsSubscribers(t *testing.T) {
	s := FromWire(zulip.Subscription{StreamID: 1, Name: "general", Subscribers: []int64{1, 2, 3}, StreamPostPolicy: zulip.PostPolicyAdmins})
	require.Equal(t, 3, s.SubscriberCount)
	require.Equal(t, PostAdminsOnly, s.PostPolicy)
	require.True(t, s.Subscribed)
}

func TestByNameIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Add(Sub{StreamID: 9, Name: "Design", Subscribed: true})

	s, ok := r.ByName("design")
	require.True(t, ok)
	require.Equal(t, int64(9), s.StreamID)

	_, ok = r.ByName("nope")
	require.False(t, ok)
}

func TestPeerChanges(t *testing.T) {
	r := NewRegistry()
	r.Add(FromWire(zulip.Subscription{StreamID: 1, Name: "general", Subscribers: []int64{1}}))

	r.AddPeers([]int64{1}, []int64{2, 3, 2})
	s, _ := r.ByID(1)
	require.Equal(t, 3, s.SubscriberCount)

	r.RemovePeers([]int64{1}, []int64{3, 99})
	s, _ = r.ByID(1)
	require.Equal(t, 2, s.SubscriberCount)
}

func TestRenameDropsOldName(t *testing.T) {
	r := NewRegistry()
	r.Add(Sub{StreamID: 1, Name: "old"})
	r.Add(Sub{StreamID: 1, Name: "new"})

	_, ok := r.ByName("old")
	require.False(t, ok)
	_, ok = r.ByName("new")
	require.True(t, ok)
}

func TestSubscribedSorted(t *testing.T) {
	r := NewRegistry()
	r.Add(Sub{StreamID: 1, Name: "zeta", Subscribed: true})
	r.Add(Sub{StreamID: 2, Name: "alpha", Subscribed: true})
	r.Add(Sub{StreamID: 3, Name: "hidden"})

	subs := r.Subscribed()
	require.Len(t, subs, 2)
	require.Equal(t, "alpha", subs[0].Name)

	r.MarkSubscribed(3, true)
	require.Len(t, r.Subscribed(), 3)
}
