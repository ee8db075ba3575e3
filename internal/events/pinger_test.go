package events

import (
	"context"
	"testing"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/zulip"
	"github.com/stretchr/testify/require"
)

type fakePresenceClient struct {
	updates []zulip.PresenceUpdate
	resp    *zulip.PresenceResponse
}

func (f *fakePresenceClient) UpdatePresence(_ context.Context, u zulip.PresenceUpdate) (*zulip.PresenceResponse, error) {
	f.updates = append(f.updates, u)
	return f.resp, nil
}

func TestPingRefreshesModel(t *testing.T) {
	model := presence.New(config.Presence{OfflineThresholdSeconds: 140, ShareEnabled: true}, nil, nil)
	client := &fakePresenceClient{resp: &zulip.PresenceResponse{
		ServerTimestamp:      2000,
		PresenceLastUpdateID: 9,
		Presences:            map[string]zulip.RawPresence{"4": {IdleTimestamp: 1990}},
	}}
	p := NewPinger(client, model, 0, true, nil)

	require.NoError(t, p.Ping(context.Background()))
	require.Equal(t, presence.Idle, model.GetStatus(4))
	require.Equal(t, int64(9), model.LastUpdateID())
	require.Equal(t, "active", client.updates[0].Status)
	require.False(t, client.updates[0].PingOnly)
}

func TestPingOnlyKeepsModel(t *testing.T) {
	model := presence.New(config.Presence{OfflineThresholdSeconds: 140}, nil, nil)
	model.SetInfo(map[int64]zulip.RawPresence{4: {ActiveTimestamp: 990}}, 1000, 3)
	client := &fakePresenceClient{resp: &zulip.PresenceResponse{ServerTimestamp: 1010}}
	p := NewPinger(client, model, 0, false, nil)

	require.NoError(t, p.Ping(context.Background()))
	require.True(t, client.updates[0].PingOnly)
	require.Equal(t, presence.Active, model.GetStatus(4))
	require.Equal(t, int64(3), model.LastUpdateID())
}
