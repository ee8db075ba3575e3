package events

import (
	"context"
	"time"

	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/zap"
)

// PresenceClient reports our presence and returns everyone else's.
type PresenceClient interface {
	UpdatePresence(ctx context.Context, u zulip.PresenceUpdate) (*zulip.PresenceResponse, error)
}

// Pinger sends a presence heartbeat on an interval and refreshes the
// presence model from each reply.
type Pinger struct {
	client   PresenceClient
	model    *presence.Model
	interval time.Duration
	share    bool
	logger   *zap.Logger
}

// NewPinger creates a pinger. With share false the heartbeat is ping-only,
// so the server does not mark us active.
func NewPinger(client PresenceClient, model *presence.Model, interval time.Duration, share bool, logger *zap.Logger) *Pinger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Pinger{client: client, model: model, interval: interval, share: share, logger: logger}
}

// Run pings immediately and then every interval until ctx is done.
func (p *Pinger) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if err := p.Ping(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("presence ping failed", zap.Error(err))
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

// Ping sends one heartbeat and applies the reply as a full snapshot.
func (p *Pinger) Ping(ctx context.Context) error {
	resp, err := p.client.UpdatePresence(ctx, zulip.PresenceUpdate{
		Status:   "active",
		PingOnly: !p.share,
	})
	if err != nil {
		return err
	}
	if p.share || len(resp.Presences) > 0 {
		p.model.SetInfo(presence.ParseKeyed(resp.Presences), int64(resp.ServerTimestamp), resp.PresenceLastUpdateID)
	}
	return nil
}
