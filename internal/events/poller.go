// Package events keeps a Zulip event queue registered and feeds its events
// into the local models.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/zap"
)

// EventTypes are the event types the poller registers for.
var EventTypes = []string{"message", "presence", "subscription", "realm_user"}

// Client is the REST surface the poller uses.
type Client interface {
	Register(ctx context.Context, eventTypes []string) (*zulip.RegisterResponse, error)
	GetEvents(ctx context.Context, queueID string, lastEventID int64) ([]zulip.Event, error)
	DeleteQueue(ctx context.Context, queueID string) error
}

// Models are the local stores events are applied to.
type Models struct {
	People   *people.Registry
	Streams  *streams.Registry
	Presence *presence.Model
	Echo     Echo
}

// Backoff bounds the retry delay after transient errors.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff is used when Poller.Backoff is zero.
var DefaultBackoff = Backoff{Min: time.Second, Max: time.Minute}

// Poller registers an event queue and long-polls it.
type Poller struct {
	client  Client
	models  Models
	machine *status.Machine
	pub     bus.Publisher
	logger  *zap.Logger
	backoff Backoff

	mu          sync.Mutex
	base        context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	queueID     string
	lastEventID int64
	halted      bool
	onRegister  []func(*zulip.RegisterResponse)
}

// NewPoller creates a stopped poller.
func NewPoller(client Client, models Models, machine *status.Machine, pub bus.Publisher, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if machine == nil {
		machine = status.NewMachine(pub)
	}
	return &Poller{
		client:  client,
		models:  models,
		machine: machine,
		pub:     pub,
		logger:  logger,
		backoff: DefaultBackoff,
	}
}

// SetBackoff overrides the retry delays.
func (p *Poller) SetBackoff(b Backoff) {
	p.mu.Lock()
	p.backoff = b
	p.mu.Unlock()
}

// OnRegister adds a callback run after every successful registration.
func (p *Poller) OnRegister(fn func(*zulip.RegisterResponse)) {
	p.mu.Lock()
	p.onRegister = append(p.onRegister, fn)
	p.mu.Unlock()
}

// Machine exposes the connection state.
func (p *Poller) Machine() *status.Machine { return p.machine }

// QueueID returns the registered queue id, "" when not registered.
func (p *Poller) QueueID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueID
}

// Register creates a new event queue and loads the initial state into the models.
func (p *Poller) Register(ctx context.Context) error {
	if err := p.machine.Transition(status.Registering); err != nil {
		p.logger.Debug("register from unexpected state", zap.Error(err))
	}
	resp, err := p.client.Register(ctx, EventTypes)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	p.load(resp)

	p.mu.Lock()
	p.queueID = resp.QueueID
	p.lastEventID = resp.LastEventID
	hooks := append([]func(*zulip.RegisterResponse){}, p.onRegister...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(resp)
	}
	p.logger.Info("event queue registered", zap.String("queue_id", resp.QueueID), zap.Int64("last_event_id", resp.LastEventID))
	p.emit(bus.EventsConnected, resp.QueueID)
	return nil
}

func (p *Poller) load(resp *zulip.RegisterResponse) {
	m := p.models
	if m.People != nil {
		for _, u := range resp.RealmUsers {
			m.People.Add(people.FromWire(u))
		}
		m.People.SetMe(resp.UserID)
	}
	if m.Streams != nil {
		for _, s := range resp.Subscriptions {
			m.Streams.Add(streams.FromWire(s))
		}
	}
	if m.Presence != nil {
		m.Presence.SetOfflineThreshold(resp.OfflineThreshold)
		m.Presence.SetInfo(presence.ParseKeyed(resp.Presences), int64(resp.ServerTimestamp), resp.PresenceLastUpdateID)
	}
	if m.Echo != nil {
		m.Echo.ObserveMessageID(resp.MaxMessageID)
	}
}

// Start launches the polling loop. It is a no-op when already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.base = ctx
	p.halted = false
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	go func() {
		defer close(done)
		p.loop(loopCtx)
		p.mu.Lock()
		if p.done == done {
			p.done = nil
			p.cancel = nil
		}
		p.mu.Unlock()
	}()
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// EnsureRunning restarts the loop if it died, e.g. after a fatal error. A
// poller stopped with Stop stays stopped.
func (p *Poller) EnsureRunning() {
	p.mu.Lock()
	base := p.base
	running := p.done != nil
	halted := p.halted
	p.mu.Unlock()
	if running || halted || base == nil || base.Err() != nil {
		return
	}
	p.logger.Info("restarting event queue")
	p.Start(base)
}

// Stop ends the loop, waits for it and releases the server-side queue.
func (p *Poller) Stop(ctx context.Context) {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.halted = true
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	queueID := p.queueID
	p.queueID = ""
	p.mu.Unlock()
	if queueID != "" {
		if err := p.client.DeleteQueue(ctx, queueID); err != nil {
			p.logger.Debug("failed to delete event queue", zap.Error(err))
		}
	}
	_ = p.machine.Transition(status.Stopped)
}

func (p *Poller) loop(ctx context.Context) {
	p.mu.Lock()
	bo := p.backoff
	p.mu.Unlock()
	delay := bo.Min

	if p.machine.Is(status.Error, status.Stopped) {
		p.mu.Lock()
		p.queueID = ""
		p.mu.Unlock()
	}

	for ctx.Err() == nil {
		if p.QueueID() == "" {
			if err := p.Register(ctx); err != nil {
				if !p.retryable(ctx, err) {
					return
				}
				p.sleep(ctx, &delay, bo)
				continue
			}
		}

		p.mu.Lock()
		queueID, last := p.queueID, p.lastEventID
		p.mu.Unlock()

		_ = p.machine.Transition(status.Polling)
		evts, err := p.client.GetEvents(ctx, queueID, last)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if zulip.IsCode(err, zulip.CodeBadEventQueueID) {
				p.logger.Info("event queue expired, re-registering", zap.String("queue_id", queueID))
				p.mu.Lock()
				p.queueID = ""
				p.mu.Unlock()
				p.emit(bus.EventsDisconnected, queueID)
				continue
			}
			if !p.retryable(ctx, err) {
				return
			}
			p.sleep(ctx, &delay, bo)
			continue
		}
		delay = bo.Min

		for _, evt := range evts {
			p.dispatch(evt)
			p.mu.Lock()
			if evt.ID > p.lastEventID {
				p.lastEventID = evt.ID
			}
			p.mu.Unlock()
		}
	}
}

// retryable moves to RECONNECTING for transient errors and to ERROR otherwise.
func (p *Poller) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if zulip.IsTransient(err) {
		p.logger.Warn("event queue error, retrying", zap.Error(err))
		_ = p.machine.Transition(status.Reconnecting)
		return true
	}
	p.logger.Error("event queue failed", zap.Error(err))
	_ = p.machine.Transition(status.Error)
	p.emit(bus.EventsDisconnected, err.Error())
	return false
}

func (p *Poller) sleep(ctx context.Context, delay *time.Duration, bo Backoff) {
	t := time.NewTimer(*delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	*delay = min(*delay*2, bo.Max)
}

func (p *Poller) emit(kind string, payload any) {
	if p.pub != nil {
		p.pub.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	}
}
