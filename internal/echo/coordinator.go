// Package echo coordinates optimistic local rendering of outgoing messages
// and reconciles each one with the server's answer.
package echo

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/store"
	"go.uber.org/zap"
)

// ErrNotTracked is returned for a local id the coordinator has no record of.
var ErrNotTracked = errors.New("not tracked")

// maxSeq bounds the two-digit sequence appended to echoed ids.
const maxSeq = 99

// Store persists locally echoed messages.
type Store interface {
	InsertEcho(m *store.Message) error
	ResetEcho(localID string) error
	ReifyMessage(localID string, serverID int64) error
	MarkMessageFailed(localID, errMsg string) error
}

// Entry is the tracking record of one send attempt.
type Entry struct {
	LocalID   message.LocalID
	State     State
	ServerID  int64
	Error     string
	Message   message.Outbound
	UpdatedAt time.Time
}

// Reification is the payload of message.reified.
type Reification struct {
	LocalID  string
	ServerID int64
	Echoed   bool
}

// Failure is the payload of message.send_failed.
type Failure struct {
	LocalID string
	Echoed  bool
	Error   string
}

// Coordinator mints local ids, renders echoes into the store and keeps the
// tracking table that send callbacks and message events reconcile against.
type Coordinator struct {
	mu       sync.Mutex
	store    Store
	renderer Renderer
	pub      bus.Publisher
	logger   *zap.Logger

	maxID   int64
	seq     int
	nextLoc int64
	entries map[string]*Entry
}

// NewCoordinator creates a coordinator. A nil renderer uses MarkdownGate.
func NewCoordinator(st Store, renderer Renderer, pub bus.Publisher, logger *zap.Logger) *Coordinator {
	if renderer == nil {
		renderer = MarkdownGate{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:    st,
		renderer: renderer,
		pub:      pub,
		logger:   logger,
		nextLoc:  1,
		entries:  make(map[string]*Entry),
	}
}

// ObserveMessageID raises the base used for echoed ids.
func (c *Coordinator) ObserveMessageID(id int64) {
	c.mu.Lock()
	if id > c.maxID {
		c.maxID = id
		c.seq = 0
	}
	c.mu.Unlock()
}

// TryLocallyEcho assigns msg a local id. When the renderer accepts the
// content and an id is available, the message is written to the store as
// "sending" and msg.LocallyEchoed is set; otherwise a loc-<n> id is minted.
// Ids already stored by an earlier run are skipped.
func (c *Coordinator) TryLocallyEcho(msg *message.Outbound) message.LocalID {
	msg.LocallyEchoed = false
	for {
		c.mu.Lock()
		id, ok := c.mintEchoedLocked(msg.Content)
		c.mu.Unlock()
		if !ok {
			return c.trackOnly(msg)
		}

		err := c.store.InsertEcho(storeRow(msg, id))
		if errors.Is(err, store.ErrLocalIDTaken) {
			continue
		}
		if err != nil {
			c.logger.Warn("local echo failed, falling back to tracking", zap.Error(err), zap.String("local_id", id.String()))
			return c.trackOnly(msg)
		}
		msg.LocalID = id
		msg.LocallyEchoed = true
		c.emit(bus.MessageEchoed, map[string]string{"local_id": id.String(), "recipient": msg.Recipient()})
		return id
	}
}

func (c *Coordinator) trackOnly(msg *message.Outbound) message.LocalID {
	c.mu.Lock()
	id := message.TrackedOnly("loc-" + strconv.FormatInt(c.nextLoc, 10))
	c.nextLoc++
	c.mu.Unlock()
	msg.LocalID = id
	return id
}

func (c *Coordinator) mintEchoedLocked(content string) (message.LocalID, bool) {
	if !c.renderer.CanRender(content) {
		return message.LocalID{}, false
	}
	for c.seq < maxSeq {
		c.seq++
		id := message.Echoed(fmt.Sprintf("%d.%02d", c.maxID, c.seq))
		if _, taken := c.entries[id.String()]; !taken {
			return id, true
		}
	}
	return message.LocalID{}, false
}

// Restore loads echoed messages a previous run left failed into the
// tracking table, so they can be resent.
func (c *Coordinator) Restore(rows []store.Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, row := range rows {
		id, err := message.ParseLocalID(row.LocalKind, row.LocalID)
		if err != nil || !id.IsEchoed() || row.Status != store.StatusFailed {
			continue
		}
		if _, ok := c.entries[row.LocalID]; ok {
			continue
		}
		msg := message.Outbound{
			Type:          message.Type(row.MessageType),
			Content:       row.Content,
			LocalID:       id,
			LocallyEchoed: true,
		}
		if msg.Type == message.Stream {
			msg.Stream = row.Stream
			msg.Topic = row.Topic
		} else {
			msg.ReplyTo = row.Recipient
		}
		c.entries[row.LocalID] = &Entry{
			LocalID:   id,
			State:     EchoFailed,
			Error:     row.ErrorMessage,
			Message:   msg,
			UpdatedAt: time.UnixMilli(row.Timestamp),
		}
		n++
	}
	return n
}

// Track registers msg in the tracking table. It must be called before the
// message is dispatched so that a fast reply always finds its entry.
func (c *Coordinator) Track(msg *message.Outbound) error {
	if msg.LocalID.IsZero() {
		return fmt.Errorf("track: message has no local id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := msg.LocalID.String()
	if e, ok := c.entries[key]; ok && !e.State.Terminal() {
		return fmt.Errorf("track %s: already in flight", key)
	}
	to := TrackedOnly
	if msg.LocallyEchoed {
		to = LocallyEchoed
	}
	if err := transition(PendingLocal, to); err != nil {
		return err
	}
	c.entries[key] = &Entry{
		LocalID:   msg.LocalID,
		State:     to,
		Message:   *msg,
		UpdatedAt: time.Now(),
	}
	return nil
}

// Lookup resolves a local id string coming back from the server.
func (c *Coordinator) Lookup(value string) (message.LocalID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[value]
	if !ok {
		return message.LocalID{}, false
	}
	return e.LocalID, true
}

// Reify records the server id for a tracked send. Reifying an entry again
// with the same server id is a no-op, since both the send reply and the
// message event report it.
func (c *Coordinator) Reify(id message.LocalID, serverID int64) error {
	c.mu.Lock()
	e, ok := c.entries[id.String()]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("reify %s: %w", id, ErrNotTracked)
	}
	if e.State == Reified && e.ServerID == serverID {
		c.mu.Unlock()
		return nil
	}
	if err := transition(e.State, Reified); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("reify %s: %w", id, err)
	}
	e.State = Reified
	e.ServerID = serverID
	e.Error = ""
	e.UpdatedAt = time.Now()
	if serverID > c.maxID {
		c.maxID = serverID
		c.seq = 0
	}
	echoed := id.IsEchoed()
	c.mu.Unlock()

	if echoed {
		if err := c.store.ReifyMessage(id.String(), serverID); err != nil {
			c.logger.Error("failed to reify stored message", zap.Error(err), zap.String("local_id", id.String()))
		}
	}
	c.logger.Info("message reified", zap.String("local_id", id.String()), zap.Int64("server_id", serverID))
	c.emit(bus.MessageReified, Reification{LocalID: id.String(), ServerID: serverID, Echoed: echoed})
	return nil
}

// Fail records a send error. Echoed messages are flagged in place; tracked
// ones only change state, the caller reports the error in the compose box.
func (c *Coordinator) Fail(id message.LocalID, cause error) error {
	errMsg := "unknown error"
	if cause != nil {
		errMsg = cause.Error()
	}

	c.mu.Lock()
	e, ok := c.entries[id.String()]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("fail %s: %w", id, ErrNotTracked)
	}
	to := Failed
	if e.State == LocallyEchoed {
		to = EchoFailed
	}
	if err := transition(e.State, to); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("fail %s: %w", id, err)
	}
	e.State = to
	e.Error = errMsg
	e.UpdatedAt = time.Now()
	echoed := to == EchoFailed
	c.mu.Unlock()

	if echoed {
		if err := c.store.MarkMessageFailed(id.String(), errMsg); err != nil {
			c.logger.Error("failed to mark stored message failed", zap.Error(err), zap.String("local_id", id.String()))
		}
	}
	c.logger.Warn("message send failed", zap.String("local_id", id.String()), zap.String("error", errMsg))
	c.emit(bus.MessageSendFailed, Failure{LocalID: id.String(), Echoed: echoed, Error: errMsg})
	return nil
}

// Resend moves a failed echo back to LocallyEchoed and returns the message
// to dispatch again under the same local id.
func (c *Coordinator) Resend(id message.LocalID) (*message.Outbound, error) {
	c.mu.Lock()
	e, ok := c.entries[id.String()]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("resend %s: %w", id, ErrNotTracked)
	}
	if err := transition(e.State, LocallyEchoed); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("resend %s: %w", id, err)
	}
	e.State = LocallyEchoed
	e.Error = ""
	e.UpdatedAt = time.Now()
	msg := e.Message
	c.mu.Unlock()

	if err := c.store.ResetEcho(id.String()); err != nil {
		return nil, fmt.Errorf("resend %s: %w", id, err)
	}
	c.emit(bus.MessageEchoed, map[string]string{"local_id": id.String(), "recipient": msg.Recipient()})
	return &msg, nil
}

// Entry returns a copy of the tracking record for id.
func (c *Coordinator) Entry(id message.LocalID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id.String()]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Pending returns entries still waiting for a server answer, oldest first.
func (c *Coordinator) Pending() []Entry {
	c.mu.Lock()
	var out []Entry
	for _, e := range c.entries {
		if !e.State.Terminal() {
			out = append(out, *e)
		}
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}

// Forget drops a finished entry.
func (c *Coordinator) Forget(id message.LocalID) {
	c.mu.Lock()
	if e, ok := c.entries[id.String()]; ok && e.State.Terminal() {
		delete(c.entries, id.String())
	}
	c.mu.Unlock()
}

func (c *Coordinator) emit(kind string, payload any) {
	if c.pub != nil {
		c.pub.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	}
}

func storeRow(msg *message.Outbound, id message.LocalID) *store.Message {
	row := &store.Message{
		LocalID:     id.String(),
		LocalKind:   id.Kind().String(),
		MessageType: string(msg.Type),
		Content:     msg.Content,
		Status:      store.StatusSending,
		Timestamp:   time.Now().UnixMilli(),
	}
	if msg.Type == message.Stream {
		row.Stream = msg.Stream
		row.Topic = msg.Topic
	} else {
		row.Recipient = msg.ReplyTo
	}
	return row
}
