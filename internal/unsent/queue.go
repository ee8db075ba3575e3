// Package unsent persists drafts that never reached the server and replays
// them through the compose box one at a time.
package unsent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/compose"
	"go.uber.org/zap"
)

// Local storage location of the queue.
const (
	Key     = "unsent_messages"
	Version = 1
)

// ErrNothingOnOffer is returned by Confirm and Cancel when the queue is drained.
var ErrNothingOnOffer = errors.New("no unsent message on offer")

// Message is a persisted draft.
type Message struct {
	compose.State
	// CreatedAt is in unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// Storage is versioned key/value local storage.
type Storage interface {
	GetLocal(key string, version int, v any) (bool, error)
	SetLocal(key string, version int, v any) error
	RemoveLocal(key string) error
}

// Composer is the compose box the queue replays drafts into.
type Composer interface {
	Start(opts compose.StartOpts)
	Finish(ctx context.Context) (compose.Outcome, error)
	ClearContent()
}

// Banner is the confirmation banner state.
type Banner struct {
	Visible   bool
	Current   *Message
	Remaining int
}

// Queue drains persisted drafts oldest first. Only one draft is offered at a
// time and each one leaves the queue only through Confirm or Cancel.
type Queue struct {
	mu       sync.Mutex
	store    Storage
	composer Composer
	pub      bus.Publisher
	logger   *zap.Logger
	now      func() time.Time

	current *Message
	pending []Message
}

// New creates a queue. pub may be nil.
func New(store Storage, composer Composer, pub bus.Publisher, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, composer: composer, pub: pub, logger: logger, now: time.Now}
}

func (q *Queue) load() ([]Message, error) {
	var msgs []Message
	if _, err := q.store.GetLocal(Key, Version, &msgs); err != nil {
		return nil, fmt.Errorf("load unsent messages: %w", err)
	}
	return msgs, nil
}

// Store appends a draft to the persisted queue. Drafts without content are ignored.
func (q *Queue) Store(st compose.State) error {
	if !st.HasContent() {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs, err := q.load()
	if err != nil {
		return err
	}
	msgs = append(msgs, Message{State: st, CreatedAt: q.now().UnixMilli()})
	return q.store.SetLocal(Key, Version, msgs)
}

// Initialize loads the persisted drafts, clears the stored copy and opens
// the oldest one in the compose box.
func (q *Queue) Initialize() error {
	q.mu.Lock()
	msgs, err := q.load()
	if err != nil {
		q.mu.Unlock()
		return err
	}
	if err := q.store.RemoveLocal(Key); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("clear unsent messages: %w", err)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt < msgs[j].CreatedAt })
	q.current = nil
	q.pending = msgs
	q.mu.Unlock()

	if len(msgs) > 0 {
		q.logger.Info("restoring unsent messages", zap.Int("count", len(msgs)))
	}
	q.advance()
	return nil
}

// Confirm sends the draft on offer through the full compose pipeline. The
// queue advances once the message is handed off; a draft blocked by
// validation or rejected before echo stays on offer for editing.
func (q *Queue) Confirm(ctx context.Context) (compose.Outcome, error) {
	q.mu.Lock()
	cur := q.current
	q.mu.Unlock()
	if cur == nil {
		return compose.Outcome{}, ErrNothingOnOffer
	}

	out, err := q.composer.Finish(ctx)
	if out.Blocked || (err != nil && !out.Echoed) {
		return out, err
	}
	q.advanceFrom(cur)
	return out, err
}

// Cancel discards the content of the draft on offer and moves on.
func (q *Queue) Cancel() error {
	q.mu.Lock()
	cur := q.current
	q.mu.Unlock()
	if cur == nil {
		return ErrNothingOnOffer
	}
	q.composer.ClearContent()
	q.advanceFrom(cur)
	return nil
}

// Banner returns the confirmation banner state.
func (q *Queue) Banner() Banner {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Banner{}
	}
	cur := *q.current
	return Banner{Visible: true, Current: &cur, Remaining: len(q.pending)}
}

// Remaining counts drafts waiting behind the one on offer.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Persist writes every unresolved draft back to storage, along with the
// live compose draft. It is called on shutdown.
func (q *Queue) Persist(draft compose.State) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs, err := q.load()
	if err != nil {
		return err
	}
	switch {
	case draft.HasContent() && q.current != nil:
		msgs = append(msgs, Message{State: draft, CreatedAt: q.current.CreatedAt})
	case draft.HasContent():
		msgs = append(msgs, Message{State: draft, CreatedAt: q.now().UnixMilli()})
	case q.current != nil:
		msgs = append(msgs, *q.current)
	}
	msgs = append(msgs, q.pending...)
	if len(msgs) == 0 {
		return nil
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt < msgs[j].CreatedAt })
	return q.store.SetLocal(Key, Version, msgs)
}

func (q *Queue) advanceFrom(cur *Message) {
	q.mu.Lock()
	same := q.current == cur
	q.mu.Unlock()
	if same {
		q.advance()
	}
}

func (q *Queue) advance() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		had := q.current != nil
		q.current = nil
		q.mu.Unlock()
		if had {
			q.emit(bus.UnsentDismissed, nil)
		}
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &next
	remaining := len(q.pending)
	q.mu.Unlock()

	q.composer.Start(compose.StartFromState(next.State, "unsent"))
	q.emit(bus.UnsentShown, Banner{Visible: true, Current: &next, Remaining: remaining})
}

func (q *Queue) emit(kind string, payload any) {
	if q.pub != nil {
		q.pub.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	}
}
