package compose

import (
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
)

// Lifecycle notifies observers when the compose box opens, sends or closes.
// Subscribers run synchronously in registration order; the same transitions
// are published on the bus for asynchronous observers.
type Lifecycle struct {
	mu       sync.RWMutex
	onStart  []func(StartOpts)
	onFinish []func()
	onCancel []func()
	pub      bus.Publisher
}

// NewLifecycle creates a lifecycle publishing on pub, which may be nil.
func NewLifecycle(pub bus.Publisher) *Lifecycle {
	return &Lifecycle{pub: pub}
}

func (l *Lifecycle) OnStart(fn func(StartOpts)) {
	l.mu.Lock()
	l.onStart = append(l.onStart, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) OnFinish(fn func()) {
	l.mu.Lock()
	l.onFinish = append(l.onFinish, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) OnCancel(fn func()) {
	l.mu.Lock()
	l.onCancel = append(l.onCancel, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) started(opts StartOpts) {
	l.mu.RLock()
	subs := append([]func(StartOpts){}, l.onStart...)
	l.mu.RUnlock()
	for _, fn := range subs {
		fn(opts)
	}
	l.publish(bus.ComposeStarted, opts)
}

func (l *Lifecycle) finished() {
	l.mu.RLock()
	subs := append([]func(){}, l.onFinish...)
	l.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
	l.publish(bus.ComposeFinished, nil)
}

func (l *Lifecycle) canceled() {
	l.mu.RLock()
	subs := append([]func(){}, l.onCancel...)
	l.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
	l.publish(bus.ComposeCanceled, nil)
}

func (l *Lifecycle) publish(kind string, payload any) {
	if l.pub != nil {
		l.pub.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	}
}
