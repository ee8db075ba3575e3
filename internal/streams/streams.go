// Package streams tracks stream metadata and the current user's subscriptions.
package streams

import (
	"sort"
	"strings"
	"sync"

	"github.com/matheus3301/zpp/internal/zulip"
)

// PostPolicy restricts who may post to a stream.
type PostPolicy int

const (
	PostEveryone PostPolicy = iota
	PostAdminsOnly
)

// Sub is a stream the client knows about.
type Sub struct {
	StreamID        int64
	Name            string
	Subscribed      bool
	SubscriberCount int
	PostPolicy      PostPolicy
	subscribers     map[int64]struct{}
}

// Registry is a concurrency-safe stream table keyed by id and folded name.
type Registry struct {
	mu     sync.RWMutex
	byID   map[int64]*Sub
	byName map[string]*Sub
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int64]*Sub),
		byName: make(map[string]*Sub),
	}
}

// FromWire converts a register subscription into a Sub marked subscribed.
func FromWire(s zulip.Subscription) Sub {
	sub := Sub{
		StreamID:        s.StreamID,
		Name:            s.Name,
		Subscribed:      true,
		SubscriberCount: s.SubscriberCount,
		subscribers:     make(map[int64]struct{}, len(s.Subscribers)),
	}
	if s.StreamPostPolicy == zulip.PostPolicyAdmins {
		sub.PostPolicy = PostAdminsOnly
	}
	for _, id := range s.Subscribers {
		sub.subscribers[id] = struct{}{}
	}
	if len(sub.subscribers) > sub.SubscriberCount {
		sub.SubscriberCount = len(sub.subscribers)
	}
	return sub
}

// Add inserts or replaces a stream.
func (r *Registry) Add(s Sub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.subscribers == nil {
		s.subscribers = make(map[int64]struct{})
	}
	if old, ok := r.byID[s.StreamID]; ok {
		delete(r.byName, fold(old.Name))
	}
	cp := s
	r.byID[s.StreamID] = &cp
	r.byName[fold(s.Name)] = &cp
}

// MarkSubscribed flips the current user's subscription flag.
func (r *Registry) MarkSubscribed(streamID int64, subscribed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[streamID]; ok {
		s.Subscribed = subscribed
	}
}

// AddPeers records new subscribers on the given streams.
func (r *Registry) AddPeers(streamIDs, userIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range streamIDs {
		s, ok := r.byID[sid]
		if !ok {
			continue
		}
		for _, uid := range userIDs {
			if _, dup := s.subscribers[uid]; !dup {
				s.subscribers[uid] = struct{}{}
				s.SubscriberCount++
			}
		}
	}
}

// RemovePeers drops subscribers from the given streams.
func (r *Registry) RemovePeers(streamIDs, userIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range streamIDs {
		s, ok := r.byID[sid]
		if !ok {
			continue
		}
		for _, uid := range userIDs {
			if _, has := s.subscribers[uid]; has {
				delete(s.subscribers, uid)
				s.SubscriberCount--
			}
		}
	}
}

// ByName returns the stream with the given name (case-insensitive).
func (r *Registry) ByName(name string) (Sub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[fold(name)]
	if !ok {
		return Sub{}, false
	}
	return *s, true
}

// ByID returns the stream with the given id.
func (r *Registry) ByID(id int64) (Sub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return Sub{}, false
	}
	return *s, true
}

// Subscribed lists the streams the current user is subscribed to, by name.
func (r *Registry) Subscribed() []Sub {
	r.mu.RLock()
	var out []Sub
	for _, s := range r.byID {
		if s.Subscribed {
			out = append(out, *s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
