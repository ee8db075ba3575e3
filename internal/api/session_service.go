package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/store"
	"github.com/matheus3301/zpp/internal/unsent"
)

// QueueSource exposes the registered event queue id.
type QueueSource interface {
	QueueID() string
}

// SessionInfo identifies the daemon's session.
type SessionInfo struct {
	Name  string
	Realm string
	Email string
}

// SessionService implements SessionServer.
type SessionService struct {
	info      SessionInfo
	startedAt time.Time
	machine   *status.Machine
	queue     QueueSource
	people    *people.Registry
	echo      *echo.Coordinator
	unsent    *unsent.Queue
	db        *store.DB
	bus       *bus.Bus
}

// SessionDeps are the collaborators of SessionService. Only Machine is required.
type SessionDeps struct {
	Machine *status.Machine
	Queue   QueueSource
	People  *people.Registry
	Echo    *echo.Coordinator
	Unsent  *unsent.Queue
	DB      *store.DB
	Bus     *bus.Bus
}

func NewSessionService(info SessionInfo, d SessionDeps) *SessionService {
	return &SessionService{
		info:      info,
		startedAt: time.Now(),
		machine:   d.Machine,
		queue:     d.Queue,
		people:    d.People,
		echo:      d.Echo,
		unsent:    d.Unsent,
		db:        d.DB,
		bus:       d.Bus,
	}
}

func (s *SessionService) Status(_ context.Context, _ *Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Session:     s.info.Name,
		Realm:       s.info.Realm,
		Email:       s.info.Email,
		Status:      string(s.machine.Current()),
		SinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
	}
	if s.queue != nil {
		resp.QueueID = s.queue.QueueID()
	}
	if s.people != nil {
		resp.Users = s.people.Len()
	}
	if s.echo != nil {
		resp.PendingSends = len(s.echo.Pending())
	}
	if s.unsent != nil {
		if b := s.unsent.Banner(); b.Visible {
			resp.Unsent = b.Remaining + 1
		}
	}
	if s.db != nil {
		if n, err := s.db.MessageCount(); err == nil {
			resp.MessageCount = n
		}
	}
	return resp, nil
}

// Watch streams bus events until the client goes away.
func (s *SessionService) Watch(req *WatchRequest, stream EventStream) error {
	if s.bus == nil {
		<-stream.Context().Done()
		return nil
	}
	ch, unsub := s.bus.Subscribe("", 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !wanted(req.Namespaces, evt.Kind) {
				continue
			}
			if err := stream.Send(toEvent(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func wanted(namespaces []string, kind string) bool {
	if len(namespaces) == 0 {
		return true
	}
	for _, ns := range namespaces {
		if strings.HasPrefix(kind, ns) {
			return true
		}
	}
	return false
}

func toEvent(evt bus.Event) *Event {
	e := &Event{
		ID:               uuid.NewString(),
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		if raw, err := json.Marshal(evt.Payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}
