package api

import (
	"context"
	"sort"

	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// PresenceService implements PresenceServer.
type PresenceService struct {
	model  *presence.Model
	people *people.Registry
}

func NewPresenceService(model *presence.Model, ppl *people.Registry) *PresenceService {
	return &PresenceService{model: model, people: ppl}
}

func (s *PresenceService) List(_ context.Context, _ *Empty) (*PresenceList, error) {
	ids := s.model.UserIDs()
	out := &PresenceList{Users: make([]PresenceEntry, 0, len(ids)), ServerTimestamp: s.model.ServerTimestamp()}
	for _, id := range ids {
		out.Users = append(out.Users, s.entry(id))
	}
	sort.SliceStable(out.Users, func(i, j int) bool {
		a, b := out.Users[i], out.Users[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		return a.FullName < b.FullName
	})
	return out, nil
}

func (s *PresenceService) Get(_ context.Context, req *GetPresenceRequest) (*PresenceEntry, error) {
	id := req.UserID
	if id == 0 && req.Email != "" {
		u, ok := s.people.ByEmail(req.Email)
		if !ok {
			return nil, grpcstatus.Errorf(codes.NotFound, "unknown user %s", req.Email)
		}
		id = u.ID
	}
	if id == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "user_id or email is required")
	}
	if _, ok := s.people.ByID(id); !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "unknown user %d", id)
	}
	e := s.entry(id)
	return &e, nil
}

func (s *PresenceService) entry(id int64) PresenceEntry {
	e := PresenceEntry{
		UserID:     id,
		Status:     string(s.model.GetStatus(id)),
		LastActive: s.model.LastActive(id),
	}
	if u, ok := s.people.ByID(id); ok {
		e.Email = u.Email
		e.FullName = u.FullName
	}
	return e
}

func statusRank(s string) int {
	switch presence.Status(s) {
	case presence.Active:
		return 0
	case presence.Idle:
		return 1
	default:
		return 2
	}
}
