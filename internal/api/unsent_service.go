package api

import (
	"context"
	"errors"

	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/unsent"
)

// UnsentService implements UnsentServer.
type UnsentService struct {
	queue   *unsent.Queue
	actions *compose.Actions
}

func NewUnsentService(queue *unsent.Queue, actions *compose.Actions) *UnsentService {
	return &UnsentService{queue: queue, actions: actions}
}

func (s *UnsentService) List(_ context.Context, _ *Empty) (*UnsentView, error) {
	return unsentView(s.queue.Banner()), nil
}

func (s *UnsentService) Confirm(ctx context.Context, _ *Empty) (*SendResponse, error) {
	out, err := s.queue.Confirm(ctx)
	if errors.Is(err, unsent.ErrNothingOnOffer) {
		return nil, toStatus("confirm", err)
	}
	resp := sendResponse(out, err)
	resp.View = composeView(s.actions)
	resp.View.Unsent = unsentView(s.queue.Banner())
	return resp, nil
}

func (s *UnsentService) Cancel(_ context.Context, _ *Empty) (*UnsentView, error) {
	if err := s.queue.Cancel(); err != nil {
		return nil, toStatus("cancel", err)
	}
	return unsentView(s.queue.Banner()), nil
}
