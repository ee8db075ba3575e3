package compose

import (
	"context"

	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/zulip"
)

// SubscribeResult is the outcome of an auto-subscribe attempt.
type SubscribeResult int

const (
	NotSubscribed SubscribeResult = iota
	Subscribed
	DoesNotExist
)

// SubscriptionChecker subscribes the user to a stream they are viewing.
type SubscriptionChecker interface {
	CheckAndSubscribe(ctx context.Context, stream string) (SubscribeResult, error)
}

// SubscribeClient is the REST surface ServerSubscriber uses.
type SubscribeClient interface {
	StreamID(ctx context.Context, name string) (int64, error)
	Subscribe(ctx context.Context, names ...string) error
}

// StreamRegistry receives the new subscription.
type StreamRegistry interface {
	ByID(id int64) (streams.Sub, bool)
	Add(s streams.Sub)
	MarkSubscribed(streamID int64, subscribed bool)
}

// ServerSubscriber checks stream existence on the server and subscribes.
type ServerSubscriber struct {
	client   SubscribeClient
	registry StreamRegistry
}

func NewServerSubscriber(client SubscribeClient, registry StreamRegistry) *ServerSubscriber {
	return &ServerSubscriber{client: client, registry: registry}
}

func (s *ServerSubscriber) CheckAndSubscribe(ctx context.Context, name string) (SubscribeResult, error) {
	id, err := s.client.StreamID(ctx, name)
	if zulip.IsCode(err, zulip.CodeStreamNotExist) {
		return DoesNotExist, nil
	}
	if err != nil {
		return NotSubscribed, err
	}
	if err := s.client.Subscribe(ctx, name); err != nil {
		return NotSubscribed, err
	}
	if _, ok := s.registry.ByID(id); ok {
		s.registry.MarkSubscribed(id, true)
	} else {
		s.registry.Add(streams.Sub{StreamID: id, Name: name, Subscribed: true})
	}
	return Subscribed, nil
}
