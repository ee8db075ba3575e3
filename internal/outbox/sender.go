package outbox

import (
	"context"
	"fmt"
	"net/url"

	"github.com/matheus3301/zpp/internal/message"
	"go.uber.org/zap"
)

// MessageClient posts a serialized message to the server.
type MessageClient interface {
	SendMessage(ctx context.Context, form url.Values) (int64, error)
}

// Reconciler settles a tracked send once the server answers.
type Reconciler interface {
	Reify(id message.LocalID, serverID int64) error
	Fail(id message.LocalID, cause error) error
	Resend(id message.LocalID) (*message.Outbound, error)
}

// Liveness restarts the event queue when it has stopped.
type Liveness interface {
	EnsureRunning()
}

// Sender serializes outgoing messages, posts them and reports the result
// back to the echo coordinator. A message POST cannot be canceled once sent;
// ctx only bounds the wait for the reply.
type Sender struct {
	client MessageClient
	echo   Reconciler
	live   Liveness
	logger *zap.Logger
}

// NewSender creates a sender. live may be nil.
func NewSender(client MessageClient, echo Reconciler, live Liveness, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		client: client,
		echo:   echo,
		live:   live,
		logger: logger,
	}
}

// Send posts msg, which must already be tracked. On success the entry is
// reified and the event queue is kicked, since a successful send proves the
// server is reachable.
func (s *Sender) Send(ctx context.Context, msg *message.Outbound) (int64, error) {
	form, err := msg.Form()
	if err != nil {
		s.fail(msg.LocalID, err)
		return 0, fmt.Errorf("serialize %s: %w", msg.LocalID, err)
	}

	serverID, err := s.client.SendMessage(ctx, form)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("local_id", msg.LocalID.String()))
		s.fail(msg.LocalID, err)
		return 0, fmt.Errorf("send %s: %w", msg.LocalID, err)
	}

	if err := s.echo.Reify(msg.LocalID, serverID); err != nil {
		s.logger.Warn("failed to reify message", zap.Error(err), zap.String("local_id", msg.LocalID.String()))
	}
	s.logger.Info("message sent", zap.String("local_id", msg.LocalID.String()), zap.Int64("server_id", serverID))
	if s.live != nil {
		s.live.EnsureRunning()
	}
	return serverID, nil
}

// Resend retries a failed echoed message under its original local id.
func (s *Sender) Resend(ctx context.Context, id message.LocalID) (int64, error) {
	msg, err := s.echo.Resend(id)
	if err != nil {
		return 0, err
	}
	return s.Send(ctx, msg)
}

func (s *Sender) fail(id message.LocalID, cause error) {
	if err := s.echo.Fail(id, cause); err != nil {
		s.logger.Warn("failed to record send failure", zap.Error(err), zap.String("local_id", id.String()))
	}
}
