package api

import (
	"context"

	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/outbox"
	"github.com/matheus3301/zpp/internal/store"
	"github.com/matheus3301/zpp/internal/zulip"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const defaultMessageLimit = 50

// MessageService implements MessageServer.
type MessageService struct {
	db     *store.DB
	echo   *echo.Coordinator
	sender *outbox.Sender
}

func NewMessageService(db *store.DB, coord *echo.Coordinator, sender *outbox.Sender) *MessageService {
	return &MessageService{db: db, echo: coord, sender: sender}
}

func (s *MessageService) List(_ context.Context, req *ListMessagesRequest) (*MessageList, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	rows, err := s.db.ListMessages(limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	out := &MessageList{Messages: make([]Message, 0, len(rows))}
	for _, m := range rows {
		out.Messages = append(out.Messages, messageFromStore(m))
	}
	return out, nil
}

// Resend dispatches a failed echoed message again under its local id.
func (s *MessageService) Resend(ctx context.Context, req *ResendRequest) (*SendResponse, error) {
	id, ok := s.echo.Lookup(req.LocalID)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "unknown local id %q", req.LocalID)
	}
	if e, _ := s.echo.Entry(id); e.State != echo.EchoFailed {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "%s is %s, only failed echoes can be resent", req.LocalID, e.State)
	}
	serverID, err := s.sender.Resend(ctx, id)
	resp := &SendResponse{LocalID: id.String(), Echoed: true, ServerID: serverID, Sent: err == nil}
	if err != nil {
		resp.Error = zulip.ErrorMessage(err)
	}
	return resp, nil
}

func messageFromStore(m store.Message) Message {
	return Message{
		LocalID:   m.LocalID,
		Kind:      m.LocalKind,
		ServerID:  m.ServerID,
		Type:      m.MessageType,
		Stream:    m.Stream,
		Topic:     m.Topic,
		Recipient: m.Recipient,
		Content:   m.Content,
		Status:    m.Status,
		Error:     m.ErrorMessage,
		Timestamp: m.Timestamp,
	}
}
