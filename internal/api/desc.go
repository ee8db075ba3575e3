package api

import (
	"context"

	"google.golang.org/grpc"
)

// Service names.
const (
	ComposeServiceName  = "zpp.v1.ComposeService"
	PresenceServiceName = "zpp.v1.PresenceService"
	SessionServiceName  = "zpp.v1.SessionService"
	MessageServiceName  = "zpp.v1.MessageService"
	UnsentServiceName   = "zpp.v1.UnsentService"
)

// unary builds a method descriptor around a typed handler.
func unary[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// ComposeServer drives the compose box.
type ComposeServer interface {
	Get(context.Context, *Empty) (*ComposeView, error)
	Start(context.Context, *StartRequest) (*ComposeView, error)
	Update(context.Context, *UpdateRequest) (*ComposeView, error)
	Cancel(context.Context, *Empty) (*ComposeView, error)
	Finish(context.Context, *Empty) (*SendResponse, error)
	ConfirmWildcard(context.Context, *Empty) (*SendResponse, error)
	ConfirmAnnounce(context.Context, *Empty) (*SendResponse, error)
	Subscribe(context.Context, *Empty) (*ComposeView, error)
	Send(context.Context, *StartRequest) (*SendResponse, error)
	Upload(context.Context, *UploadRequest) (*UploadResponse, error)
	AbortUpload(context.Context, *AbortUploadRequest) (*AbortUploadResponse, error)
	Preview(context.Context, *PreviewRequest) (*PreviewResponse, error)
}

var ComposeServiceDesc = grpc.ServiceDesc{
	ServiceName: ComposeServiceName,
	HandlerType: (*ComposeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ComposeServiceName, "Get", ComposeServer.Get),
		unary(ComposeServiceName, "Start", ComposeServer.Start),
		unary(ComposeServiceName, "Update", ComposeServer.Update),
		unary(ComposeServiceName, "Cancel", ComposeServer.Cancel),
		unary(ComposeServiceName, "Finish", ComposeServer.Finish),
		unary(ComposeServiceName, "ConfirmWildcard", ComposeServer.ConfirmWildcard),
		unary(ComposeServiceName, "ConfirmAnnounce", ComposeServer.ConfirmAnnounce),
		unary(ComposeServiceName, "Subscribe", ComposeServer.Subscribe),
		unary(ComposeServiceName, "Send", ComposeServer.Send),
		unary(ComposeServiceName, "Upload", ComposeServer.Upload),
		unary(ComposeServiceName, "AbortUpload", ComposeServer.AbortUpload),
		unary(ComposeServiceName, "Preview", ComposeServer.Preview),
	},
	Metadata: "zpp/v1/compose",
}

// PresenceServer reads the presence model.
type PresenceServer interface {
	List(context.Context, *Empty) (*PresenceList, error)
	Get(context.Context, *GetPresenceRequest) (*PresenceEntry, error)
}

var PresenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PresenceServiceName, "List", PresenceServer.List),
		unary(PresenceServiceName, "Get", PresenceServer.Get),
	},
	Metadata: "zpp/v1/presence",
}

// SessionServer reports daemon status and streams bus events.
type SessionServer interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	Watch(*WatchRequest, EventStream) error
}

// EventStream is the server side of SessionService.Watch.
type EventStream interface {
	Send(*Event) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s eventStream) Send(e *Event) error { return s.SendMsg(e) }

func sessionWatchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SessionServer).Watch(in, eventStream{stream})
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "Status", SessionServer.Status),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: sessionWatchHandler, ServerStreams: true},
	},
	Metadata: "zpp/v1/session",
}

// MessageServer lists echoed messages and resends failed ones.
type MessageServer interface {
	List(context.Context, *ListMessagesRequest) (*MessageList, error)
	Resend(context.Context, *ResendRequest) (*SendResponse, error)
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "List", MessageServer.List),
		unary(MessageServiceName, "Resend", MessageServer.Resend),
	},
	Metadata: "zpp/v1/message",
}

// UnsentServer works through drafts saved by a previous run.
type UnsentServer interface {
	List(context.Context, *Empty) (*UnsentView, error)
	Confirm(context.Context, *Empty) (*SendResponse, error)
	Cancel(context.Context, *Empty) (*UnsentView, error)
}

var UnsentServiceDesc = grpc.ServiceDesc{
	ServiceName: UnsentServiceName,
	HandlerType: (*UnsentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(UnsentServiceName, "List", UnsentServer.List),
		unary(UnsentServiceName, "Confirm", UnsentServer.Confirm),
		unary(UnsentServiceName, "Cancel", UnsentServer.Cancel),
	},
	Metadata: "zpp/v1/unsent",
}

// Register adds every service to s.
func Register(s grpc.ServiceRegistrar, compose ComposeServer, presence PresenceServer, session SessionServer, messages MessageServer, unsent UnsentServer) {
	s.RegisterService(&ComposeServiceDesc, compose)
	s.RegisterService(&PresenceServiceDesc, presence)
	s.RegisterService(&SessionServiceDesc, session)
	s.RegisterService(&MessageServiceDesc, messages)
	s.RegisterService(&UnsentServiceDesc, unsent)
}
