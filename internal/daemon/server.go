package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/session"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server is the session's control socket.
type Server struct {
	grpc       *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer listens on the session socket (mode 0600) and registers every
// service. A socket file left by a crashed daemon is replaced; the session
// lock already guarantees no live daemon owns it.
func NewServer(
	p Params,
	logger *zap.Logger,
	composeSvc *api.ComposeService,
	presenceSvc *api.PresenceService,
	sessionSvc *api.SessionService,
	messageSvc *api.MessageService,
	unsentSvc *api.UnsentService,
) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	rpcLog := logger.Named("rpc")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoverUnary(rpcLog), logUnary(rpcLog)),
		grpc.ChainStreamInterceptor(recoverStream(rpcLog), logStream(rpcLog)),
	)
	api.Register(srv, composeSvc, presenceSvc, sessionSvc, messageSvc, unsentSvc)

	return &Server{
		grpc:       srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start serves until Stop. Blocks.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpc.Serve(s.listener)
}

// Stop drains in-flight calls and removes the socket file. Watch streams
// never finish on their own, so ctx bounds the drain.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	_ = os.Remove(s.socketPath)
}

func logCall(logger *zap.Logger, method string, start time.Time, err error) {
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("took", time.Since(start)),
	}
	switch code {
	case codes.OK, codes.Canceled:
		logger.Debug("rpc", fields...)
	case codes.Internal, codes.Unknown:
		logger.Error("rpc", append(fields, zap.Error(err))...)
	default:
		logger.Info("rpc", append(fields, zap.Error(err))...)
	}
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, info.FullMethod, start, err)
		return resp, err
	}
}

func logStream(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, info.FullMethod, start, err)
		return err
	}
}

// panicError turns a recovered handler panic into an Internal status.
func panicError(logger *zap.Logger, method string, r any) error {
	logger.Error("rpc handler panicked",
		zap.String("method", method),
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()))
	return status.Errorf(codes.Internal, "%s: internal error", method)
}

func recoverUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(logger, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

func recoverStream(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(logger, info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}
