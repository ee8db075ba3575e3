package api

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/unsent"
	"github.com/matheus3301/zpp/internal/zulip"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Renderer asks the server for the HTML rendering of message content.
type Renderer interface {
	RenderMessage(ctx context.Context, content string) (string, error)
}

// ComposeService implements ComposeServer on top of compose.Actions.
type ComposeService struct {
	actions  *compose.Actions
	unsent   *unsent.Queue
	renderer Renderer
	gate     echo.Renderer
}

// NewComposeService creates the compose service. queue and renderer may be nil.
func NewComposeService(actions *compose.Actions, queue *unsent.Queue, renderer Renderer) *ComposeService {
	return &ComposeService{actions: actions, unsent: queue, renderer: renderer, gate: echo.MarkdownGate{}}
}

func (s *ComposeService) Get(_ context.Context, _ *Empty) (*ComposeView, error) {
	return s.view(), nil
}

func (s *ComposeService) Start(_ context.Context, req *StartRequest) (*ComposeView, error) {
	opts, err := startOpts(req)
	if err != nil {
		return nil, err
	}
	s.actions.Start(opts)
	return s.view(), nil
}

func (s *ComposeService) Update(_ context.Context, req *UpdateRequest) (*ComposeView, error) {
	sess := s.actions.Session()
	if !sess.IsOpen() {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "compose box is not open")
	}
	sess.Update(func(st *compose.State) {
		if req.Stream != nil && *req.Stream != st.StreamName {
			st.StreamName = *req.Stream
			st.StreamID = 0
		}
		if req.Topic != nil {
			st.Topic = *req.Topic
		}
		if req.PrivateRecipient != nil {
			st.PrivateRecipient = *req.PrivateRecipient
		}
		if req.Content != nil {
			st.Content = *req.Content
		}
	})
	if req.Narrow != nil {
		sess.SetNarrow(*req.Narrow)
	}
	return s.view(), nil
}

func (s *ComposeService) Cancel(_ context.Context, _ *Empty) (*ComposeView, error) {
	s.actions.Cancel()
	return s.view(), nil
}

func (s *ComposeService) Finish(ctx context.Context, _ *Empty) (*SendResponse, error) {
	return s.send(ctx, s.actions.Finish)
}

func (s *ComposeService) ConfirmWildcard(ctx context.Context, _ *Empty) (*SendResponse, error) {
	return s.send(ctx, s.actions.ConfirmWildcard)
}

func (s *ComposeService) ConfirmAnnounce(ctx context.Context, _ *Empty) (*SendResponse, error) {
	return s.send(ctx, s.actions.ConfirmAnnounce)
}

func (s *ComposeService) Subscribe(ctx context.Context, _ *Empty) (*ComposeView, error) {
	if err := s.actions.SubscribeFromBanner(ctx); err != nil {
		return nil, toStatus("subscribe", err)
	}
	return s.view(), nil
}

// Send opens the compose box with the request's draft and sends it. It
// refuses to overwrite a draft that is being edited.
func (s *ComposeService) Send(ctx context.Context, req *StartRequest) (*SendResponse, error) {
	sess := s.actions.Session()
	if sess.IsOpen() && sess.State().HasContent() {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "a draft is open in the compose box")
	}
	opts, err := startOpts(req)
	if err != nil {
		return nil, err
	}
	if opts.Trigger == "" {
		opts.Trigger = "zppctl"
	}
	s.actions.Start(opts)
	return s.send(ctx, s.actions.Finish)
}

func (s *ComposeService) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req.Name == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "upload name is required")
	}
	// The transfer outlives this call; AbortUpload or Cancel stop it.
	h, err := s.actions.Upload(context.WithoutCancel(ctx), req.Name, bytes.NewReader(req.Data))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "upload: %v", err)
	}
	return &UploadResponse{ID: h.ID}, nil
}

func (s *ComposeService) AbortUpload(_ context.Context, req *AbortUploadRequest) (*AbortUploadResponse, error) {
	return &AbortUploadResponse{Aborted: s.actions.AbortUpload(req.ID)}, nil
}

func (s *ComposeService) send(ctx context.Context, fn func(context.Context) (compose.Outcome, error)) (*SendResponse, error) {
	out, err := fn(ctx)
	resp := sendResponse(out, err)
	resp.View = s.view()
	if errors.Is(err, context.Canceled) {
		return nil, toStatus("send", err)
	}
	return resp, nil
}

func (s *ComposeService) view() *ComposeView {
	v := composeView(s.actions)
	if s.unsent != nil {
		v.Unsent = unsentView(s.unsent.Banner())
	}
	return v
}

func startOpts(req *StartRequest) (compose.StartOpts, error) {
	typ := message.Type(req.Type)
	switch typ {
	case "", message.Stream, message.Private:
	default:
		return compose.StartOpts{}, grpcstatus.Errorf(codes.InvalidArgument, "unknown message type %q", req.Type)
	}
	if typ == "" && req.PrivateRecipient != "" && req.Stream == "" {
		typ = message.Private
	}
	return compose.StartOpts{
		Type:             typ,
		StreamName:       req.Stream,
		Topic:            req.Topic,
		PrivateRecipient: req.PrivateRecipient,
		Content:          req.Content,
		Trigger:          req.Trigger,
	}, nil
}

// sendResponse folds a send error into the response: the error is already
// on the compose banner or the echoed message, so it is not an RPC failure.
func sendResponse(out compose.Outcome, err error) *SendResponse {
	resp := &SendResponse{
		Blocked:  out.Blocked,
		Sent:     out.Sent,
		Echoed:   out.Echoed,
		ServerID: out.ServerID,
	}
	if !out.LocalID.IsZero() {
		resp.LocalID = out.LocalID.String()
	}
	if err != nil {
		resp.Error = zulip.ErrorMessage(err)
	}
	return resp
}

func composeView(a *compose.Actions) *ComposeView {
	sess := a.Session()
	b := sess.Banners()
	v := &ComposeView{
		Open:    sess.IsOpen(),
		Status:  sess.Status().String(),
		State:   sess.State(),
		Uploads: a.Uploads(),
		Banners: Banners{SendEnabled: b.SendEnabled},
	}
	if b.Error != nil {
		v.Banners.Error = &ErrorBanner{Kind: string(b.Error.Kind), Text: b.Error.Text, Invalid: b.Error.Invalid}
	}
	if b.Wildcard.Visible {
		v.Banners.Wildcard = b.Wildcard.Entries
	}
	if b.Announce.Visible {
		v.Banners.Announce = b.Announce.Entries
	}
	if b.NotSubscribed.Visible {
		v.Banners.NotSubscribed = b.NotSubscribed.StreamName
		v.Banners.CanSubscribe = b.NotSubscribed.CanSubscribe
	}
	return v
}

func unsentView(b unsent.Banner) *UnsentView {
	return &UnsentView{Visible: b.Visible, Current: b.Current, Remaining: b.Remaining}
}

// Preview renders content through the server, which is the only way to see
// syntax the local echo declines.
func (s *ComposeService) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResponse, error) {
	if s.renderer == nil {
		return nil, grpcstatus.Error(codes.Unimplemented, "preview is not available")
	}
	var content string
	if req.Content != nil {
		content = *req.Content
	} else {
		sess := s.actions.Session()
		if !sess.IsOpen() {
			return nil, grpcstatus.Error(codes.FailedPrecondition, "compose box is not open")
		}
		content = sess.State().Content
	}
	if strings.TrimSpace(content) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "nothing to preview")
	}
	rendered, err := s.renderer.RenderMessage(ctx, content)
	if err != nil {
		return nil, toStatus("preview", err)
	}
	return &PreviewResponse{Rendered: rendered, LocalEcho: s.gate.CanRender(content)}, nil
}
