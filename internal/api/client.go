package api

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed client for every daemon service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Compose(ctx context.Context) (*ComposeView, error) {
	return invoke[ComposeView](ctx, c, ComposeServiceName, "Get", &Empty{})
}

func (c *Client) StartCompose(ctx context.Context, req *StartRequest) (*ComposeView, error) {
	return invoke[ComposeView](ctx, c, ComposeServiceName, "Start", req)
}

func (c *Client) UpdateCompose(ctx context.Context, req *UpdateRequest) (*ComposeView, error) {
	return invoke[ComposeView](ctx, c, ComposeServiceName, "Update", req)
}

func (c *Client) CancelCompose(ctx context.Context) (*ComposeView, error) {
	return invoke[ComposeView](ctx, c, ComposeServiceName, "Cancel", &Empty{})
}

func (c *Client) FinishCompose(ctx context.Context) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, ComposeServiceName, "Finish", &Empty{})
}

func (c *Client) ConfirmWildcard(ctx context.Context) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, ComposeServiceName, "ConfirmWildcard", &Empty{})
}

func (c *Client) ConfirmAnnounce(ctx context.Context) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, ComposeServiceName, "ConfirmAnnounce", &Empty{})
}

func (c *Client) Subscribe(ctx context.Context) (*ComposeView, error) {
	return invoke[ComposeView](ctx, c, ComposeServiceName, "Subscribe", &Empty{})
}

func (c *Client) Send(ctx context.Context, req *StartRequest) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, ComposeServiceName, "Send", req)
}

func (c *Client) Upload(ctx context.Context, name string, data []byte) (*UploadResponse, error) {
	return invoke[UploadResponse](ctx, c, ComposeServiceName, "Upload", &UploadRequest{Name: name, Data: data})
}

func (c *Client) AbortUpload(ctx context.Context, id string) (bool, error) {
	resp, err := invoke[AbortUploadResponse](ctx, c, ComposeServiceName, "AbortUpload", &AbortUploadRequest{ID: id})
	if err != nil {
		return false, err
	}
	return resp.Aborted, nil
}

// Preview renders content through the server; "" renders the open draft.
func (c *Client) Preview(ctx context.Context, content string) (*PreviewResponse, error) {
	req := &PreviewRequest{}
	if content != "" {
		req.Content = &content
	}
	return invoke[PreviewResponse](ctx, c, ComposeServiceName, "Preview", req)
}

func (c *Client) Presence(ctx context.Context) (*PresenceList, error) {
	return invoke[PresenceList](ctx, c, PresenceServiceName, "List", &Empty{})
}

func (c *Client) UserPresence(ctx context.Context, req *GetPresenceRequest) (*PresenceEntry, error) {
	return invoke[PresenceEntry](ctx, c, PresenceServiceName, "Get", req)
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, SessionServiceName, "Status", &Empty{})
}

func (c *Client) Messages(ctx context.Context, limit int) (*MessageList, error) {
	return invoke[MessageList](ctx, c, MessageServiceName, "List", &ListMessagesRequest{Limit: limit})
}

func (c *Client) Resend(ctx context.Context, localID string) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, MessageServiceName, "Resend", &ResendRequest{LocalID: localID})
}

func (c *Client) Unsent(ctx context.Context) (*UnsentView, error) {
	return invoke[UnsentView](ctx, c, UnsentServiceName, "List", &Empty{})
}

func (c *Client) ConfirmUnsent(ctx context.Context) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, UnsentServiceName, "Confirm", &Empty{})
}

func (c *Client) CancelUnsent(ctx context.Context) (*UnsentView, error) {
	return invoke[UnsentView](ctx, c, UnsentServiceName, "Cancel", &Empty{})
}

// Watch streams daemon events to fn until ctx ends or fn returns an error.
func (c *Client) Watch(ctx context.Context, namespaces []string, fn func(*Event) error) error {
	stream, err := c.conn.NewStream(ctx, &SessionServiceDesc.Streams[0], "/"+SessionServiceName+"/Watch")
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchRequest{Namespaces: namespaces}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
