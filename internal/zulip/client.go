// Package zulip is a small REST client for the endpoints the compose and
// presence pipeline consumes.
package zulip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one Zulip realm with an API key.
type Client struct {
	h       *http.Client
	baseURL string
	email   string
	apiKey  string
	agent   string
}

// Options tweak the HTTP transport. All fields are optional.
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
}

// New creates a client for realmURL ("https://chat.example.com").
func New(realmURL, email, apiKey string, opts *Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(realmURL, "/"),
		email:   email,
		apiKey:  apiKey,
		agent:   "zpp/0.1",
	}
	if opts != nil {
		c.h = opts.HTTPClient
		if opts.UserAgent != "" {
			c.agent = opts.UserAgent
		}
	}
	if c.h == nil {
		// Long-poll GET /events is held open for up to ~90s server side.
		c.h = &http.Client{Timeout: 2 * time.Minute}
	}
	return c
}

// RealmURL returns the base URL the client was created with.
func (c *Client) RealmURL() string {
	return c.baseURL
}

// Email returns the address the client authenticates as.
func (c *Client) Email() string {
	return c.email
}

type envelope struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Code   string `json:"code"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.apiKey)
	req.Header.Set("User-Agent", c.agent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// call performs a request and decodes a success response into out.
func (c *Client) call(ctx context.Context, method, path string, form url.Values, out any) error {
	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		p := path
		if len(form) > 0 {
			p += "?" + form.Encode()
		}
		req, err = c.newRequest(ctx, method, p, nil, "")
	default:
		req, err = c.newRequest(ctx, method, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	}
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.h.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &APIError{HTTPStatus: resp.StatusCode, Msg: strings.TrimSpace(string(data))}
	}
	if env.Result != "success" || resp.StatusCode >= 300 {
		msg := env.Msg
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{HTTPStatus: resp.StatusCode, Code: env.Code, Msg: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// SendMessage posts an already serialized message. Returns the server id.
func (c *Client) SendMessage(ctx context.Context, form url.Values) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/messages", form, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// RenderMessage asks the server for the HTML rendering of content.
func (c *Client) RenderMessage(ctx context.Context, content string) (string, error) {
	var resp struct {
		Rendered string `json:"rendered"`
	}
	if err := c.call(ctx, http.MethodPost, "/messages/render", url.Values{"content": {content}}, &resp); err != nil {
		return "", err
	}
	return resp.Rendered, nil
}

// StreamID resolves a stream name. A missing stream yields an APIError with
// code STREAM_DOES_NOT_EXIST.
func (c *Client) StreamID(ctx context.Context, name string) (int64, error) {
	var resp struct {
		StreamID int64 `json:"stream_id"`
	}
	if err := c.call(ctx, http.MethodGet, "/get_stream_id", url.Values{"stream": {name}}, &resp); err != nil {
		return 0, err
	}
	return resp.StreamID, nil
}

// Subscribe subscribes the current user to the named streams.
func (c *Client) Subscribe(ctx context.Context, names ...string) error {
	type sub struct {
		Name string `json:"name"`
	}
	subs := make([]sub, 0, len(names))
	for _, n := range names {
		subs = append(subs, sub{Name: n})
	}
	raw, err := json.Marshal(subs)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/users/me/subscriptions", url.Values{"subscriptions": {string(raw)}}, nil)
}

// Register creates an event queue for the given event types.
func (c *Client) Register(ctx context.Context, eventTypes []string) (*RegisterResponse, error) {
	types, err := json.Marshal(eventTypes)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"event_types":         {string(types)},
		"slim_presence":       {"true"},
		"apply_markdown":      {"true"},
		"include_subscribers": {"true"},
		"client_capabilities": {`{"notification_settings_null":true,"user_avatar_url_field_optional":true}`},
	}
	var resp RegisterResponse
	if err := c.call(ctx, http.MethodPost, "/register", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetEvents long-polls the queue for events after lastEventID.
func (c *Client) GetEvents(ctx context.Context, queueID string, lastEventID int64) ([]Event, error) {
	form := url.Values{
		"queue_id":      {queueID},
		"last_event_id": {strconv.FormatInt(lastEventID, 10)},
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.call(ctx, http.MethodGet, "/events", form, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// DeleteQueue releases an event queue. Errors are not interesting to callers
// shutting down, but are returned anyway.
func (c *Client) DeleteQueue(ctx context.Context, queueID string) error {
	return c.call(ctx, http.MethodDelete, "/events", url.Values{"queue_id": {queueID}}, nil)
}

// PresenceUpdate is one heartbeat.
type PresenceUpdate struct {
	Status       string // active or idle
	PingOnly     bool
	NewUserInput bool
	LastUpdateID int64
}

// UpdatePresence reports the user's own presence and returns everyone else's.
func (c *Client) UpdatePresence(ctx context.Context, u PresenceUpdate) (*PresenceResponse, error) {
	form := url.Values{
		"status":         {u.Status},
		"ping_only":      {strconv.FormatBool(u.PingOnly)},
		"new_user_input": {strconv.FormatBool(u.NewUserInput)},
		"slim_presence":  {"true"},
	}
	if u.LastUpdateID > 0 {
		form.Set("last_update_id", strconv.FormatInt(u.LastUpdateID, 10))
	}
	var resp PresenceResponse
	if err := c.call(ctx, http.MethodPost, "/users/me/presence", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadFile uploads r as a multipart form and returns the domain-relative
// /user_uploads/... path.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/user_uploads", &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var resp struct {
		URI string `json:"uri"`
		URL string `json:"url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return resp.URI, nil
}
