package api

import (
	"encoding/json"

	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/unsent"
)

// Empty is the request of argument-less calls.
type Empty struct{}

// StartRequest opens the compose box.
type StartRequest struct {
	Type             string `json:"type,omitempty"`
	Stream           string `json:"stream,omitempty"`
	Topic            string `json:"topic,omitempty"`
	PrivateRecipient string `json:"private_recipient,omitempty"`
	Content          string `json:"content,omitempty"`
	Trigger          string `json:"trigger,omitempty"`
}

// UpdateRequest edits the open draft. Nil fields are left alone.
type UpdateRequest struct {
	Stream           *string `json:"stream,omitempty"`
	Topic            *string `json:"topic,omitempty"`
	PrivateRecipient *string `json:"private_recipient,omitempty"`
	Content          *string `json:"content,omitempty"`
	Narrow           *string `json:"narrow,omitempty"`
}

// Banners mirrors compose.Banners.
type Banners struct {
	Error         *ErrorBanner      `json:"error,omitempty"`
	Wildcard      []compose.Warning `json:"wildcard,omitempty"`
	Announce      []compose.Warning `json:"announce,omitempty"`
	NotSubscribed string            `json:"not_subscribed,omitempty"`
	CanSubscribe  bool              `json:"can_subscribe,omitempty"`
	SendEnabled   bool              `json:"send_enabled"`
}

// ErrorBanner mirrors compose.ErrorBanner.
type ErrorBanner struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text"`
	Invalid []string `json:"invalid,omitempty"`
}

// ComposeView is a snapshot of the compose box.
type ComposeView struct {
	Open    bool          `json:"open"`
	Status  string        `json:"status"`
	State   compose.State `json:"state"`
	Banners Banners       `json:"banners"`
	Uploads int           `json:"uploads,omitempty"`
	Unsent  *UnsentView   `json:"unsent,omitempty"`
}

// SendResponse reports a finished send attempt.
type SendResponse struct {
	Blocked  bool         `json:"blocked,omitempty"`
	Sent     bool         `json:"sent,omitempty"`
	Echoed   bool         `json:"echoed,omitempty"`
	LocalID  string       `json:"local_id,omitempty"`
	ServerID int64        `json:"server_id,omitempty"`
	Error    string       `json:"error,omitempty"`
	View     *ComposeView `json:"view,omitempty"`
}

// UploadRequest carries a whole file; uploads are small attachments.
type UploadRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type UploadResponse struct {
	ID string `json:"id"`
}

type AbortUploadRequest struct {
	ID string `json:"id"`
}

type AbortUploadResponse struct {
	Aborted bool `json:"aborted"`
}

// PreviewRequest renders Content, or the open draft when Content is nil.
type PreviewRequest struct {
	Content *string `json:"content,omitempty"`
}

// PreviewResponse carries the server's HTML rendering. LocalEcho reports
// whether the content would also be echoed locally when sent.
type PreviewResponse struct {
	Rendered  string `json:"rendered"`
	LocalEcho bool   `json:"local_echo"`
}

// PresenceEntry is one user's derived presence.
type PresenceEntry struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Status     string `json:"status"`
	LastActive int64  `json:"last_active,omitempty"`
}

type PresenceList struct {
	Users           []PresenceEntry `json:"users"`
	ServerTimestamp int64           `json:"server_timestamp,omitempty"`
}

// GetPresenceRequest selects a user by id or email.
type GetPresenceRequest struct {
	UserID int64  `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type StatusResponse struct {
	Session      string `json:"session"`
	Status       string `json:"status"`
	SinceUnixMs  int64  `json:"since_unix_ms"`
	UptimeMs     int64  `json:"uptime_ms"`
	Realm        string `json:"realm,omitempty"`
	Email        string `json:"email,omitempty"`
	QueueID      string `json:"queue_id,omitempty"`
	Users        int    `json:"users"`
	MessageCount int    `json:"message_count"`
	PendingSends int    `json:"pending_sends"`
	Unsent       int    `json:"unsent"`
}

// WatchRequest filters the event stream by kind prefix. Empty watches everything.
type WatchRequest struct {
	Namespaces []string `json:"namespaces,omitempty"`
}

// Event is one bus event.
type Event struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

type ListMessagesRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Message is one locally echoed or tracked message.
type Message struct {
	LocalID   string `json:"local_id"`
	Kind      string `json:"kind"`
	ServerID  int64  `json:"server_id,omitempty"`
	Type      string `json:"type"`
	Stream    string `json:"stream,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type MessageList struct {
	Messages []Message `json:"messages"`
}

type ResendRequest struct {
	LocalID string `json:"local_id"`
}

// UnsentView is the unsent-messages banner.
type UnsentView struct {
	Visible   bool            `json:"visible"`
	Current   *unsent.Message `json:"current,omitempty"`
	Remaining int             `json:"remaining"`
}
