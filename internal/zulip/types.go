package zulip

import (
	"encoding/json"
	"time"
)

// RawPresence is the modern presence format: unix seconds, zero when absent.
type RawPresence struct {
	ActiveTimestamp int64 `json:"active_timestamp"`
	IdleTimestamp   int64 `json:"idle_timestamp"`
}

// User is an entry of realm_users / a realm_user event person.
type User struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	IsAdmin    bool   `json:"is_admin"`
	IsActive   bool   `json:"is_active"`
	IsBot      bool   `json:"is_bot"`
	DateJoined string `json:"date_joined"`
}

// DateJoinedUnix parses DateJoined, returning 0 when unknown.
func (u User) DateJoinedUnix() int64 {
	if u.DateJoined == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, u.DateJoined)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// Stream post policies.
const (
	PostPolicyEveryone   = 1
	PostPolicyAdmins     = 2
	PostPolicyRestricted = 3
	PostPolicyModerators = 4
)

// Subscription is an entry of the register response subscriptions list.
type Subscription struct {
	StreamID         int64   `json:"stream_id"`
	Name             string  `json:"name"`
	StreamPostPolicy int     `json:"stream_post_policy"`
	Subscribers      []int64 `json:"subscribers"`
	SubscriberCount  int     `json:"subscriber_count"`
}

// RegisterResponse is the subset of POST /register the client consumes.
type RegisterResponse struct {
	QueueID              string                 `json:"queue_id"`
	LastEventID          int64                  `json:"last_event_id"`
	UserID               int64                  `json:"user_id"`
	MaxMessageID         int64                  `json:"max_message_id"`
	ServerTimestamp      float64                `json:"server_timestamp"`
	PresenceLastUpdateID int64                  `json:"presence_last_update_id"`
	Presences            map[string]RawPresence `json:"presences"`
	Subscriptions        []Subscription         `json:"subscriptions"`
	RealmUsers           []User                 `json:"realm_users"`
	OfflineThreshold     int64                  `json:"server_presence_offline_threshold_seconds"`
	PingInterval         int64                  `json:"server_presence_ping_interval_seconds"`
	MandatoryTopics      bool                   `json:"realm_mandatory_topics"`
}

// PresenceResponse is the reply to POST /users/me/presence.
type PresenceResponse struct {
	Presences            map[string]RawPresence `json:"presences"`
	ServerTimestamp      float64                `json:"server_timestamp"`
	PresenceLastUpdateID int64                  `json:"presence_last_update_id"`
}

// Event is one entry from GET /events. Raw keeps the full object for the
// typed decoders below.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Op   string          `json:"op"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw event.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MessageEvent is a "message" event.
type MessageEvent struct {
	Message struct {
		ID        int64  `json:"id"`
		SenderID  int64  `json:"sender_id"`
		Type      string `json:"type"`
		Content   string `json:"content"`
		Subject   string `json:"subject"`
		Timestamp int64  `json:"timestamp"`
	} `json:"message"`
	LocalMessageID string `json:"local_message_id"`
}

// ClientPresence is one client's entry in a legacy presence event.
type ClientPresence struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// PresenceEvent is a "presence" event.
type PresenceEvent struct {
	UserID          int64                     `json:"user_id"`
	Email           string                    `json:"email"`
	ServerTimestamp float64                   `json:"server_timestamp"`
	Presence        map[string]ClientPresence `json:"presence"`
}

// Raw folds the per-client entries into the modern timestamp pair.
func (p PresenceEvent) Raw() RawPresence {
	var raw RawPresence
	for _, cp := range p.Presence {
		switch cp.Status {
		case "active":
			raw.ActiveTimestamp = max(raw.ActiveTimestamp, cp.Timestamp)
		case "idle":
			raw.IdleTimestamp = max(raw.IdleTimestamp, cp.Timestamp)
		}
	}
	return raw
}

// SubscriptionEvent covers add, remove, peer_add and peer_remove.
type SubscriptionEvent struct {
	Subscriptions []Subscription `json:"subscriptions"`
	StreamIDs     []int64        `json:"stream_ids"`
	UserIDs       []int64        `json:"user_ids"`
}

// RealmUserEvent covers add, update and remove.
type RealmUserEvent struct {
	Person User `json:"person"`
}

// Decode unmarshals the raw event into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}
