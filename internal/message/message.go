// Package message defines the outgoing message shape shared by the compose,
// local echo and transmission stages.
package message

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Type is the recipient type of a message.
type Type string

const (
	Stream  Type = "stream"
	Private Type = "private"
)

// Outbound is one send attempt. It is built fresh for every attempt and is
// not kept after the server confirms or rejects it.
type Outbound struct {
	Type     Type
	Content  string
	SenderID int64

	// Stream messages.
	Stream   string
	StreamID int64
	Topic    string

	// Private messages: resolved user ids in recipient order, and the
	// canonical comma separated address list. Unresolved holds addresses
	// only the server can resolve (mirror realms).
	To         []int64
	ReplyTo    string
	Unresolved []string

	LocalID       LocalID
	LocallyEchoed bool
	// QueueID lets the server tag the resulting message event with our local id.
	QueueID string
}

// Recipient returns a display form of the destination.
func (m *Outbound) Recipient() string {
	if m.Type == Stream {
		return m.Stream + " > " + m.Topic
	}
	return m.ReplyTo
}

// Form serializes the message into the fields POST /messages expects. The
// "to" field is always a JSON array: the stream name for stream messages,
// user ids for private ones, or every address when some are unresolved.
func (m *Outbound) Form() (url.Values, error) {
	form := url.Values{
		"type":    {string(m.Type)},
		"content": {m.Content},
	}
	var to []byte
	var err error
	switch m.Type {
	case Stream:
		to, err = json.Marshal([]string{m.Stream})
		form.Set("topic", m.Topic)
		if m.StreamID != 0 {
			form.Set("stream_id", strconv.FormatInt(m.StreamID, 10))
		}
	case Private:
		switch {
		case m.ReplyTo != "" && (len(m.Unresolved) > 0 || len(m.To) == 0):
			// Mirror realms address users the server resolves by email.
			to, err = json.Marshal(strings.Split(m.ReplyTo, ", "))
		case len(m.To) > 0:
			to, err = json.Marshal(m.To)
			form.Set("to_user_ids", string(to))
		default:
			return nil, fmt.Errorf("private message has no recipients")
		}
		form.Set("reply_to", m.ReplyTo)
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
	if err != nil {
		return nil, err
	}
	form.Set("to", string(to))
	if !m.LocalID.IsZero() {
		form.Set("local_id", m.LocalID.String())
	}
	if m.QueueID != "" {
		form.Set("queue_id", m.QueueID)
	}
	return form, nil
}
