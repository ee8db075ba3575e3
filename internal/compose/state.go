// Package compose holds the compose box model and the pipeline that turns a
// draft into a send: validation, message building, local echo and dispatch.
package compose

import (
	"strings"

	"github.com/matheus3301/zpp/internal/message"
)

// State is the content of the compose box.
type State struct {
	Type       message.Type `json:"type"`
	StreamName string       `json:"stream,omitempty"`
	StreamID   int64        `json:"stream_id,omitempty"`
	Topic      string       `json:"topic,omitempty"`
	// PrivateRecipient is a comma separated list of email addresses.
	PrivateRecipient string `json:"private_message_recipient,omitempty"`
	Content          string `json:"content"`
}

// HasContent reports whether the draft contains anything besides whitespace.
func (s State) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}

// StartOpts opens the compose box.
type StartOpts struct {
	Type             message.Type
	StreamName       string
	Topic            string
	PrivateRecipient string
	Content          string
	// Trigger names what opened the box (e.g. "new topic button", "unsent").
	Trigger string
}

func (o StartOpts) state() State {
	return State{
		Type:             o.Type,
		StreamName:       o.StreamName,
		Topic:            o.Topic,
		PrivateRecipient: o.PrivateRecipient,
		Content:          o.Content,
	}
}

// StartFromState builds StartOpts that reopen a saved draft.
func StartFromState(s State, trigger string) StartOpts {
	return StartOpts{
		Type:             s.Type,
		StreamName:       s.StreamName,
		Topic:            s.Topic,
		PrivateRecipient: s.PrivateRecipient,
		Content:          s.Content,
		Trigger:          trigger,
	}
}
