package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by prefix, so the
// part before the dot is the namespace.
const (
	ComposeStarted  = "compose.started"
	ComposeFinished = "compose.finished"
	ComposeCanceled = "compose.canceled"

	MessageEchoed     = "message.echoed"
	MessageReified    = "message.reified"
	MessageSendFailed = "message.send_failed"

	PresenceUpdated = "presence.updated"

	UnsentShown     = "unsent.shown"
	UnsentDismissed = "unsent.dismissed"

	EventsConnected    = "events.connected"
	EventsDisconnected = "events.disconnected"
	QueueStatusChanged = "events.status_changed"

	ConfigReloaded = "config.reloaded"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespace returns the prefix of the event kind up to and including the dot.
func (e Event) Namespace() string {
	for i := 0; i < len(e.Kind); i++ {
		if e.Kind[i] == '.' {
			return e.Kind[:i+1]
		}
	}
	return e.Kind
}
