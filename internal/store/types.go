package store

// Message status values for locally echoed messages.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is a locally rendered outgoing message, keyed by its local id until
// the server assigns a real one.
type Message struct {
	ID           int64
	LocalID      string
	LocalKind    string // echoed, tracked
	ServerID     int64
	MessageType  string // stream, private
	Stream       string
	Topic        string
	Recipient    string
	Content      string
	Status       string
	ErrorMessage string
	Timestamp    int64
}

// LocalValue is one versioned local-storage entry.
type LocalValue struct {
	Key       string
	Version   int
	Value     string
	UpdatedAt int64
}
