package compose

import (
	"sync"

	"github.com/matheus3301/zpp/internal/message"
)

// Ack is the tri-state acknowledgment of a fan-out warning.
type Ack int

const (
	// AckUnset means the warning has not been shown.
	AckUnset Ack = iota
	// AckPending means the warning is shown and not yet acknowledged.
	AckPending
	// AckGiven means the user confirmed the warning.
	AckGiven
)

func (a Ack) String() string {
	switch a {
	case AckPending:
		return "pending"
	case AckGiven:
		return "given"
	default:
		return "unset"
	}
}

// Status is where a session is in the send pipeline.
type Status int

const (
	Idle Status = iota
	Validating
	AwaitingSubscribeCheck
	Sending
)

func (s Status) String() string {
	switch s {
	case Validating:
		return "validating"
	case AwaitingSubscribeCheck:
		return "awaiting_subscribe_check"
	case Sending:
		return "sending"
	default:
		return "idle"
	}
}

// Session is one compose box: its draft, the acknowledgment flags of the
// fan-out warnings, the narrow being viewed, and the banners. All methods
// are safe for concurrent use.
type Session struct {
	mu             sync.Mutex
	state          State
	open           bool
	narrowStream   string
	allEveryoneAck Ack
	announceAck    Ack
	status         Status
	banners        Banners
	// generation counts resets, so late results for an old draft can be dropped.
	generation uint64
}

// NewSession creates a closed, empty session.
func NewSession() *Session {
	return &Session{banners: Banners{SendEnabled: true}}
}

// State returns a copy of the draft.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState replaces the draft.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Update applies fn to the draft under the session lock.
func (s *Session) Update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

// Generation identifies the current draft. It changes whenever the draft is
// reset by a start, cancel or send.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// UpdateIf applies fn only while the draft is still the given generation.
func (s *Session) UpdateIf(generation uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	fn(&s.state)
	return true
}

// SetContent replaces the draft text.
func (s *Session) SetContent(content string) {
	s.Update(func(st *State) { st.Content = content })
}

// IsOpen reports whether the compose box is open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) setOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

// SetNarrow records the stream currently being viewed, "" for none.
// Auto-subscribe on send is only offered for that stream.
func (s *Session) SetNarrow(stream string) {
	s.mu.Lock()
	s.narrowStream = stream
	s.mu.Unlock()
}

// Narrow returns the stream currently being viewed.
func (s *Session) Narrow() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.narrowStream
}

// Status returns the pipeline status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// AllEveryoneAck returns the wildcard-mention acknowledgment flag.
func (s *Session) AllEveryoneAck() Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allEveryoneAck
}

// AnnounceAck returns the announce-stream acknowledgment flag.
func (s *Session) AnnounceAck() Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announceAck
}

// AcknowledgeAllEveryone records the user's confirmation of the wildcard
// warning and hides it. The next validation pass lets the mention through.
func (s *Session) AcknowledgeAllEveryone() {
	s.mu.Lock()
	s.allEveryoneAck = AckGiven
	s.banners.Wildcard.clear()
	s.mu.Unlock()
}

// AcknowledgeAnnounce is AcknowledgeAllEveryone for the announce stream warning.
func (s *Session) AcknowledgeAnnounce() {
	s.mu.Lock()
	s.announceAck = AckGiven
	s.banners.Announce.clear()
	s.mu.Unlock()
}

// ClearAllEveryoneWarnings hides and empties the wildcard warning area.
func (s *Session) ClearAllEveryoneWarnings() {
	s.mu.Lock()
	s.banners.Wildcard.clear()
	s.mu.Unlock()
}

// ClearAnnounceWarnings hides and empties the announce warning area.
func (s *Session) ClearAnnounceWarnings() {
	s.mu.Lock()
	s.banners.Announce.clear()
	s.mu.Unlock()
}

// Banners returns a snapshot of the banners.
func (s *Session) Banners() Banners {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banners.clone()
}

// ShowError replaces the error banner. At most one is visible.
func (s *Session) ShowError(kind ErrorKind, text string, invalid ...string) {
	s.mu.Lock()
	s.banners.Error = &ErrorBanner{Kind: kind, Text: text, Invalid: invalid}
	s.mu.Unlock()
}

// ClearError hides the error banner.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.banners.Error = nil
	s.mu.Unlock()
}

func (s *Session) clearErrorKind(kind ErrorKind) {
	s.mu.Lock()
	if s.banners.Error != nil && s.banners.Error.Kind == kind {
		s.banners.Error = nil
	}
	s.mu.Unlock()
}

// SetSendEnabled toggles the send control.
func (s *Session) SetSendEnabled(enabled bool) {
	s.mu.Lock()
	s.banners.SendEnabled = enabled
	s.mu.Unlock()
}

// HideNotSubscribed dismisses the not-subscribed banner.
func (s *Session) HideNotSubscribed() {
	s.mu.Lock()
	s.banners.NotSubscribed = SubscribeBanner{}
	s.mu.Unlock()
}

func (s *Session) showNotSubscribed(stream string) {
	s.mu.Lock()
	s.banners.NotSubscribed = SubscribeBanner{Visible: true, StreamName: stream, CanSubscribe: true}
	s.mu.Unlock()
}

func (s *Session) showWildcard(w Warning) {
	s.mu.Lock()
	s.banners.Wildcard.show(w)
	s.allEveryoneAck = AckPending
	s.mu.Unlock()
}

func (s *Session) showAnnounce(w Warning) {
	s.mu.Lock()
	s.banners.Announce.show(w)
	s.announceAck = AckPending
	s.mu.Unlock()
}

func (s *Session) resetAllEveryoneAck() {
	s.mu.Lock()
	s.allEveryoneAck = AckUnset
	s.mu.Unlock()
}

func (s *Session) resetAnnounceAck() {
	s.mu.Lock()
	s.announceAck = AckUnset
	s.mu.Unlock()
}

// reset empties the draft and every banner, keeping the narrow.
func (s *Session) reset() {
	s.mu.Lock()
	s.state = State{Type: s.state.Type}
	s.allEveryoneAck = AckUnset
	s.announceAck = AckUnset
	s.status = Idle
	s.banners = Banners{SendEnabled: true}
	s.generation++
	s.mu.Unlock()
}

// clearContent empties the text, keeping the recipient.
func (s *Session) clearContent() {
	s.mu.Lock()
	s.state.Content = ""
	s.banners.Error = nil
	s.banners.SendEnabled = true
	s.mu.Unlock()
}

// Type returns the recipient type of the draft, defaulting to stream.
func (s *Session) Type() message.Type {
	st := s.State()
	if st.Type == "" {
		return message.Stream
	}
	return st.Type
}
