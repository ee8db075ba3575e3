package compose

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/zap"
)

// Echoer assigns local ids and records sends before they are dispatched.
type Echoer interface {
	TryLocallyEcho(msg *message.Outbound) message.LocalID
	Track(msg *message.Outbound) error
}

// Sender dispatches a message and reconciles the echo with the reply.
type Sender interface {
	Send(ctx context.Context, msg *message.Outbound) (int64, error)
}

// QueueIDSource exposes the current event queue id, "" when none.
type QueueIDSource interface {
	QueueID() string
}

// Self identifies the current user.
type Self interface {
	MyUserID() int64
}

// Deps are the collaborators of Actions.
type Deps struct {
	Session    *Session
	Lifecycle  *Lifecycle
	Validator  *Validator
	Builder    *Builder
	Echo       Echoer
	Sender     Sender
	Queue      QueueIDSource
	Self       Self
	Subscriber SubscriptionChecker
	Uploader   FileUploader
	Compose    config.Compose
	Logger     *zap.Logger
}

// Outcome describes what Finish did.
type Outcome struct {
	// Blocked is set when validation stopped the send; see the banners.
	Blocked  bool
	Sent     bool
	Echoed   bool
	LocalID  message.LocalID
	ServerID int64
}

// Actions drives the compose box: open, cancel and the send pipeline.
type Actions struct {
	d Deps

	mu      sync.Mutex
	compose config.Compose
	uploads map[string]*UploadHandle
}

// NewActions wires the compose pipeline.
func NewActions(d Deps) *Actions {
	if d.Session == nil {
		d.Session = NewSession()
	}
	if d.Lifecycle == nil {
		d.Lifecycle = NewLifecycle(nil)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Actions{d: d, compose: d.Compose, uploads: make(map[string]*UploadHandle)}
}

func (a *Actions) Session() *Session     { return a.d.Session }
func (a *Actions) Lifecycle() *Lifecycle { return a.d.Lifecycle }

// EnterSends reports whether Enter sends instead of inserting a newline.
func (a *Actions) EnterSends() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.compose.EnterSends
}

// SetCompose swaps in reloaded compose preferences.
func (a *Actions) SetCompose(c config.Compose) {
	a.mu.Lock()
	a.compose = c
	a.mu.Unlock()
}

// Start opens the compose box with the given draft.
func (a *Actions) Start(opts StartOpts) {
	s := a.d.Session
	st := opts.state()
	if st.Type == "" {
		st.Type = message.Stream
		opts.Type = message.Stream
	}
	s.reset()
	s.SetState(st)
	s.setOpen(true)
	a.d.Logger.Debug("compose started", zap.String("trigger", opts.Trigger), zap.String("type", string(st.Type)))
	a.d.Lifecycle.started(opts)
}

// Cancel closes the compose box and discards the draft.
func (a *Actions) Cancel() {
	a.abortUploads()
	a.d.Session.reset()
	a.d.Session.setOpen(false)
	a.d.Lifecycle.canceled()
}

// ClearContent empties the draft text, keeping the recipient.
func (a *Actions) ClearContent() {
	a.d.Session.clearContent()
}

// Finish runs the send pipeline: validate, build, echo, send. A validation
// failure is not an error; it yields Outcome.Blocked with the reason on the
// banners. A send error is returned after it has been reported.
func (a *Actions) Finish(ctx context.Context) (Outcome, error) {
	s := a.d.Session
	s.SetSendEnabled(false)
	if a.Uploads() > 0 {
		s.ShowError(ErrUpload, "Wait for the upload to finish before sending.")
		return Outcome{Blocked: true}, nil
	}

	if !a.d.Validator.Validate(ctx, s) {
		return Outcome{Blocked: true}, nil
	}
	s.SetSendEnabled(false)

	var self int64
	if a.d.Self != nil {
		self = a.d.Self.MyUserID()
	}
	msg, err := a.d.Builder.CreateMessageObject(s.State(), self)
	if err != nil {
		s.ShowError(ErrBuild, err.Error())
		s.SetSendEnabled(true)
		return Outcome{Blocked: true}, nil
	}
	if a.d.Queue != nil {
		msg.QueueID = a.d.Queue.QueueID()
	}

	id := a.d.Echo.TryLocallyEcho(msg)
	if err := a.d.Echo.Track(msg); err != nil {
		s.ShowError(ErrSend, err.Error())
		s.SetSendEnabled(true)
		return Outcome{LocalID: id}, fmt.Errorf("track: %w", err)
	}
	out := Outcome{LocalID: id, Echoed: msg.LocallyEchoed}
	if msg.LocallyEchoed {
		// The echo is on screen; the box is free for the next message.
		a.finished()
	}

	s.setStatus(Sending)
	serverID, err := a.d.Sender.Send(ctx, msg)
	s.setStatus(Idle)
	if err != nil {
		if !msg.LocallyEchoed {
			s.ShowError(ErrSend, zulip.ErrorMessage(err))
			s.SetSendEnabled(true)
		}
		return out, err
	}
	out.Sent = true
	out.ServerID = serverID
	if !msg.LocallyEchoed {
		a.finished()
	}
	return out, nil
}

// ConfirmWildcard acknowledges the wildcard mention warning and retries.
func (a *Actions) ConfirmWildcard(ctx context.Context) (Outcome, error) {
	a.d.Session.AcknowledgeAllEveryone()
	return a.Finish(ctx)
}

// ConfirmAnnounce acknowledges the announce stream warning and retries.
func (a *Actions) ConfirmAnnounce(ctx context.Context) (Outcome, error) {
	a.d.Session.AcknowledgeAnnounce()
	return a.Finish(ctx)
}

// SubscribeFromBanner handles the subscribe button of the not-subscribed banner.
func (a *Actions) SubscribeFromBanner(ctx context.Context) error {
	s := a.d.Session
	banner := s.Banners().NotSubscribed
	if !banner.Visible {
		return fmt.Errorf("no subscription banner shown")
	}
	if a.d.Subscriber == nil {
		return fmt.Errorf("subscribing is not available")
	}
	res, err := a.d.Subscriber.CheckAndSubscribe(ctx, banner.StreamName)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", banner.StreamName, err)
	}
	switch res {
	case Subscribed:
		s.HideNotSubscribed()
		return nil
	case DoesNotExist:
		s.HideNotSubscribed()
		s.ShowError(ErrStream, fmt.Sprintf("The stream %s does not exist.", banner.StreamName))
		return nil
	default:
		return fmt.Errorf("subscribe %s: not subscribed", banner.StreamName)
	}
}

func (a *Actions) finished() {
	a.d.Session.reset()
	a.d.Session.setOpen(false)
	a.d.Lifecycle.finished()
}
