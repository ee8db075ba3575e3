package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/zpp/internal/api"
)

// Daemon is the part of the daemon API the TUI drives.
type Daemon interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	Compose(ctx context.Context) (*api.ComposeView, error)
	StartCompose(ctx context.Context, req *api.StartRequest) (*api.ComposeView, error)
	UpdateCompose(ctx context.Context, req *api.UpdateRequest) (*api.ComposeView, error)
	CancelCompose(ctx context.Context) (*api.ComposeView, error)
	FinishCompose(ctx context.Context) (*api.SendResponse, error)
	ConfirmWildcard(ctx context.Context) (*api.SendResponse, error)
	ConfirmAnnounce(ctx context.Context) (*api.SendResponse, error)
	Subscribe(ctx context.Context) (*api.ComposeView, error)
	Upload(ctx context.Context, name string, data []byte) (*api.UploadResponse, error)
	Presence(ctx context.Context) (*api.PresenceList, error)
	Messages(ctx context.Context, limit int) (*api.MessageList, error)
	Resend(ctx context.Context, localID string) (*api.SendResponse, error)
	ConfirmUnsent(ctx context.Context) (*api.SendResponse, error)
	CancelUnsent(ctx context.Context) (*api.UnsentView, error)
	Watch(ctx context.Context, namespaces []string, fn func(*api.Event) error) error
}

// MessageLimit is how many recent messages the message list shows.
const MessageLimit = 100

// ViewModel caches daemon state and signals UI refreshes. Every change
// pushed by the daemon's event stream reloads the affected part.
type ViewModel struct {
	mu sync.RWMutex

	client   Daemon
	status   *api.StatusResponse
	compose  *api.ComposeView
	presence []api.PresenceEntry
	messages []api.Message

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Daemon) *ViewModel {
	return &ViewModel{
		client:    c,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadAll fetches everything the screen shows.
func (vm *ViewModel) LoadAll(ctx context.Context) error {
	return errors.Join(
		vm.LoadStatus(ctx),
		vm.LoadCompose(ctx),
		vm.LoadPresence(ctx),
		vm.LoadMessages(ctx),
	)
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadCompose fetches the compose box.
func (vm *ViewModel) LoadCompose(ctx context.Context) error {
	v, err := vm.client.Compose(ctx)
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// LoadPresence fetches the presence list.
func (vm *ViewModel) LoadPresence(ctx context.Context) error {
	resp, err := vm.client.Presence(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.presence = resp.Users
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadMessages fetches recently sent messages.
func (vm *ViewModel) LoadMessages(ctx context.Context) error {
	resp, err := vm.client.Messages(ctx, MessageLimit)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.messages = resp.Messages
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

func (vm *ViewModel) setCompose(v *api.ComposeView) {
	if v == nil {
		return
	}
	vm.mu.Lock()
	vm.compose = v
	vm.mu.Unlock()
	vm.signalRefresh()
}

// StartStream opens the compose box addressed to a stream and topic.
func (vm *ViewModel) StartStream(ctx context.Context, stream, topic string) error {
	v, err := vm.client.StartCompose(ctx, &api.StartRequest{Type: "stream", Stream: stream, Topic: topic, Trigger: "tui"})
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// StartPrivate opens the compose box addressed to a list of emails.
func (vm *ViewModel) StartPrivate(ctx context.Context, recipients string) error {
	v, err := vm.client.StartCompose(ctx, &api.StartRequest{Type: "private", PrivateRecipient: recipients, Trigger: "tui"})
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// Update pushes local edits of the draft.
func (vm *ViewModel) Update(ctx context.Context, req *api.UpdateRequest) error {
	v, err := vm.client.UpdateCompose(ctx, req)
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// Cancel closes the compose box.
func (vm *ViewModel) Cancel(ctx context.Context) error {
	v, err := vm.client.CancelCompose(ctx)
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// Send runs the send pipeline on the open draft.
func (vm *ViewModel) Send(ctx context.Context) (*api.SendResponse, error) {
	return vm.sent(vm.client.FinishCompose(ctx))
}

// Confirm acknowledges whichever fan-out warning is shown and sends.
func (vm *ViewModel) Confirm(ctx context.Context) (*api.SendResponse, error) {
	v := vm.GetCompose()
	switch {
	case v != nil && len(v.Banners.Wildcard) > 0:
		return vm.sent(vm.client.ConfirmWildcard(ctx))
	case v != nil && len(v.Banners.Announce) > 0:
		return vm.sent(vm.client.ConfirmAnnounce(ctx))
	default:
		return nil, errors.New("no warning to confirm")
	}
}

// Subscribe answers the not-subscribed banner.
func (vm *ViewModel) Subscribe(ctx context.Context) error {
	v, err := vm.client.Subscribe(ctx)
	if err != nil {
		return err
	}
	vm.setCompose(v)
	return nil
}

// Upload attaches a file to the draft.
func (vm *ViewModel) Upload(ctx context.Context, name string, data []byte) (string, error) {
	resp, err := vm.client.Upload(ctx, name, data)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ConfirmUnsent sends the restored draft on offer.
func (vm *ViewModel) ConfirmUnsent(ctx context.Context) (*api.SendResponse, error) {
	return vm.sent(vm.client.ConfirmUnsent(ctx))
}

// CancelUnsent discards the restored draft on offer.
func (vm *ViewModel) CancelUnsent(ctx context.Context) error {
	if _, err := vm.client.CancelUnsent(ctx); err != nil {
		return err
	}
	return vm.LoadCompose(ctx)
}

// Resend retries a failed echoed message.
func (vm *ViewModel) Resend(ctx context.Context, localID string) (*api.SendResponse, error) {
	resp, err := vm.client.Resend(ctx, localID)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("resend %s: %s", localID, resp.Error)
	}
	return resp, nil
}

func (vm *ViewModel) sent(resp *api.SendResponse, err error) (*api.SendResponse, error) {
	if err != nil {
		return nil, err
	}
	vm.setCompose(resp.View)
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// ApplyEvent reloads whatever the event touched.
func (vm *ViewModel) ApplyEvent(ctx context.Context, evt *api.Event) error {
	ns, _, _ := strings.Cut(evt.Kind, ".")
	switch ns {
	case "compose", "unsent":
		return vm.LoadCompose(ctx)
	case "message":
		return vm.LoadMessages(ctx)
	case "presence":
		return vm.LoadPresence(ctx)
	case "events", "config":
		return vm.LoadStatus(ctx)
	}
	return nil
}

// Watch follows the daemon's event stream until ctx ends.
func (vm *ViewModel) Watch(ctx context.Context, onError func(error)) error {
	return vm.client.Watch(ctx, nil, func(evt *api.Event) error {
		if err := vm.ApplyEvent(ctx, evt); err != nil && onError != nil {
			onError(err)
		}
		return nil
	})
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// GetCompose returns a snapshot of the compose box.
func (vm *ViewModel) GetCompose() *api.ComposeView {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.compose
}

// GetPresence returns a snapshot of the presence list.
func (vm *ViewModel) GetPresence() []api.PresenceEntry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.presence
}

// GetMessages returns a snapshot of recent messages.
func (vm *ViewModel) GetMessages() []api.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}
