package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileUploader stores a file on the server and returns its link target.
type FileUploader interface {
	UploadFile(ctx context.Context, filename string, r io.Reader) (string, error)
}

// UploadHandle tracks one in-flight upload. The send control stays disabled
// while any upload is in flight.
type UploadHandle struct {
	ID   string
	Name string

	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	release func()
	url     string
	err     error
}

// Abort cancels the upload and releases the handle. It does not touch
// messages that were already dispatched.
func (h *UploadHandle) Abort() {
	h.cancel()
	h.once.Do(h.release)
}

// Done is closed when the upload finishes or is aborted.
func (h *UploadHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the upload ends and returns the uploaded link target.
func (h *UploadHandle) Wait() (string, error) {
	<-h.done
	return h.url, h.err
}

// Upload starts uploading r in the background. ctx bounds the transfer. On
// success a markdown link is appended to the draft, unless that draft has
// been sent or discarded in the meantime.
func (a *Actions) Upload(ctx context.Context, name string, r io.Reader) (*UploadHandle, error) {
	if a.d.Uploader == nil {
		return nil, fmt.Errorf("uploads are not available")
	}
	uctx, cancel := context.WithCancel(ctx)
	h := &UploadHandle{
		ID:     uuid.NewString(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.release = func() { a.releaseUpload(h.ID) }
	gen := a.d.Session.Generation()

	a.mu.Lock()
	a.uploads[h.ID] = h
	a.mu.Unlock()
	a.d.Session.SetSendEnabled(false)

	go func() {
		defer close(h.done)
		defer cancel()
		url, err := a.d.Uploader.UploadFile(uctx, name, r)
		h.url, h.err = url, err
		switch {
		case err == nil:
			if !a.d.Session.UpdateIf(gen, func(st *State) { st.Content = appendLink(st.Content, name, url) }) {
				a.d.Logger.Info("upload finished after its draft was closed", zap.String("upload_id", h.ID), zap.String("name", name))
				break
			}
			a.d.Session.clearErrorKind(ErrUpload)
		case errors.Is(err, context.Canceled):
			a.d.Logger.Info("upload aborted", zap.String("upload_id", h.ID), zap.String("name", name))
		default:
			a.d.Logger.Warn("upload failed", zap.String("upload_id", h.ID), zap.Error(err))
			a.d.Session.ShowError(ErrUpload, fmt.Sprintf("Upload of %s failed: %v", name, err))
		}
		h.once.Do(h.release)
	}()
	return h, nil
}

// AbortUpload aborts the upload with the given handle id.
func (a *Actions) AbortUpload(id string) bool {
	a.mu.Lock()
	h, ok := a.uploads[id]
	a.mu.Unlock()
	if ok {
		h.Abort()
	}
	return ok
}

// Uploads returns the in-flight upload count.
func (a *Actions) Uploads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.uploads)
}

func (a *Actions) releaseUpload(id string) {
	a.mu.Lock()
	delete(a.uploads, id)
	idle := len(a.uploads) == 0
	a.mu.Unlock()
	if idle {
		a.d.Session.SetSendEnabled(true)
	}
}

func (a *Actions) abortUploads() {
	a.mu.Lock()
	handles := make([]*UploadHandle, 0, len(a.uploads))
	for _, h := range a.uploads {
		handles = append(handles, h)
	}
	a.mu.Unlock()
	for _, h := range handles {
		h.Abort()
	}
}

func appendLink(content, name, url string) string {
	link := fmt.Sprintf("[%s](%s)", name, url)
	if content == "" || strings.HasSuffix(content, "\n") || strings.HasSuffix(content, " ") {
		return content + link
	}
	return content + " " + link
}
