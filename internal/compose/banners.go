package compose

import "slices"

// ErrorKind classifies the compose error banner.
type ErrorKind string

const (
	ErrEmpty        ErrorKind = "empty"
	ErrMirror       ErrorKind = "mirror"
	ErrRecipient    ErrorKind = "recipient"
	ErrStream       ErrorKind = "stream"
	ErrTopic        ErrorKind = "topic"
	ErrPostPolicy   ErrorKind = "post_policy"
	ErrSubscription ErrorKind = "subscription"
	ErrBuild        ErrorKind = "build"
	ErrSend         ErrorKind = "send"
	ErrUpload       ErrorKind = "upload"
)

// ErrorBanner is the single error shown under the compose box.
type ErrorBanner struct {
	Kind ErrorKind
	Text string
	// Invalid lists the offending addresses for ErrRecipient.
	Invalid []string
}

// Warning is one fan-out confirmation entry.
type Warning struct {
	StreamName      string
	SubscriberCount int
}

// WarningArea is a confirmation area (wildcard mention or announce stream).
type WarningArea struct {
	Visible bool
	Entries []Warning
}

func (w *WarningArea) show(entry Warning) {
	w.Visible = true
	if !slices.Contains(w.Entries, entry) {
		w.Entries = append(w.Entries, entry)
	}
}

func (w *WarningArea) clear() {
	w.Visible = false
	w.Entries = nil
}

// SubscribeBanner is the banner shown when sending to a stream the user is not in.
type SubscribeBanner struct {
	Visible      bool
	StreamName   string
	CanSubscribe bool
}

// Banners is everything the compose box shows besides the draft itself.
type Banners struct {
	Error         *ErrorBanner
	Wildcard      WarningArea
	Announce      WarningArea
	NotSubscribed SubscribeBanner
	SendEnabled   bool
}

func (b Banners) clone() Banners {
	out := b
	if b.Error != nil {
		e := *b.Error
		e.Invalid = slices.Clone(b.Error.Invalid)
		out.Error = &e
	}
	out.Wildcard.Entries = slices.Clone(b.Wildcard.Entries)
	out.Announce.Entries = slices.Clone(b.Announce.Entries)
	return out
}
