package compose

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
)

// ErrUnknownRecipient is returned when a private recipient is not a known user.
var ErrUnknownRecipient = errors.New("unknown recipient")

// Builder turns a validated draft into an outbound message.
type Builder struct {
	mu         sync.RWMutex
	cfg        config.Realm
	uploadLink *regexp.Regexp
	people     People
	streams    Streams
}

// NewBuilder creates a builder for the realm at realmURL.
func NewBuilder(cfg config.Realm, realmURL string, p People, s Streams) *Builder {
	b := &Builder{cfg: cfg, people: p, streams: s}
	if realmURL = strings.TrimRight(realmURL, "/"); realmURL != "" {
		b.uploadLink = regexp.MustCompile(`\]\(` + regexp.QuoteMeta(realmURL) + `/user_uploads/`)
	}
	return b
}

// SetRealm swaps in reloaded realm settings.
func (b *Builder) SetRealm(cfg config.Realm) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

// RewriteUploadLinks turns absolute links to this realm's uploads into
// domain-relative ones.
func (b *Builder) RewriteUploadLinks(content string) string {
	if b.uploadLink == nil {
		return content
	}
	return b.uploadLink.ReplaceAllLiteralString(content, "](/user_uploads/")
}

// CreateMessageObject builds the message for one send attempt.
func (b *Builder) CreateMessageObject(st State, senderID int64) (*message.Outbound, error) {
	b.mu.RLock()
	cfg := b.cfg
	b.mu.RUnlock()

	msg := &message.Outbound{
		Type:     st.Type,
		Content:  b.RewriteUploadLinks(st.Content),
		SenderID: senderID,
	}
	switch st.Type {
	case message.Private:
		ids, replyTo, unresolved, err := b.resolveRecipients(st.PrivateRecipient, cfg.MirrorRealm)
		if err != nil {
			return nil, err
		}
		msg.To = ids
		msg.ReplyTo = replyTo
		msg.Unresolved = unresolved
	case message.Stream, "":
		msg.Type = message.Stream
		msg.Stream = strings.TrimSpace(st.StreamName)
		msg.Topic = strings.TrimSpace(st.Topic)
		if msg.Topic == "" {
			msg.Topic = cfg.EmptyTopicPlaceholder
		}
		msg.StreamID = st.StreamID
		if sub, ok := b.streams.ByName(msg.Stream); ok {
			msg.StreamID = sub.StreamID
		}
	default:
		return nil, fmt.Errorf("unknown recipient type %q", st.Type)
	}
	return msg, nil
}

// resolveRecipients maps addresses to user ids in order, dropping
// duplicates. On a mirror realm unknown addresses stay in the reply-to list
// and are also returned as unresolved.
func (b *Builder) resolveRecipients(recipient string, mirror bool) ([]int64, string, []string, error) {
	var (
		ids        []int64
		emails     []string
		unresolved []string
		seenID     = make(map[int64]bool)
		seenRaw    = make(map[string]bool)
	)
	for _, email := range people.SplitEmails(recipient) {
		u, ok := b.people.ByEmail(email)
		if !ok {
			if !mirror {
				return nil, "", nil, fmt.Errorf("%w: %s", ErrUnknownRecipient, email)
			}
			key := strings.ToLower(email)
			if !seenRaw[key] {
				seenRaw[key] = true
				emails = append(emails, email)
				unresolved = append(unresolved, email)
			}
			continue
		}
		if seenID[u.ID] {
			continue
		}
		seenID[u.ID] = true
		ids = append(ids, u.ID)
		emails = append(emails, u.Email)
	}
	return ids, strings.Join(emails, ", "), unresolved, nil
}
