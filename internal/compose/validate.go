package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/streams"
	"go.uber.org/zap"
)

// People is the part of the user registry validation and building need.
type People interface {
	ByEmail(email string) (people.User, bool)
	IsValidEmailForCompose(email string) bool
	IsCurrentUserAdmin() bool
}

// Streams is the part of the stream registry validation and building need.
type Streams interface {
	ByName(name string) (streams.Sub, bool)
}

// MirrorStatus reports on the mirroring bridge some realms depend on.
type MirrorStatus interface {
	MirrorDown() bool
}

var (
	blankContent    = regexp.MustCompile(`^\s*$`)
	wildcardMention = regexp.MustCompile(`(^|\s)(@\*\*(all|everyone|stream)\*\*)($|\s)`)
)

// WildcardMention returns the first @**all**, @**everyone** or @**stream**
// mention in content, or "". Silent mentions (@_**all**) do not notify
// anyone and are not returned.
func WildcardMention(content string) string {
	m := wildcardMention.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[2]
}

// Validator decides whether a draft may be sent. Failures are reported on
// the session's banners, never as Go errors.
type Validator struct {
	mu      sync.RWMutex
	cfg     config.Realm
	people  People
	streams Streams
	subs    SubscriptionChecker
	mirror  MirrorStatus
	logger  *zap.Logger
}

// NewValidator creates a validator. subs and mirror may be nil.
func NewValidator(cfg config.Realm, p People, s Streams, subs SubscriptionChecker, mirror MirrorStatus, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{cfg: cfg, people: p, streams: s, subs: subs, mirror: mirror, logger: logger}
}

// SetRealm swaps in reloaded realm settings.
func (v *Validator) SetRealm(cfg config.Realm) {
	v.mu.Lock()
	v.cfg = cfg
	v.mu.Unlock()
}

func (v *Validator) realm() config.Realm {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cfg
}

// Validate runs every rule in order and stops at the first failure. At most
// one error banner is shown. Fan-out warnings block the first attempt only.
func (v *Validator) Validate(ctx context.Context, s *Session) bool {
	s.setStatus(Validating)
	defer s.setStatus(Idle)

	ok := v.validate(ctx, s)
	if ok {
		s.ClearError()
		s.SetSendEnabled(true)
	}
	return ok
}

func (v *Validator) validate(ctx context.Context, s *Session) bool {
	st := s.State()
	cfg := v.realm()

	if blankContent.MatchString(st.Content) {
		return v.fail(s, ErrEmpty, "You have nothing to send!")
	}
	if cfg.RequireMirror && v.mirror != nil && v.mirror.MirrorDown() {
		s.ShowError(ErrMirror, "The mirroring bridge is not running; messages cannot be sent until it is restored.")
		s.SetSendEnabled(false)
		return false
	}
	if st.Type == message.Private {
		return v.validatePrivate(s, st, cfg)
	}
	return v.validateStream(ctx, s, st, cfg)
}

func (v *Validator) validatePrivate(s *Session, st State, cfg config.Realm) bool {
	emails := people.SplitEmails(st.PrivateRecipient)
	if len(emails) == 0 {
		return v.fail(s, ErrRecipient, "Please specify at least one valid recipient.")
	}
	if cfg.MirrorRealm {
		return true
	}
	var invalid []string
	for _, email := range emails {
		if !v.people.IsValidEmailForCompose(email) {
			invalid = append(invalid, email)
		}
	}
	switch len(invalid) {
	case 0:
		return true
	case 1:
		return v.fail(s, ErrRecipient, fmt.Sprintf("The recipient %s is not valid.", invalid[0]), invalid...)
	default:
		return v.fail(s, ErrRecipient, fmt.Sprintf("The recipients %s are not valid.", strings.Join(invalid, ", ")), invalid...)
	}
}

func (v *Validator) validateStream(ctx context.Context, s *Session, st State, cfg config.Realm) bool {
	name := strings.TrimSpace(st.StreamName)
	if name == "" {
		return v.fail(s, ErrStream, "Please specify a stream.")
	}
	if cfg.MandatoryTopics {
		topic := strings.TrimSpace(st.Topic)
		if topic == "" || topic == cfg.EmptyTopicPlaceholder {
			return v.fail(s, ErrTopic, "Topics are required in this organization.")
		}
	}

	sub, known := v.streams.ByName(name)
	if known && sub.PostPolicy == streams.PostAdminsOnly && !v.people.IsCurrentUserAdmin() {
		return v.fail(s, ErrPostPolicy, "Only organization administrators can post to this stream.")
	}

	mention := WildcardMention(st.Content)
	isAnnounce := cfg.AnnounceStream != "" && strings.EqualFold(name, cfg.AnnounceStream)

	if !v.checkWildcard(s, mention, sub, cfg) {
		return false
	}
	// A wildcard mention in the announce stream was confirmed above; one
	// confirmation is enough.
	if !(mention != "" && isAnnounce) && !v.checkAnnounce(s, isAnnounce, sub, cfg) {
		return false
	}
	return v.ValidateStreamMessageAddressInfo(ctx, s, name)
}

func (v *Validator) checkWildcard(s *Session, mention string, sub streams.Sub, cfg config.Realm) bool {
	if mention != "" && sub.SubscriberCount > cfg.AllEveryoneWarnThreshold {
		if s.AllEveryoneAck() != AckGiven {
			s.showWildcard(Warning{StreamName: sub.Name, SubscriberCount: sub.SubscriberCount})
			s.SetSendEnabled(true)
			return false
		}
	} else {
		s.ClearAllEveryoneWarnings()
	}
	s.resetAllEveryoneAck()
	return true
}

func (v *Validator) checkAnnounce(s *Session, isAnnounce bool, sub streams.Sub, cfg config.Realm) bool {
	if isAnnounce && sub.SubscriberCount > cfg.AnnounceWarnThreshold {
		if s.AnnounceAck() != AckGiven {
			s.showAnnounce(Warning{StreamName: sub.Name, SubscriberCount: sub.SubscriberCount})
			s.SetSendEnabled(true)
			return false
		}
	} else {
		s.ClearAnnounceWarnings()
	}
	s.resetAnnounceAck()
	return true
}

// ValidateStreamMessageAddressInfo checks that the user can post to the
// named stream. When they are not subscribed and are currently viewing that
// stream, the server is asked to subscribe them; otherwise a not-subscribed
// banner offering a subscribe button is shown.
func (v *Validator) ValidateStreamMessageAddressInfo(ctx context.Context, s *Session, name string) bool {
	if sub, ok := v.streams.ByName(name); ok && sub.Subscribed {
		return true
	}
	if !strings.EqualFold(strings.TrimSpace(s.Narrow()), name) || v.subs == nil {
		s.showNotSubscribed(name)
		s.SetSendEnabled(true)
		return false
	}

	s.setStatus(AwaitingSubscribeCheck)
	res, err := v.subs.CheckAndSubscribe(ctx, name)
	s.setStatus(Validating)
	if err != nil {
		v.logger.Warn("subscription check failed", zap.String("stream", name), zap.Error(err))
		return v.fail(s, ErrSubscription, "Error checking subscription.")
	}
	switch res {
	case Subscribed:
		s.HideNotSubscribed()
		return true
	case DoesNotExist:
		return v.fail(s, ErrStream, fmt.Sprintf("The stream %s does not exist.", name))
	default:
		s.showNotSubscribed(name)
		s.SetSendEnabled(true)
		return false
	}
}

// fail shows an input error. The send control is re-enabled so the user can
// correct the draft and try again.
func (v *Validator) fail(s *Session, kind ErrorKind, text string, invalid ...string) bool {
	s.ShowError(kind, text, invalid...)
	s.SetSendEnabled(true)
	return false
}
