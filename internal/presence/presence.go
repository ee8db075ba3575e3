// Package presence derives active/idle/offline status from raw presence
// timestamps reported by the server.
package presence

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/zulip"
)

// Status is one of the three derived presence states.
type Status string

const (
	Active  Status = "active"
	Idle    Status = "idle"
	Offline Status = "offline"
)

// Info is the derived presence of one user.
type Info struct {
	Status Status
	// LastActive is in unix seconds; 0 when unknown.
	LastActive int64
}

// Users is the slice of the people registry the model needs.
type Users interface {
	IsMyUserID(id int64) bool
	IsAccessible(id int64) bool
	DateJoined(id int64) int64
}

// Update is the payload of a presence.updated event.
type Update struct {
	UserID int64
	Info   Info
}

// Model holds raw timestamps and derived status per user. It is safe for
// concurrent use.
type Model struct {
	mu              sync.RWMutex
	cfg             config.Presence
	users           Users
	pub             bus.Publisher
	raw             map[int64]zulip.RawPresence
	info            map[int64]Info
	serverTimestamp int64
	lastUpdateID    int64
	// serverThreshold, once the server reports one, wins over the config.
	serverThreshold int64
}

// New creates an empty model. pub may be nil.
func New(cfg config.Presence, users Users, pub bus.Publisher) *Model {
	return &Model{
		cfg:          cfg,
		users:        users,
		pub:          pub,
		raw:          make(map[int64]zulip.RawPresence),
		info:         make(map[int64]Info),
		lastUpdateID: -1,
	}
}

// SetOfflineThreshold records the server's threshold, which replaces the
// configured one from then on.
func (m *Model) SetOfflineThreshold(seconds int64) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.serverThreshold = seconds
	m.mu.Unlock()
}

// SetConfigThreshold updates the configured fallback threshold.
func (m *Model) SetConfigThreshold(seconds int64) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.cfg.OfflineThresholdSeconds = seconds
	m.mu.Unlock()
}

func (m *Model) thresholdLocked() int64 {
	if m.serverThreshold > 0 {
		return m.serverThreshold
	}
	return m.cfg.OfflineThresholdSeconds
}

// SetShareEnabled toggles whether the current user appears active.
func (m *Model) SetShareEnabled(enabled bool) {
	m.mu.Lock()
	m.cfg.ShareEnabled = enabled
	if self, ok := m.selfLocked(); ok {
		m.info[self] = m.deriveLocked(m.raw[self], self)
	}
	m.mu.Unlock()
}

// StatusFromRaw derives a user's presence from raw timestamps using the
// most recent server timestamp as "now".
func (m *Model) StatusFromRaw(raw zulip.RawPresence, userID int64) Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deriveLocked(raw, userID)
}

func (m *Model) deriveLocked(raw zulip.RawPresence, userID int64) Info {
	info := derive(raw, m.serverTimestamp, m.thresholdLocked(), m.dateJoined(userID))
	if m.users != nil && m.users.IsMyUserID(userID) {
		if m.cfg.ShareEnabled {
			info.Status = Active
		} else {
			info.Status = Offline
		}
	}
	return info
}

func derive(raw zulip.RawPresence, now, threshold, dateJoined int64) Info {
	if raw.ActiveTimestamp > 0 && now-raw.ActiveTimestamp < threshold {
		return Info{Status: Active, LastActive: raw.ActiveTimestamp}
	}
	if raw.IdleTimestamp > 0 && now-raw.IdleTimestamp < threshold {
		return Info{Status: Idle, LastActive: max(raw.ActiveTimestamp, raw.IdleTimestamp)}
	}
	return Info{Status: Offline, LastActive: max(raw.ActiveTimestamp, dateJoined)}
}

// SetInfo replaces the whole presence map from a register or ping response.
// Users that were active or idle but are missing from presences are
// re-derived with no timestamps, which downgrades them.
func (m *Model) SetInfo(presences map[int64]zulip.RawPresence, serverTimestamp, updateID int64) {
	m.mu.Lock()
	m.serverTimestamp = serverTimestamp
	m.lastUpdateID = updateID

	next := make(map[int64]zulip.RawPresence, len(presences))
	for id, raw := range presences {
		if !m.accessible(id) {
			continue
		}
		next[id] = raw
	}
	for id, prev := range m.info {
		if _, ok := next[id]; ok || prev.Status == Offline {
			continue
		}
		if m.accessible(id) {
			next[id] = zulip.RawPresence{}
		}
	}

	m.raw = next
	m.info = make(map[int64]Info, len(next))
	updates := make([]Update, 0, len(next))
	for id, raw := range next {
		info := m.deriveLocked(raw, id)
		m.info[id] = info
		updates = append(updates, Update{UserID: id, Info: info})
	}
	m.mu.Unlock()

	m.publish(updates...)
}

// UpdateInfo applies a single presence event. Timestamps only move forward.
func (m *Model) UpdateInfo(userID int64, raw zulip.RawPresence, serverTimestamp int64) {
	m.mu.Lock()
	if serverTimestamp > m.serverTimestamp {
		m.serverTimestamp = serverTimestamp
	}
	if !m.accessible(userID) {
		delete(m.raw, userID)
		delete(m.info, userID)
		m.mu.Unlock()
		return
	}
	cur := m.raw[userID]
	cur.ActiveTimestamp = max(cur.ActiveTimestamp, raw.ActiveTimestamp)
	cur.IdleTimestamp = max(cur.IdleTimestamp, raw.IdleTimestamp)
	m.raw[userID] = cur
	info := m.deriveLocked(cur, userID)
	m.info[userID] = info
	m.mu.Unlock()

	m.publish(Update{UserID: userID, Info: info})
}

// Forget drops a user, e.g. when they become inaccessible.
func (m *Model) Forget(userID int64) {
	m.mu.Lock()
	delete(m.raw, userID)
	delete(m.info, userID)
	m.mu.Unlock()
}

// Info returns the derived presence of a user and whether an entry exists.
// Callers that care about accessibility must treat a missing entry
// differently from Offline.
func (m *Model) Info(userID int64) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.info[userID]
	return info, ok
}

// GetStatus returns the user's status, Offline when unknown.
func (m *Model) GetStatus(userID int64) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.users != nil && m.users.IsMyUserID(userID) {
		if m.cfg.ShareEnabled {
			return Active
		}
		return Offline
	}
	if info, ok := m.info[userID]; ok {
		return info.Status
	}
	return Offline
}

// LastActive returns the user's last active time in unix seconds, 0 when unknown.
func (m *Model) LastActive(userID int64) int64 {
	info, _ := m.Info(userID)
	return info.LastActive
}

// Has reports whether the user has a presence entry.
func (m *Model) Has(userID int64) bool {
	_, ok := m.Info(userID)
	return ok
}

// UserIDs returns the ids with a presence entry in ascending order.
func (m *Model) UserIDs() []int64 {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.info))
	for id := range m.info {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LastUpdateID returns the update id of the last bulk snapshot, -1 before any.
func (m *Model) LastUpdateID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdateID
}

// ServerTimestamp returns the "now" used for derivation.
func (m *Model) ServerTimestamp() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serverTimestamp
}

func (m *Model) selfLocked() (int64, bool) {
	if m.users == nil {
		return 0, false
	}
	for id := range m.info {
		if m.users.IsMyUserID(id) {
			return id, true
		}
	}
	return 0, false
}

func (m *Model) accessible(id int64) bool {
	return m.users == nil || m.users.IsAccessible(id)
}

func (m *Model) dateJoined(id int64) int64 {
	if m.users == nil {
		return 0
	}
	return m.users.DateJoined(id)
}

func (m *Model) publish(updates ...Update) {
	if m.pub == nil {
		return
	}
	for _, u := range updates {
		m.pub.Publish(bus.Event{Kind: bus.PresenceUpdated, Timestamp: time.Now(), Payload: u})
	}
}

// ParseKeyed converts the string-keyed wire map into user ids, skipping
// keys that are not numeric (legacy email keys).
func ParseKeyed(in map[string]zulip.RawPresence) map[int64]zulip.RawPresence {
	out := make(map[int64]zulip.RawPresence, len(in))
	for k, v := range in {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}
