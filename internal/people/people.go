// Package people keeps the realm's user directory for recipient resolution.
package people

import (
	"sort"
	"strings"
	"sync"

	"github.com/matheus3301/zpp/internal/zulip"
)

// User is a person known to the client.
type User struct {
	ID         int64
	Email      string
	FullName   string
	IsAdmin    bool
	IsActive   bool
	IsBot      bool
	DateJoined int64 // unix seconds, 0 when unknown
	// Inaccessible users are known only by id; their details and presence are hidden.
	Inaccessible bool
}

// Registry is a concurrency-safe user directory keyed by id and lowercased email.
type Registry struct {
	mu      sync.RWMutex
	byID    map[int64]*User
	byEmail map[string]*User
	me      int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[int64]*User),
		byEmail: make(map[string]*User),
	}
}

// FromWire converts a register/event person into a User.
func FromWire(u zulip.User) User {
	return User{
		ID:         u.UserID,
		Email:      u.Email,
		FullName:   u.FullName,
		IsAdmin:    u.IsAdmin,
		IsActive:   u.IsActive,
		IsBot:      u.IsBot,
		DateJoined: u.DateJoinedUnix(),
	}
}

// Add inserts or replaces a user.
func (r *Registry) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[u.ID]; ok {
		delete(r.byEmail, normalize(old.Email))
	}
	cp := u
	r.byID[u.ID] = &cp
	if u.Email != "" {
		r.byEmail[normalize(u.Email)] = &cp
	}
}

// Update merges the non-zero fields of a partial realm_user update.
func (r *Registry) Update(u zulip.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[u.UserID]
	if !ok {
		return
	}
	if u.Email != "" && !strings.EqualFold(u.Email, cur.Email) {
		delete(r.byEmail, normalize(cur.Email))
		cur.Email = u.Email
		r.byEmail[normalize(u.Email)] = cur
	}
	if u.FullName != "" {
		cur.FullName = u.FullName
	}
}

// Deactivate marks a user inactive without forgetting them.
func (r *Registry) Deactivate(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.IsActive = false
	}
}

// SetMe records the current user's id.
func (r *Registry) SetMe(id int64) {
	r.mu.Lock()
	r.me = id
	r.mu.Unlock()
}

// MyUserID returns the current user's id.
func (r *Registry) MyUserID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.me
}

// IsMyUserID reports whether id is the current user.
func (r *Registry) IsMyUserID(id int64) bool {
	return id != 0 && id == r.MyUserID()
}

// IsCurrentUserAdmin reports whether the current user is a realm administrator.
func (r *Registry) IsCurrentUserAdmin() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[r.me]
	return ok && u.IsAdmin
}

// ByID returns a copy of the user with the given id.
func (r *Registry) ByID(id int64) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// ByEmail looks a user up case-insensitively.
func (r *Registry) ByEmail(email string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[normalize(email)]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// IsValidEmailForCompose reports whether a direct message may be addressed
// to email: the user must exist and be active (bots count).
func (r *Registry) IsValidEmailForCompose(email string) bool {
	u, ok := r.ByEmail(email)
	return ok && u.IsActive && !u.Inaccessible
}

// IsAccessible reports whether the current user can see id's details.
func (r *Registry) IsAccessible(id int64) bool {
	u, ok := r.ByID(id)
	return ok && !u.Inaccessible
}

// DateJoined returns when the user joined in unix seconds, 0 when unknown.
func (r *Registry) DateJoined(id int64) int64 {
	u, ok := r.ByID(id)
	if !ok {
		return 0
	}
	return u.DateJoined
}

// IDs returns every known user id in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of known users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// SplitEmails splits a free-text recipient string on commas, trimming blanks.
func SplitEmails(recipient string) []string {
	var out []string
	for _, part := range strings.Split(recipient, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
