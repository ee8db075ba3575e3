package people

import (
	"testing"

	"github.com/matheus3301/zpp/internal/zulip"
	"github.com/stretchr/testify/require"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Add(User{ID: 1, Email: "Alice@X.com", IsActive: true})

	u, ok := r.ByEmail("alice@x.com ")
	require.True(t, ok)
	require.Equal(t, int64(1), u.ID)
	require.True(t, r.IsValidEmailForCompose("ALICE@x.com"))
}

func TestInactiveAndInaccessibleAreNotValidRecipients(t *testing.T) {
	r := NewRegistry()
	r.Add(User{ID: 1, Email: "gone@x.com", IsActive: false})
	r.Add(User{ID: 2, Email: "hidden@x.com", IsActive: true, Inaccessible: true})

	require.False(t, r.IsValidEmailForCompose("gone@x.com"))
	require.False(t, r.IsValidEmailForCompose("hidden@x.com"))
	require.False(t, r.IsValidEmailForCompose("nobody@x.com"))
	require.False(t, r.IsAccessible(2))
}

func TestUpdateRenamesEmail(t *testing.T) {
	r := NewRegistry()
	r.Add(User{ID: 1, Email: "old@x.com", FullName: "Old", IsActive: true})
	r.Update(zulip.User{UserID: 1, Email: "new@x.com"})

	_, ok := r.ByEmail("old@x.com")
	require.False(t, ok)
	u, ok := r.ByEmail("new@x.com")
	require.True(t, ok)
	require.Equal(t, "Old", u.FullName)

	r.Deactivate(1)
	require.False(t, r.IsValidEmailForCompose("new@x.com"))
}

func TestCurrentUserAdmin(t *testing.T) {
	r := NewRegistry()
	r.Add(User{ID: 5, Email: "me@x.com", IsAdmin: true, IsActive: true})
	require.False(t, r.IsCurrentUserAdmin())

	r.SetMe(5)
	require.True(t, r.IsCurrentUserAdmin())
	require.True(t, r.IsMyUserID(5))
	require.False(t, r.IsMyUserID(0))
}

func TestSplitEmails(t *testing.T) {
	require.Equal(t, []string{"a@x.com", "b@x.com"}, SplitEmails(" a@x.com, ,b@x.com ,"))
	require.Nil(t, SplitEmails("  "))
}

func TestFromWire(t *testing.T) {
	u := FromWire(zulip.User{UserID: 3, Email: "c@x.com", IsActive: true, DateJoined: "2021-06-01T00:00:00Z"})
	require.Equal(t, int64(3), u.ID)
	require.Equal(t, int64(1622505600), u.DateJoined)
}
