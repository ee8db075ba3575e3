package session

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const maxNameLen = 64

var (
	nameRegexp = regexp.MustCompile(`^[a-z0-9_-]+$`)
	nameStrip  = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidateName checks that name is usable as a directory under sessions/.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("invalid session name: empty")
	case len(name) > maxNameLen:
		return fmt.Errorf("invalid session name %q: longer than %d characters", name, maxNameLen)
	case !nameRegexp.MatchString(name):
		return fmt.Errorf("invalid session name %q: use lowercase letters, digits, '-' and '_'", name)
	}
	return nil
}

// NameFromRealm derives a session name from a realm URL, so
// "https://chat.zulip.org" becomes "chat-zulip-org". Empty when the URL
// has no host.
func NameFromRealm(realmURL string) string {
	u, err := url.Parse(strings.TrimSpace(realmURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	name := strings.Trim(nameStrip.ReplaceAllString(strings.ToLower(u.Hostname()), "-"), "-")
	if len(name) > maxNameLen {
		name = strings.TrimRight(name[:maxNameLen], "-")
	}
	return name
}
