package message

import "fmt"

// LocalKind tells which path minted a local id.
type LocalKind int

const (
	// KindEchoed ids ("<n>.<seq>") belong to a locally rendered message.
	KindEchoed LocalKind = iota + 1
	// KindTrackedOnly ids ("loc-<n>") are tracked without a local render.
	KindTrackedOnly
)

func (k LocalKind) String() string {
	switch k {
	case KindEchoed:
		return "echoed"
	case KindTrackedOnly:
		return "tracked"
	default:
		return "unknown"
	}
}

// ParseLocalKind is the inverse of LocalKind.String.
func ParseLocalKind(s string) (LocalKind, error) {
	switch s {
	case "echoed":
		return KindEchoed, nil
	case "tracked":
		return KindTrackedOnly, nil
	default:
		return 0, fmt.Errorf("unknown local id kind %q", s)
	}
}

// LocalID is the client-side correlation key of a send attempt. The kind is
// carried explicitly and never inferred from the value.
type LocalID struct {
	kind  LocalKind
	value string
}

// Echoed wraps an id minted for a locally rendered message.
func Echoed(value string) LocalID { return LocalID{kind: KindEchoed, value: value} }

// TrackedOnly wraps a placeholder id for a message that was not rendered locally.
func TrackedOnly(value string) LocalID { return LocalID{kind: KindTrackedOnly, value: value} }

// ParseLocalID rebuilds a LocalID from its stored kind and value.
func ParseLocalID(kind, value string) (LocalID, error) {
	k, err := ParseLocalKind(kind)
	if err != nil {
		return LocalID{}, err
	}
	if value == "" {
		return LocalID{}, fmt.Errorf("empty local id")
	}
	return LocalID{kind: k, value: value}, nil
}

func (id LocalID) Kind() LocalKind { return id.kind }
func (id LocalID) String() string  { return id.value }
func (id LocalID) IsZero() bool    { return id.value == "" }
func (id LocalID) IsEchoed() bool  { return id.kind == KindEchoed }
