package audience

import "fmt"

// SelectorKind enumerates the supported target selector variants.
type SelectorKind string

const (
	// SelectAllUsers targets every device in the directory.
	SelectAllUsers SelectorKind = "all_users"

	// SelectGroup targets a named group's precomputed token set.
	SelectGroup SelectorKind = "group"

	// SelectDevices targets an explicit console selection of device records.
	SelectDevices SelectorKind = "devices"

	// SelectTokens targets a persisted raw token list. Used when a stored
	// notification's targetTokens are re-resolved at scheduled dispatch time.
	SelectTokens SelectorKind = "tokens"
)

// Selector is a symbolic description of intended recipients before
// resolution to delivery tokens. Exactly one variant's fields are set,
// according to Kind.
type Selector struct {
	Kind SelectorKind

	// SelectGroup
	GroupID string

	// SelectDevices
	DeviceIDs []string
	Devices   []User

	// SelectTokens
	Tokens []string
}

// AllUsers targets the entire device directory.
func AllUsers() Selector {
	return Selector{Kind: SelectAllUsers}
}

// ByGroup targets the precomputed token set of the given group.
func ByGroup(groupID string) Selector {
	return Selector{Kind: SelectGroup, GroupID: groupID}
}

// ExplicitDevices targets the device records in catalogue whose identity is
// in ids.
func ExplicitDevices(ids []string, catalogue []User) Selector {
	return Selector{Kind: SelectDevices, DeviceIDs: ids, Devices: catalogue}
}

// ExplicitTokens targets an already-materialized token list.
func ExplicitTokens(tokens []string) Selector {
	return Selector{Kind: SelectTokens, Tokens: tokens}
}

// FromPersisted reconstructs the selector encoded in a stored notification's
// userGroup/targetTokens fields. An absent userGroup with no tokens is the
// wire form of the AllUsers selector.
func FromPersisted(groupID string, tokens []string) Selector {
	switch {
	case groupID != "":
		return ByGroup(groupID)
	case len(tokens) > 0:
		return ExplicitTokens(tokens)
	default:
		return AllUsers()
	}
}

// String identifies the selector in errors and logs.
func (s Selector) String() string {
	switch s.Kind {
	case SelectGroup:
		return fmt.Sprintf("group %q", s.GroupID)
	case SelectDevices:
		return fmt.Sprintf("%d selected devices", len(s.DeviceIDs))
	case SelectTokens:
		return fmt.Sprintf("%d stored tokens", len(s.Tokens))
	default:
		return "all users"
	}
}
