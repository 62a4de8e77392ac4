package dircd

import "github.com/coreircd/dircd/shared/concurrentmap"

// UserMap holds a set of Users keyed by casefolded nick, used for the
// server's global nick table and for per-channel membership rank lists.
type UserMap = concurrentmap.ConcurrentMap[string, *User]

// NewUserMap initializes a new UserMap.
func NewUserMap() UserMap {
	return concurrentmap.New[string, *User]()
}

// StringSet holds a set of strings (masks, account names) keyed by
// their own value, used for one-shot exemption sets where only
// membership matters and no setter/time needs tracking.
type StringSet = concurrentmap.ConcurrentMap[string, string]

// NewStringSet initializes a new StringSet.
func NewStringSet() StringSet {
	return concurrentmap.New[string, string]()
}

// ListEntry is a single record in a channel list mode (ban, ban
// exception, invite exception): who set it and when, per the
// ListModeEntry data model.
type ListEntry struct {
	Setter string
	SetAt  int64
}

// ListSet holds a channel list mode's entries keyed by mask.
type ListSet = concurrentmap.ConcurrentMap[string, ListEntry]

// NewListSet initializes a new empty ListSet.
func NewListSet() ListSet {
	return concurrentmap.New[string, ListEntry]()
}
