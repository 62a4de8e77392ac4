package dircd

import "github.com/btnmasher/random"

// uidLen is the length of the random suffix appended to a server's
// numeric to build a client UID, eg "001ABCDEF".
const uidLen = 6

// NewUID returns a unique client identifier scoped to the given server
// numeric. UIDs are used internally for client identity across the
// extension and broadcast layers and are never parsed from the wire.
func NewUID(serverNumeric string) string {
	return serverNumeric + random.String(uidLen)
}
