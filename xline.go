package dircd

import (
	"net"
	"sync"
	"time"

	"github.com/coreircd/dircd/casemap"
)

// XLineType identifies which kind of network ban a XLine entry enforces.
type XLineType byte

const (
	XLineK     XLineType = 'K' // user@host ban, local to this connect
	XLineG     XLineType = 'G' // user@host ban, network-wide
	XLineZ     XLineType = 'Z' // IP/CIDR ban, checked before DNS/ident
	XLineQ     XLineType = 'Q' // forbidden nickname glob
	XLineR     XLineType = 'R' // forbidden realname glob
	XLineCBan  XLineType = 'C' // forbidden channel name glob
)

// XLine is a single network-ban entry: a match pattern, the reason
// shown to the affected user, who set it, when, and an optional
// expiry.
type XLine struct {
	Type    XLineType
	Mask    string
	Reason  string
	Setter  string
	SetAt   int64
	Expires int64 // unix time, 0 means permanent
}

// IsExpired reports whether the line's expiry has passed as of now.
func (x *XLine) IsExpired(now int64) bool {
	return x.Expires != 0 && x.Expires <= now
}

// XLineRegistry holds every XLine, grouped by type, and matches
// connecting/registering users against them.
type XLineRegistry struct {
	mu    sync.RWMutex
	lines map[XLineType][]*XLine
	dirty bool
}

// NewXLineRegistry returns an empty registry.
func NewXLineRegistry() *XLineRegistry {
	return &XLineRegistry{lines: make(map[XLineType][]*XLine)}
}

// Add inserts a new XLine. If an entry of the same type and mask
// already exists it is left as it is and ErrXLineExists is returned.
func (r *XLineRegistry) Add(line *XLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.lines[line.Type] {
		if existing.Mask == line.Mask {
			return ErrXLineExists
		}
	}

	r.lines[line.Type] = append(r.lines[line.Type], line)
	r.dirty = true
	return nil
}

// Remove deletes an XLine of the given type and mask.
func (r *XLineRegistry) Remove(t XLineType, mask string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.lines[t]
	for i, existing := range lines {
		if existing.Mask == mask {
			r.lines[t] = append(lines[:i], lines[i+1:]...)
			r.dirty = true
			return nil
		}
	}

	return ErrXLineNotFound
}

// Sweep drops every expired line across all types, returning how many
// were removed. Intended to be called periodically off a heartbeat.
func (r *XLineRegistry) Sweep(now int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for t, lines := range r.lines {
		kept := lines[:0]
		for _, line := range lines {
			if line.Expires != 0 && line.Expires <= now {
				removed++
				continue
			}
			kept = append(kept, line)
		}
		r.lines[t] = kept
	}
	if removed > 0 {
		r.dirty = true
	}
	return removed
}

// DirtySince reports whether the registry has changed since the last
// call to ClearDirty, without clearing the flag.
func (r *XLineRegistry) DirtySince() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// ClearDirty clears the dirty flag, called after a successful persist.
func (r *XLineRegistry) ClearDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// List returns a snapshot of every XLine of the given type.
func (r *XLineRegistry) List(t XLineType) []*XLine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*XLine, len(r.lines[t]))
	copy(out, r.lines[t])
	return out
}

// MatchHostmask checks a "user@host" string against every line of the
// given type (K or G), returning the first match.
func (r *XLineRegistry) MatchHostmask(t XLineType, userAtHost string, mapping casemap.Mapping) *XLine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := casemap.ForMapping(mapping)
	for _, line := range r.lines[t] {
		if casemap.Glob(line.Mask, userAtHost, table) {
			return line
		}
	}
	return nil
}

// MatchIP checks an IP address against every Z-line CIDR/mask entry.
func (r *XLineRegistry) MatchIP(ip net.IP) *XLine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, line := range r.lines[XLineZ] {
		if _, cidr, err := net.ParseCIDR(line.Mask); err == nil {
			if cidr.Contains(ip) {
				return line
			}
			continue
		}
		if line.Mask == ip.String() {
			return line
		}
	}
	return nil
}

// MatchGlob checks a value (nickname, realname, channel name) against
// every entry of the given glob-matched type.
func (r *XLineRegistry) MatchGlob(t XLineType, value string, mapping casemap.Mapping) *XLine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := casemap.ForMapping(mapping)
	for _, line := range r.lines[t] {
		if casemap.Glob(line.Mask, value, table) {
			return line
		}
	}
	return nil
}

// NewXLine builds a new XLine entry, turning a duration (0 for
// permanent) into an absolute expiry.
func NewXLine(t XLineType, mask, reason, setter string, duration time.Duration) *XLine {
	line := &XLine{
		Type:   t,
		Mask:   mask,
		Reason: reason,
		Setter: setter,
		SetAt:  time.Now().Unix(),
	}
	if duration > 0 {
		line.Expires = line.SetAt + int64(duration.Seconds())
	}
	return line
}
