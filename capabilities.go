/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import (
	"sort"
	"strings"
)

// capValue holds the advertised value of a capability, shown in CAP LS
// replies (eg: "sasl=PLAIN,EXTERNAL"). An empty value omits the "=".
type capValue struct {
	name  string
	value string
}

// supportedCaps lists the statically-supported capabilities. "sts" is
// not listed here: NewServer adds it to the server's extra capabilities
// when its TLSListener setting is on, and AdvertisedCaps merges both
// sets and sorts them by name.
func supportedCaps() []capValue {
	return []capValue{
		{name: "account-notify"},
		{name: "account-tag"},
		{name: "away-notify"},
		{name: "batch"},
		{name: "cap-notify"},
		{name: "chghost"},
		{name: "echo-message"},
		{name: "extended-join"},
		{name: "invite-notify"},
		{name: "labeled-response"},
		{name: "message-tags"},
		{name: "multi-prefix"},
		{name: "server-time"},
		{name: "setname"},
		{name: "standard-replies"},
		{name: "userhost-in-names"},
		{name: "sasl", value: "PLAIN"},
	}
}

// AdvertisedCaps returns the server's statically-supported capabilities
// plus any dynamically-registered ones (eg "sts", added when the
// listener is TLS-terminated), sorted by name for a deterministic LS.
func (server *Server) AdvertisedCaps() []capValue {
	caps := supportedCaps()

	server.capMu.RLock()
	for name, value := range server.extraCaps {
		caps = append(caps, capValue{name: name, value: value})
	}
	server.capMu.RUnlock()

	sort.Slice(caps, func(i, j int) bool { return caps[i].name < caps[j].name })
	return caps
}

// AnnounceCapability adds or removes a dynamically-advertised
// capability at runtime and notifies every connected user holding
// cap-notify with an unsolicited CAP NEW or CAP DEL, per IRCv3's
// cap-notify extension. Idempotent: announcing an already-present
// capability as added, or an absent one as removed, is a no-op.
func (server *Server) AnnounceCapability(name, value string, added bool) {
	server.capMu.Lock()
	_, existed := server.extraCaps[name]
	if added {
		if existed && server.extraCaps[name] == value {
			server.capMu.Unlock()
			return
		}
		server.extraCaps[name] = value
	} else {
		if !existed {
			server.capMu.Unlock()
			return
		}
		delete(server.extraCaps, name)
	}
	server.capMu.Unlock()

	event := &capChangeEvent{}
	token := name
	if added && value != EMPTY {
		token = name + "=" + value
	}
	if added {
		event.Added = []string{token}
	} else {
		event.Removed = []string{token}
	}
	server.CapNewDel.VisitAll(event)

	sub := "DEL"
	if added {
		sub = "NEW"
	}

	server.Nicks.ForEach(func(_ string, target *User) error {
		conn := target.conn
		if conn == nil || !conn.capState.Has("cap-notify") {
			return nil
		}

		msg := conn.newMessage()
		msg.Command = CmdCap
		msg.Params = []string{conn.foldedOrStar(), sub}
		msg.Trailing = token
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
		return nil
	})
}

// CapState tracks the per-connection state of IRCv3 capability
// negotiation, from the first CAP LS through CAP END.
type CapState struct {
	Negotiating bool            // True from CAP LS/REQ until CAP END, holds registration.
	Version     int             // Negotiated CAP version, 302 if the client sent "CAP LS 302".
	Enabled     map[string]bool // Capabilities the client has ACKed.
}

// NewCapState returns a freshly-initialized CapState for a new connection.
func NewCapState() *CapState {
	return &CapState{Enabled: make(map[string]bool)}
}

// Has reports whether a capability has been enabled for this connection.
func (c *CapState) Has(name string) bool {
	return c.Enabled[name]
}

// LS renders the CAP LS reply body for the requested protocol version.
// Version 302 clients get the "cap=value" form; anything earlier is
// only shown bare capability names, per the IRCv3 cap-3.2 spec.
func (c *CapState) LS(version int, caps []capValue) string {
	parts := make([]string, 0, len(caps))

	for _, cp := range caps {
		if version >= 302 && cp.value != EMPTY {
			parts = append(parts, cp.name+"="+cp.value)
		} else {
			parts = append(parts, cp.name)
		}
	}

	return strings.Join(parts, SPACE)
}

// Req processes the argument of a CAP REQ command. The request is
// atomic per the IRCv3 spec: if any requested capability is unknown,
// the whole request is NAKed and no per-connection state changes;
// otherwise every change is applied and the whole request is ACKed.
func (c *CapState) Req(arg string, caps []capValue) (ack, nak []string) {
	known := make(map[string]bool, len(caps))
	for _, cp := range caps {
		known[cp.name] = true
	}

	requested := strings.Fields(arg)
	for _, name := range requested {
		if !known[strings.TrimPrefix(name, "-")] {
			return nil, requested
		}
	}

	for _, name := range requested {
		if bare := strings.TrimPrefix(name, "-"); strings.HasPrefix(name, "-") {
			delete(c.Enabled, bare)
		} else {
			c.Enabled[bare] = true
		}
	}

	return requested, nil
}
