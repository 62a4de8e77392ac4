/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import (
	"time"

	"github.com/coreircd/dircd/casemap"
)

// Limiter Constants
const (
	// Messages
	MaxMsgLength  int = 512
	MaxMsgParams      = 15
	MaxTagsLength int = 4096

	// Channels
	MaxChanLength  = 16
	MaxKickLength  = 400
	MaxTopicLength = 400
	MaxListItems   = 256
	MaxModeChange  = 6

	// Users
	MaxNickLength  = 16
	MaxUserLength  = 16
	MaxVHostLength = 64
	MaxJoinedChans = 32
	MaxAwayLength  = 100
)

// Class describes a connect class: the resource limits and registration
// policy applied to a client matched against it by host/CIDR.
type Class struct {
	Name             string
	MaxConnsPerIP    int
	SendQBytes       int
	RecvQBytes       int
	FloodLinesPerSec int
	FloodBurst       int
	PingFrequency    time.Duration
	RegTimeout       time.Duration
	RequireIdent     bool
	RequireDNS       bool
	PenaltyCeiling   int
}

// DefaultClass is applied to any connection that does not match a
// more specific configured Class.
var DefaultClass = Class{
	Name:             "default",
	MaxConnsPerIP:    3,
	SendQBytes:       1 << 20,
	RecvQBytes:       8192,
	FloodLinesPerSec: 5,
	FloodBurst:       20,
	PingFrequency:    PingTimeout,
	RegTimeout:       10 * time.Second,
	PenaltyCeiling:   600,
}

// Settings holds the live configuration of a Server. The Server's
// setters (SetHostname, SetCasemap and the like) update its fields in
// place under the Server's lock; there is no whole-snapshot swap, so a
// sequence of setter calls is not applied as one unit.
type Settings struct {
	Hostname string
	Network  string
	MOTD     string
	Welcome  string

	CasemapMapping casemap.Mapping

	TLSListener bool

	// Password, if set, gates registration behind a server-wide PASS
	// command, checked once NICK/USER have both arrived.
	Password string

	Classes []Class

	// Opers maps operator login names to their plaintext password, per
	// the teacher's connect-class style of flat, hot-swappable config.
	Opers map[string]string

	// Accounts maps SASL PLAIN account names to their plaintext
	// password, checked by AUTHENTICATE. Same flat shape as Opers.
	Accounts map[string]string
}

// defaultSettings returns the baseline configuration applied before any
// functional Option runs.
func defaultSettings() *Settings {
	return &Settings{
		Hostname:       "irc.localhost.net",
		Network:        "dircd",
		CasemapMapping: casemap.RFC1459,
		Classes:        []Class{DefaultClass},
		Opers:          make(map[string]string),
		Accounts:       make(map[string]string),
	}
}
