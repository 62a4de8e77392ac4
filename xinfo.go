/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// xinfoProviderPrefix namespaces XINFO topic providers inside the
// server's provider registry, so "XINFO/UPTIME" never collides with an
// unrelated provider called "UPTIME".
const xinfoProviderPrefix = "XINFO/"

// XInfoProvider serves one XINFO topic. Providers are resolved by name
// from the server's provider registry on every request, never cached,
// so an extension that deregisters its topic takes effect immediately.
type XInfoProvider interface {
	// XInfo fills the builder with this topic's entries for the
	// requesting user.
	XInfo(user *User, b *XInfoBuilder)
}

// XInfoFunc adapts a plain function to the XInfoProvider interface.
type XInfoFunc func(user *User, b *XInfoBuilder)

func (f XInfoFunc) XInfo(user *User, b *XInfoBuilder) { f(user, b) }

// XInfoBuilder accumulates the typed key/value pairs of one XINFO
// response: each Save() closes out an entry line, and the key types
// seen across all entries are reported once in the RPL_XINFOTYPE line.
type XInfoBuilder struct {
	line  strings.Builder
	lines []string
	types map[string]string
	order []string
}

// NewXInfoBuilder returns an empty builder.
func NewXInfoBuilder() *XInfoBuilder {
	return &XInfoBuilder{types: make(map[string]string)}
}

func (b *XInfoBuilder) set(key, kind, value string) *XInfoBuilder {
	if _, seen := b.types[key]; !seen {
		b.order = append(b.order, key)
	}
	b.types[key] = kind
	b.line.WriteByte(' ')
	b.line.WriteString(key)
	b.line.WriteByte(' ')
	b.line.WriteString(value)
	return b
}

// String appends a free-form string field to the current entry.
func (b *XInfoBuilder) String(key, value string) *XInfoBuilder {
	return b.set(key, "string", value)
}

// Nick appends a nickname field to the current entry.
func (b *XInfoBuilder) Nick(key, value string) *XInfoBuilder {
	return b.set(key, "nick", value)
}

// Int appends a signed integer field to the current entry.
func (b *XInfoBuilder) Int(key string, value int64) *XInfoBuilder {
	return b.set(key, "int", fmt.Sprint(value))
}

// UInt appends an unsigned integer field to the current entry.
func (b *XInfoBuilder) UInt(key string, value uint64) *XInfoBuilder {
	return b.set(key, "uint", fmt.Sprint(value))
}

// TimeStamp appends a unix-timestamp field to the current entry.
func (b *XInfoBuilder) TimeStamp(key string, value int64) *XInfoBuilder {
	return b.set(key, "timestamp", fmt.Sprint(value))
}

// Save closes out the current entry; the next field starts a new one.
func (b *XInfoBuilder) Save() {
	b.lines = append(b.lines, b.line.String())
	b.line.Reset()
}

// Empty reports whether no entries have been saved.
func (b *XInfoBuilder) Empty() bool {
	return len(b.lines) == 0
}

// typeTokens renders the key/type pairs for the RPL_XINFOTYPE line, in
// first-seen key order.
func (b *XInfoBuilder) typeTokens() string {
	var out strings.Builder
	for _, key := range b.order {
		out.WriteByte(' ')
		out.WriteString(key)
		out.WriteByte(' ')
		out.WriteString(b.types[key])
	}
	return out.String()
}

// publicXInfoTopics may be queried by any registered user; everything
// else requires operator privileges, matching the privilege split the
// old STATS letters had.
var publicXInfoTopics = map[string]bool{
	"UPTIME": true,
}

// HandleXInfo processes an XINFO command, serving a named topic from
// whatever provider is currently registered for it. A second parameter
// names a remote server to answer instead, which only affects routing.
//
//	Command: XINFO
//	Parameters: <topic> [server]
func HandleXInfo(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	topic := strings.ToUpper(msg.Params[0])

	if len(msg.Params) > 1 {
		ctx.SetRoute(RouteUnicast, msg.Params[1])
	}

	provider, exists := conn.server.Providers.LookupByName(xinfoProviderPrefix + topic)
	if !exists {
		conn.ReplyNoSuchXInfoTopic(topic)
		return
	}

	if !publicXInfoTopics[topic] && conn.user.Permission() < UPermNetOp {
		conn.ReplyNoPrivileges()
		return
	}

	xinfo, ok := provider.(XInfoProvider)
	if !ok {
		log.Warnf("irc: provider %q does not implement XInfoProvider", xinfoProviderPrefix+topic)
		conn.ReplyNoSuchXInfoTopic(topic)
		return
	}

	builder := NewXInfoBuilder()
	xinfo.XInfo(conn.user, builder)

	if builder.Empty() {
		conn.ReplyNoSuchXInfoTopic(topic)
		return
	}

	conn.writeNumericLine(ReplyXInfoType, topic+builder.typeTokens(), EMPTY)
	for _, entry := range builder.lines {
		conn.writeNumericLine(ReplyXInfoEntry, topic+entry, EMPTY)
	}
	conn.writeNumericLine(ReplyXInfoEnd, topic, "End of XINFO request")
}

// writeNumericLine sends a numeric whose parameter section arrives
// pre-assembled, used by XINFO where the key/value tokens were already
// rendered by the builder.
func (conn *Conn) writeNumericLine(code uint16, params, trailing string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = code
	msg.Params = append([]string{conn.nickOrStar()}, strings.Fields(params)...)
	msg.Trailing = trailing

	conn.Write(msg.RenderBuffer())
}

// ReplyNoSuchXInfoTopic reports an unknown or unavailable XINFO topic.
func (conn *Conn) ReplyNoSuchXInfoTopic(topic string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyNoSuchXInfo
	msg.Params = []string{conn.nickOrStar(), topic}
	msg.Trailing = "No such XINFO topic available"

	conn.Write(msg.RenderBuffer())
}

// registerXInfoProviders installs the built-in XINFO topics. UPTIME is
// public; COMMANDUSE is operator-only via publicXInfoTopics above.
func registerXInfoProviders(server *Server) {
	server.Providers.Register(xinfoProviderPrefix+"UPTIME", XInfoFunc(func(_ *User, b *XInfoBuilder) {
		now := time.Now().Unix()
		b.TimeStamp("STARTUP", server.startedAt).
			Int("DURATION", now-server.startedAt).
			Save()
	}))

	server.Providers.Register(xinfoProviderPrefix+"COMMANDUSE", XInfoFunc(func(_ *User, b *XInfoBuilder) {
		counts := server.router.UseCounts()
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			b.String("NAME", name).
				UInt("COUNT", counts[name]).
				Save()
		}
	}))
}
