/*
   Copyright (c) 2020, btnmasher
   All rights reserved.

   Redistribution and use in source and binary forms, with or without modification, are permitted provided that
   the following conditions are met:

   1. Redistributions of source code must retain the above copyright notice, this list of conditions and the
      following disclaimer.

   2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and
      the following disclaimer in the documentation and/or other materials provided with the distribution.

   3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or
      promote products derived from this software without specific prior written permission.

   THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED
   WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A
   PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR
   ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED
   TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
   NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
   POSSIBILITY OF SUCH DAMAGE.
*/

package dircd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/coreircd/dircd/shared/itempool"
	"github.com/coreircd/dircd/shared/pool"
)

// Message is an object that represents the components of an IRC message,
// per RFC1459/2812 and the IRCv3 message-tags extension.
type Message struct {
	Tags     map[string]string `json:"tags,omitempty"`    // IRCv3 message tags, nil if none were sent.
	Source   string            `json:"source,omitempty"`  // The source ("prefix") parameter of the message.
	Command  string            `json:"command,omitempty"` // The IRC string command of the message.
	Code     uint16            `json:"code,omitempty"`    // The IRC numeric code of the message, if any.
	Params   []string          `json:"params,omitempty"`  // Middle parameters, in order.
	Trailing string            `json:"trailing,omitempty"`// The final, possibly-empty, colon-prefixed parameter.
}

// Message represents an IRC protocol message.
// See RFC1459 section 2.3.1.
//
//    <message>  = [':' <prefix> <SPACE> ] <command> <params> <crlf>
//    <prefix>   = <servername> | <nick> [ '!' <user> ] [ '@' <host> ]
//    <command>  = <letter> { <letter> } | <number> <number> <number>
//    <SPACE>    = ' ' { ' ' }
//    <params>   = <SPACE> [ ':' <trailing> | <middle> <params> ]
//
//    <middle>   = <Any *non-empty* sequence of octets not including SPACE
//                   or NUL or CR or LF, the first of which may not be ':'>
//    <trailing> = <Any, possibly *empty*, sequence of octets not including
//                   NUL or CR or LF>
//
//    <crlf>     = CR LF

// String constants for constructing the message
const (
	SPACE  string = " "
	CRLF          = "\r\n"
	COLON         = ":"
	EMPTY         = ""
	PADNUM        = "%03d"
	TAGMARK       = "@"
)

// String returns the IRC-formatted string version of a message object.
// This is here to satisfy a Stringer interface
func (msg *Message) String() string {
	return msg.Render()
}

// RenderBuffer returns the IRC-formatted byte buffer version of a message object.
func (msg *Message) RenderBuffer() *bytes.Buffer {
	buffer := bufPool.New()

	if len(msg.Tags) > 0 {
		buffer.WriteString(TAGMARK)
		buffer.WriteString(renderTags(msg.Tags))
		buffer.WriteString(SPACE)
	}

	if msg.Source != EMPTY {
		buffer.WriteString(COLON)
		buffer.WriteString(msg.Source)
		buffer.WriteString(SPACE)
	}

	if msg.Code > 0 {
		buffer.WriteString(fmt.Sprintf(PADNUM, msg.Code))
	} else if msg.Command != EMPTY {
		buffer.WriteString(msg.Command)
	}

	if len(msg.Params) > 0 {
		params := msg.Params
		if len(params) > MaxMsgParams-1 {
			params = params[:MaxMsgParams-1]
		}

		buffer.WriteString(SPACE)
		buffer.WriteString(strings.Join(params, SPACE))
	}

	if msg.Trailing != EMPTY {
		buffer.WriteString(SPACE)
		buffer.WriteString(COLON)
		buffer.WriteString(msg.Trailing)
	}

	buffer.WriteString(CRLF)

	return buffer
}

// renderTags serializes a tag map into IRCv3 wire form: key[=value] pairs
// joined by ';', sorted for deterministic output (and easier testing).
func renderTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buffer.WriteByte(';')
		}
		buffer.WriteString(escapeTagValue(k))
		if v := tags[k]; v != EMPTY {
			buffer.WriteByte('=')
			buffer.WriteString(escapeTagValue(v))
		}
	}
	return buffer.String()
}

var tagEscapes = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

func escapeTagValue(s string) string {
	return tagEscapes.Replace(s)
}

// Render returns the IRC-formatted string version of a message object.
func (msg *Message) Render() string {
	buf := msg.RenderBuffer()
	s := buf.String()
	bufPool.Recycle(buf)
	return s
}

// Debug prints a message object to a string with verbose information about the object fields.
func (msg *Message) Debug() string {
	b, _ := json.Marshal(msg) // Ignoring the error because it literally can't happen.
	return string(b)
}

// Scrub clears a Message's fields so it is safe to hand back to a pool.
// Satisfies shared/itempool.ScrubbableItem.
func (msg *Message) Scrub() {
	msg.Tags = nil
	msg.Source = ""
	msg.Code = 0
	msg.Command = ""
	msg.Params = nil
	msg.Trailing = ""
}

// bufPool is the shared bytes.Buffer pool used by RenderBuffer/Render.
var bufPool = pool.New(func() *bytes.Buffer { return &bytes.Buffer{} })

// msgPool is the shared Message object pool the parser and router draw
// from and recycle back into, avoiding an allocation per parsed line.
var msgPool = itempool.New[*Message](MessagePoolMax, func() *Message { return &Message{} })
