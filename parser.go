/*
   Copyright (c) 2023, btnmasher
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

import "strings"

// Parse takes a single IRC protocol line, without its trailing CRLF, and
// turns it into a Message.
//
// The algorithm runs in six steps, each independently bounded so one
// oversized section (tags vs. the rest of the line) can't mask the other:
//
//  1. Split off an IRCv3 tag section, if the line starts with '@'. The tag
//     section is checked against MaxTagsLength on its own.
//  2. Re-check the remaining line length against MaxMsgLength.
//  3. Trim surrounding whitespace; reject an all-whitespace remainder.
//  4. Consume and discard a leading ":source" prefix. Servers send one
//     on relayed traffic; clients may too, but the connection itself is
//     authoritative for who sent the line, so the claimed source is
//     never trusted.
//  5. Tokenize the command and parameters.
//  6. Enforce MaxMsgParams on the resulting parameter count.
func Parse(data string) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrMessageTooShort
	}

	var tags map[string]string

	if data[0] == '@' {
		sp := strings.IndexByte(data, ' ')
		if sp < 0 {
			return nil, ErrMessageTooShort
		}
		tagSection := data[1:sp]
		if len(tagSection) > MaxTagsLength {
			return nil, ErrTagsTooLong
		}
		tags = parseTags(tagSection)
		data = strings.TrimLeft(data[sp+1:], " ")
	}

	if len(data) > MaxMsgLength {
		return nil, ErrMessageTooLong
	}

	data = strings.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrWhitespace
	}

	if data[0] == ':' {
		sp := strings.IndexByte(data, ' ')
		if sp < 0 {
			return nil, ErrMessageTooShort
		}
		data = strings.TrimLeft(data[sp+1:], " ")
		if len(data) == 0 {
			return nil, ErrMessageTooShort
		}
	}

	msg := msgPool.New()
	msg.Tags = tags

	var rest string
	var hasTrailing bool

	if idx := strings.Index(data, " :"); idx >= 0 {
		rest = data[:idx]
		msg.Trailing = data[idx+2:]
		hasTrailing = true
	} else {
		rest = data
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, ErrMessageTooShort
	}

	msg.Command = strings.ToUpper(fields[0])
	msg.Params = fields[1:]

	paramCount := len(msg.Params)
	if hasTrailing {
		paramCount++
	}
	if paramCount > MaxMsgParams {
		return nil, ErrTooManyParams
	}

	return msg, nil
}

// parseTags decodes the semicolon-separated key[=value] tag section per
// IRCv3 message-tags, unescaping the wire escapes for \, ;, SPACE, CR, LF.
func parseTags(section string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(section, ";") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			tags[pair[:eq]] = unescapeTagValue(pair[eq+1:])
		} else {
			tags[pair] = ""
		}
	}
	return tags
}

var tagUnescapes = strings.NewReplacer(
	"\\:", ";",
	"\\s", " ",
	"\\r", "\r",
	"\\n", "\n",
	"\\\\", "\\",
)

func unescapeTagValue(s string) string {
	return tagUnescapes.Replace(s)
}
