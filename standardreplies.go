/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

// StandardReply sends an IRCv3 standard reply (FAIL, WARN, or NOTE) to
// this connection: the command it concerns, a machine-readable code,
// and a human-readable description. Clients that have not negotiated
// the standard-replies capability get the description as a plain
// server NOTICE instead, so older clients still see why something
// failed.
//
//	FAIL <command> <code> :<description>
func (conn *Conn) StandardReply(kind, command, code, description string) {
	if !conn.capState.Has("standard-replies") {
		conn.writeNotice(command + ": " + description)
		return
	}

	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Command = kind
	msg.Params = []string{command, code}
	msg.Trailing = description

	conn.Write(msg.RenderBuffer())
}

// ReplyFail reports that a command failed outright.
func (conn *Conn) ReplyFail(command, code, description string) {
	conn.StandardReply(CmdFail, command, code, description)
}

// ReplyWarn reports a non-fatal problem with a command that still
// completed.
func (conn *Conn) ReplyWarn(command, code, description string) {
	conn.StandardReply(CmdWarn, command, code, description)
}

// ReplyNote carries informational feedback about a command.
func (conn *Conn) ReplyNote(command, code, description string) {
	conn.StandardReply(CmdNote, command, code, description)
}
