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
	"fmt"
	"strings"
	"time"

	"github.com/coreircd/dircd/shared/stringutils"
)

func (conn *Conn) nickOrStar() string {
	if nick := conn.user.Nick(); len(nick) > 0 {
		return nick
	}
	return "*"
}

// ReplyWelcome returns the configured welcome message to
// the user. This is sent when a client first connects
// and registers successfully.
func (conn *Conn) ReplyWelcome() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyWelcome
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = conn.server.Welcome()

	conn.Write(msg.RenderBuffer())
}

// ReplyYourHost tells the client which software and version the
// server is running.
func (conn *Conn) ReplyYourHost() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyYourHost
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = fmt.Sprintf("Your host is %s, running dircd", conn.server.Hostname())

	conn.Write(msg.RenderBuffer())
}

// ReplyCreated reports when the server instance was started.
func (conn *Conn) ReplyCreated() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyCreated
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = fmt.Sprintf("This server was created %s", time.Unix(conn.server.startedAt, 0).Format(time.RFC1123))

	conn.Write(msg.RenderBuffer())
}

// ReplyMyInfo reports the server name and supported user/channel modes.
func (conn *Conn) ReplyMyInfo() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyMyInfo
	msg.Params = []string{
		conn.user.Nick(),
		conn.server.Hostname(),
		"dircd-1.0",
		"aiorsw",
		"beIkloCmnpstu",
	}

	conn.Write(msg.RenderBuffer())
}

// ReplyInvalidCapCommand returns an error message to the user
// in the event that a CAP command issued by the user is not
// a valid subcommand per the IRCv3 CAP specifications.
func (conn *Conn) ReplyInvalidCapCommand(cmd string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	params := []string{conn.nickOrStar()}
	if cmd != EMPTY {
		params = append(params, cmd)
	}

	msg.Code = ReplyInvalidCapCmd
	msg.Params = params
	msg.Trailing = ErrInvalidCapCmd.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyNeedMoreParams returns an error message to the user
// in the event that a command issued by the user that does
// not satisfy the minimum number of parameters expected of
// the particualar command.
func (conn *Conn) ReplyNeedMoreParams(cmd string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	params := []string{conn.nickOrStar()}
	if cmd != EMPTY {
		params = append(params, cmd)
	}

	msg.Code = ReplyNeedMoreParams
	msg.Params = params
	msg.Trailing = ErrMissingParams.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyNoNicknameGiven returns an error message to the user
// in the event that a command issued by the user that does
// not satisfy the requirement of specifying a nickname.
func (conn *Conn) ReplyNoNicknameGiven() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.nickOrStar()}
	msg.Code = ReplyNoNicknameGiven
	msg.Trailing = ErrNoNickGiven.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyErroneousNickname rejects a NICK that does not satisfy the
// server's nickname formatting rules.
func (conn *Conn) ReplyErroneousNickname(nick string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.nickOrStar(), nick}
	msg.Code = ReplyErroneusNickname
	msg.Trailing = "Erroneous nickname"

	conn.Write(msg.RenderBuffer())
}

// ReplyNicknameInUse rejects a NICK that collides with an existing user.
func (conn *Conn) ReplyNicknameInUse(nick string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.nickOrStar(), nick}
	msg.Code = ReplyNicknameInUse
	msg.Trailing = ErrNickInUse.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyAlreadyRegistered rejects a second USER command.
func (conn *Conn) ReplyAlreadyRegistered() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.nickOrStar()}
	msg.Code = ReplyAlreadyRegistered
	msg.Trailing = ErrUserAlreadySet.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyNoSuchNick returns an error message to the user
// in the event that a command issued by the user with
// a target nickname cannot find the target or is unable
// to know of the targets existence due to permissions.
func (conn *Conn) ReplyNoSuchNick(nick string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.user.Nick(), nick}
	msg.Code = ReplyNoSuchNick
	msg.Trailing = ErrNoSuchNick.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyNoSuchChan returns an error message to the user
// in the event that a command issued by the user with
// a target channel cannot find the target or is unable
// to know of the targets existence due to permissions.
func (conn *Conn) ReplyNoSuchChan(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.user.Nick(), channel}
	msg.Code = ReplyNoSuchChannel
	msg.Trailing = ErrNoSuchChan.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyNotImplemented returns an error message to the user
// in the event the given command is not apart of the handlers
// found in the router.
func (conn *Conn) ReplyNotImplemented(cmd string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyUnknownCommand
	msg.Params = []string{conn.user.Nick(), cmd}
	msg.Trailing = ErrNotImplemented.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyInputTooLong rejects a line that blew either the RFC line
// budget or the tag-section budget.
func (conn *Conn) ReplyInputTooLong() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyInputTooLong
	msg.Params = []string{conn.nickOrStar()}
	msg.Trailing = "Input line was too long"

	conn.Write(msg.RenderBuffer())
}

// ReplyNotRegistered returns an error message to the user
// in the event a restricted command is issued before registration
// completes.
func (conn *Conn) ReplyNotRegistered() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyNotRegistered
	msg.Params = []string{conn.nickOrStar()}
	msg.Trailing = ErrNotRegistered.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyChanOpPrivsNeeded tells the user they lack the rank required for
// the channel operation they attempted.
func (conn *Conn) ReplyChanOpPrivsNeeded(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.user.Nick(), channel}
	msg.Code = ReplyChanOpPrivsNeeded
	msg.Trailing = ErrInsuffPerms.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyUserNotInChannel tells the user that the given target isn't a
// member of the given channel.
func (conn *Conn) ReplyUserNotInChannel(nick, channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.user.Nick(), nick, channel}
	msg.Code = ReplyUserNotInChannel
	msg.Trailing = "They aren't on that channel"

	conn.Write(msg.RenderBuffer())
}

// ReplyNotOnChannel tells the user they must join the channel before
// the attempted operation is valid.
func (conn *Conn) ReplyNotOnChannel(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Params = []string{conn.user.Nick(), channel}
	msg.Code = ReplyNotOnChannel
	msg.Trailing = "You're not on that channel"

	conn.Write(msg.RenderBuffer())
}

// ReplyChannelTopic returns the topic reply to the user for
// the given channel, or ReplyNoTopic if none is set.
func (conn *Conn) ReplyChannelTopic(channel *Channel) {
	topic, setter, when := channel.Topic()

	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	if topic == EMPTY {
		msg.Code = ReplyNoTopic
		msg.Params = []string{conn.user.Nick(), channel.Name()}
		msg.Trailing = "No topic is set"
		conn.Write(msg.RenderBuffer())
		return
	}

	msg.Code = ReplyChanTopic
	msg.Params = []string{conn.user.Nick(), channel.Name()}
	msg.Trailing = topic
	conn.Write(msg.RenderBuffer())

	who := conn.newMessage()
	defer msgPool.Recycle(who)
	who.Code = ReplyTopicWhoTime
	who.Params = []string{conn.user.Nick(), channel.Name(), setter, fmt.Sprint(when)}
	conn.Write(who.RenderBuffer())
}

// ReplyChannelNames sends the NAMES list for the given channel,
// wrapping across as many lines as needed to respect MaxMsgLength.
func (conn *Conn) ReplyChannelNames(channel *Channel) {
	unick := conn.user.Nick()
	cname := channel.Name()
	sigil := "="
	if channel.ModeIsSet(CModeSecret) {
		sigil = "@"
	} else if channel.ModeIsSet(CModePrivate) {
		sigil = "*"
	}

	viewer, _ := channel.Member(conn.foldedNick())
	names := channel.VisibleNames(viewer, conn.capState.Has("multi-prefix"))
	prefix := []string{unick, sigil, cname}

	head := conn.newMessage()
	head.Code = ReplyNames
	head.Params = prefix
	headroom := MaxMsgLength - len(head.String())
	msgPool.Recycle(head)

	for _, line := range stringutils.ChunkJoinStrings(headroom, SPACE, names...) {
		msg := conn.newMessage()
		msg.Code = ReplyNames
		msg.Params = prefix
		msg.Trailing = line
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
	}

	end := conn.newMessage()
	end.Code = ReplyEndOfNames
	end.Params = []string{unick, cname}
	end.Trailing = "End of NAMES list"
	conn.Write(end.RenderBuffer())
	msgPool.Recycle(end)
}

// ReplyISupport sends the server's RPL_ISUPPORT token set, wrapped
// across as many lines as MaxMsgLength requires.
func (conn *Conn) ReplyISupport() {
	support := conn.server.ISupport()
	params := []string{conn.user.Nick()}

	head := conn.newMessage()
	head.Code = ReplyISupport
	head.Params = params
	headroom := MaxMsgLength - len(head.String())
	msgPool.Recycle(head)

	for _, line := range stringutils.ChunkJoinStrings(headroom, SPACE, support...) {
		msg := conn.newMessage()
		msg.Code = ReplyISupport
		msg.Params = append(append([]string{}, params...), strings.Fields(line)...)
		msg.Trailing = "are supported by this server"
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
	}
}

// ReplyMotd sends the configured MOTD, line by line, bracketed by the
// start/end numerics, or ReplyNoMOTD if none is configured.
func (conn *Conn) ReplyMotd() {
	motd := conn.server.MOTD()

	if motd == EMPTY || motd == "Server has no MOTD message set." {
		msg := conn.newMessage()
		msg.Code = ReplyNoMOTD
		msg.Params = []string{conn.user.Nick()}
		msg.Trailing = "MOTD File is missing"
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
		return
	}

	start := conn.newMessage()
	start.Code = ReplyMOTDStart
	start.Params = []string{conn.user.Nick()}
	start.Trailing = fmt.Sprintf("- %s Message of the day - ", conn.server.Hostname())
	conn.Write(start.RenderBuffer())
	msgPool.Recycle(start)

	for _, line := range strings.Split(motd, "\n") {
		msg := conn.newMessage()
		msg.Code = ReplyMOTD
		msg.Params = []string{conn.user.Nick()}
		msg.Trailing = "- " + line
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
	}

	end := conn.newMessage()
	end.Code = ReplyEndOFMOTD
	end.Params = []string{conn.user.Nick()}
	end.Trailing = "End of MOTD command"
	conn.Write(end.RenderBuffer())
	msgPool.Recycle(end)
}

// ReplyVersion reports the server's version string.
func (conn *Conn) ReplyVersion() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyVersion
	msg.Params = []string{conn.user.Nick(), "dircd-1.0", conn.server.Hostname()}
	msg.Trailing = "coreircd/dircd"

	conn.Write(msg.RenderBuffer())
}

// ReplyWhoLine sends a single RPL_WHOREPLY entry for target, as seen
// through channel (empty channel name for a bare WHO <nick>).
func (conn *Conn) ReplyWhoLine(channel string, target *User) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	flags := "H"
	if target.IsAway() {
		flags = "G"
	}

	if channel == EMPTY {
		channel = "*"
	}

	msg.Code = ReplyWho
	msg.Params = []string{conn.user.Nick(), channel, target.Name(), target.Hostmask(), conn.server.Hostname(), target.Nick(), flags}
	msg.Trailing = "0 " + target.Realname()

	conn.Write(msg.RenderBuffer())
}

// ReplyEndOfWho closes out a WHO reply sequence for the given mask.
func (conn *Conn) ReplyEndOfWho(mask string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyEndOfWho
	msg.Params = []string{conn.user.Nick(), mask}
	msg.Trailing = "End of WHO list"

	conn.Write(msg.RenderBuffer())
}

// ReplyWhoisUser sends the WHOISUSER line for target.
func (conn *Conn) ReplyWhoisUser(target *User) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyWhoisUser
	msg.Params = []string{conn.user.Nick(), target.Nick(), target.Name(), target.Hostmask(), "*"}
	msg.Trailing = target.Realname()

	conn.Write(msg.RenderBuffer())
}

// ReplyWhoisServer sends the WHOISSERVER line for target.
func (conn *Conn) ReplyWhoisServer(target *User) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyWhoisServer
	msg.Params = []string{conn.user.Nick(), target.Nick(), conn.server.Hostname()}
	msg.Trailing = conn.server.Network()

	conn.Write(msg.RenderBuffer())
}

// ReplyWhoisChannels sends the WHOISCHANNELS line listing every channel
// target is a member of, visible to the requester.
func (conn *Conn) ReplyWhoisChannels(target *User, channels []string) {
	if len(channels) == 0 {
		return
	}

	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyWhoisChannels
	msg.Params = []string{conn.user.Nick(), target.Nick()}
	msg.Trailing = strings.Join(channels, SPACE)

	conn.Write(msg.RenderBuffer())
}

// ReplyEndOfWhois closes out a WHOIS reply sequence.
func (conn *Conn) ReplyEndOfWhois(nick string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyEndOfWhois
	msg.Params = []string{conn.user.Nick(), nick}
	msg.Trailing = "End of WHOIS list"

	conn.Write(msg.RenderBuffer())
}

// ReplyListLine sends one RPL_LIST entry.
func (conn *Conn) ReplyListLine(channel *Channel) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	topic, _, _ := channel.Topic()

	msg.Code = ReplyList
	msg.Params = []string{conn.user.Nick(), channel.Name(), fmt.Sprint(channel.MemberCount())}
	msg.Trailing = topic

	conn.Write(msg.RenderBuffer())
}

// ReplyListStart/ReplyEndOfList bracket a LIST reply sequence.
func (conn *Conn) ReplyListStart() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyListStart
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "Channel :Users  Name"

	conn.Write(msg.RenderBuffer())
}

func (conn *Conn) ReplyEndOfList() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyEndOfList
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "End of LIST"

	conn.Write(msg.RenderBuffer())
}

// ReplyChannelModeIs reports the current simple/param mode string of a
// channel. Non-members querying a channel with a key set see the
// literal "<key>" placeholder instead of the secret parameter.
func (conn *Conn) ReplyChannelModeIs(channel *Channel) {
	flags, args := RenderChannelModes(channel)

	if _, joined := channel.Member(conn.foldedNick()); !joined && channel.ModeIsSet(CModeKey) {
		for i, arg := range args {
			if arg == channel.Key() {
				args[i] = "<key>"
			}
		}
	}

	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyChannelModeIs
	msg.Params = append([]string{conn.user.Nick(), channel.Name(), flags}, args...)

	conn.Write(msg.RenderBuffer())
}

// ReplyUserModeIs reports the requesting user's own usermode string.
func (conn *Conn) ReplyUserModeIs() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyUserModeIs
	msg.Params = []string{conn.user.Nick(), RenderUserModes(conn.user)}

	conn.Write(msg.RenderBuffer())
}

// ReplyUsersDontMatch rejects a MODE targeting a nickname other than
// the requester's own.
func (conn *Conn) ReplyUsersDontMatch() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyUsersDontMatch
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "Cannot change mode for other users"

	conn.Write(msg.RenderBuffer())
}

// ReplyNowAway/ReplyUnAway acknowledge AWAY state changes.
func (conn *Conn) ReplyNowAway() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyNowAway
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "You have been marked as being away"

	conn.Write(msg.RenderBuffer())
}

func (conn *Conn) ReplyUnAway() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyUnAway
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "You are no longer marked as being away"

	conn.Write(msg.RenderBuffer())
}

// ReplyAway relays a target's away message to the requester.
func (conn *Conn) ReplyAway(target *User) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyAway
	msg.Params = []string{conn.user.Nick(), target.Nick()}
	msg.Trailing = target.Away()

	conn.Write(msg.RenderBuffer())
}

// ReplyYoureOper acknowledges a successful OPER command.
func (conn *Conn) ReplyYoureOper() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyYoureOper
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "You are now an IRC operator"

	conn.Write(msg.RenderBuffer())
}

// ReplyRehashing acknowledges a successful REHASH command.
func (conn *Conn) ReplyRehashing(config string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyRehashing
	msg.Params = []string{conn.user.Nick(), config}
	msg.Trailing = "Rehashing"

	conn.Write(msg.RenderBuffer())
}

// ReplyLoggedIn confirms a successful SASL authentication (RPL_LOGGEDIN).
func (conn *Conn) ReplyLoggedIn(account string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyLoggedIn
	msg.Params = []string{conn.user.Nick(), conn.user.Hostmask(), account}
	msg.Trailing = "You are now logged in as " + account

	conn.Write(msg.RenderBuffer())
}

// ReplySASLSuccess ends a successful SASL exchange (RPL_SASLSUCCESS).
func (conn *Conn) ReplySASLSuccess() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplySASLSuccess
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "SASL authentication successful"

	conn.Write(msg.RenderBuffer())
}

// ReplySASLFail rejects a failed SASL exchange (ERR_SASLFAIL).
func (conn *Conn) ReplySASLFail() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplySASLFail
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "SASL authentication failed"

	conn.Write(msg.RenderBuffer())
}

// ReplySASLAborted reports a client-aborted SASL exchange (ERR_SASLABORTED).
func (conn *Conn) ReplySASLAborted() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplySASLAborted
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "SASL authentication aborted"

	conn.Write(msg.RenderBuffer())
}

// ReplyNoPrivileges rejects an operator-only command from a non-oper.
func (conn *Conn) ReplyNoPrivileges() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyNoPrivileges
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "Permission Denied - You're not an IRC operator"

	conn.Write(msg.RenderBuffer())
}

// ReplyPasswordMismatch rejects a failed OPER/PASS attempt.
func (conn *Conn) ReplyPasswordMismatch() {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyPasswordMistmatch
	msg.Params = []string{conn.user.Nick()}
	msg.Trailing = "Password incorrect"

	conn.Write(msg.RenderBuffer())
}

// ReplyInviteOnlyChan/ReplyBannedFromChan/ReplyBadChannelPass/
// ReplyChannelIsFull report a JOIN rejection reason.
func (conn *Conn) ReplyInviteOnlyChan(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyInviteOnlyChan
	msg.Params = []string{conn.user.Nick(), channel}
	msg.Trailing = ErrInviteOnly.Error()

	conn.Write(msg.RenderBuffer())
}

func (conn *Conn) ReplyBannedFromChan(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyBannedFromChan
	msg.Params = []string{conn.user.Nick(), channel}
	msg.Trailing = ErrBanned.Error()

	conn.Write(msg.RenderBuffer())
}

func (conn *Conn) ReplyBadChannelPass(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyBadChannelPass
	msg.Params = []string{conn.user.Nick(), channel}
	msg.Trailing = ErrBadChannelKey.Error()

	conn.Write(msg.RenderBuffer())
}

func (conn *Conn) ReplyChannelIsFull(channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyChannelIsFull
	msg.Params = []string{conn.user.Nick(), channel}
	msg.Trailing = ErrChannelFull.Error()

	conn.Write(msg.RenderBuffer())
}

// ReplyListModeFull rejects a list-mode add (+b/+e/+I) once the
// channel's list has reached MaxListItems.
func (conn *Conn) ReplyListModeFull(channel string, letter byte) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyBanListFull
	msg.Params = []string{conn.user.Nick(), channel, string(letter)}
	msg.Trailing = "Channel list is full"

	conn.Write(msg.RenderBuffer())
}

// ReplyInviting confirms an INVITE back to the inviter (RPL_INVITING).
func (conn *Conn) ReplyInviting(target, channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyInviting
	msg.Params = []string{conn.user.Nick(), target, channel}

	conn.Write(msg.RenderBuffer())
}

// ReplyUserOnChannel rejects an INVITE for a target already joined.
func (conn *Conn) ReplyUserOnChannel(target, channel string) {
	msg := conn.newMessage()
	defer msgPool.Recycle(msg)

	msg.Code = ReplyUserOnChannel
	msg.Params = []string{conn.user.Nick(), target, channel}
	msg.Trailing = "is already on channel"

	conn.Write(msg.RenderBuffer())
}

// listModeNumerics maps a list-mode letter to its entry numeric and
// its end-of-list numeric, per RFC2812/ircv3's ban/except/invite list
// replies.
var listModeNumerics = map[byte][2]uint16{
	'b': {ReplyBanList, ReplyEndOfBanList},
	'e': {ReplyExceptList, ReplyEndOfExceptList},
	'I': {ReplyInviteList, ReplyEndOfInviteList},
}

// ReplyListMode sends every entry of a channel list mode (ban, ban
// exception, or invite exception) followed by its end-of-list numeric.
// Unrecognized letters are a no-op.
func (conn *Conn) ReplyListMode(channel *Channel, letter byte) {
	codes, ok := listModeNumerics[letter]
	if !ok {
		return
	}

	list := channel.listFor(letter)
	list.ForEach(func(mask string, entry ListEntry) error {
		msg := conn.newMessage()
		msg.Code = codes[0]
		msg.Params = []string{conn.user.Nick(), channel.Name(), mask, entry.Setter, fmt.Sprint(entry.SetAt)}
		conn.Write(msg.RenderBuffer())
		msgPool.Recycle(msg)
		return nil
	})

	end := conn.newMessage()
	defer msgPool.Recycle(end)
	end.Code = codes[1]
	end.Params = []string{conn.user.Nick(), channel.Name()}
	end.Trailing = "End of channel list"
	conn.Write(end.RenderBuffer())
}
