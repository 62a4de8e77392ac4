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
	"encoding/base64"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/coreircd/dircd/casemap"
)

// All of command handler functions do not return an error. Instead it
// must process all error conditions relating to the command and reply
// to the user in the correct way specified by RFC2812.

func registerHandlers(router *Router) {
	router.Handle(CmdQuit, HandleQuit)
	router.Handle(CmdPass, HandlePass)
	router.Handle(CmdNick, HandleNick)
	router.Handle(CmdUser, HandleUser)
	router.Handle(CmdCap, HandleCap)
	router.Handle(CmdPing, HandlePing)
	router.Handle(CmdPong, HandlePong)
	router.Handle(CmdPrivMsg, HandlePrivmsg)
	router.Handle(CmdNotice, HandleNotice)
	router.Handle(CmdJoin, HandleJoin)
	router.Handle(CmdPart, HandlePart)
	router.Handle(CmdTopic, HandleTopic)
	router.Handle(CmdMode, HandleMode)
	router.Handle(CmdKick, HandleKick)
	router.Handle(CmdInvite, HandleInvite)
	router.Handle(CmdWho, HandleWho)
	router.Handle(CmdWhois, HandleWhois)
	router.Handle(CmdList, HandleList)
	router.Handle(CmdAuth, HandleAuthenticate)
	router.Handle(CmdOper, HandleOper)
	router.Handle(CmdRehash, HandleRehash)
	router.Handle(CmdMotd, HandleMotd)
	router.Handle(CmdVersion, HandleVersion)
	router.Handle(CmdUserhost, HandleUserhost)
	router.Handle(CmdAway, HandleAway)
	router.Handle(CmdWallops, HandleWallops)
	router.Handle(CmdKill, HandleKill)
	router.Handle(CmdXInfo, HandleXInfo)

	router.Handle(CmdKLine, handleXLine(XLineK))
	router.Handle(CmdGLine, handleXLine(XLineG))
	router.Handle(CmdZLine, handleXLine(XLineZ))
	router.Handle(CmdQLine, handleXLine(XLineQ))
	router.Handle(CmdRLine, handleXLine(XLineR))
	router.Handle(CmdCBan, handleXLine(XLineCBan))
}

func enough(ctx *MessageContext, expected int) bool {
	if !enoughParams(ctx.Msg, expected) {
		ctx.Conn.ReplyNeedMoreParams(ctx.Msg.Command)
		return false
	}
	return true
}

func (conn *Conn) foldedNick() string {
	return casemap.Key(conn.user.Nick(), casemap.ForMapping(conn.server.Casemap()))
}

func (conn *Conn) fold(s string) string {
	return casemap.Key(s, casemap.ForMapping(conn.server.Casemap()))
}

// isValidNick reports whether nick conforms to the RFC2812 nickname
// grammar, bounded by MaxNickLength.
func isValidNick(nick string) bool {
	if len(nick) < 1 || len(nick) > MaxNickLength {
		return false
	}

	first := nick[0]
	if !(first >= 'a' && first <= 'z') && !(first >= 'A' && first <= 'Z') &&
		strings.IndexByte("[]\\`_^{|}", first) < 0 {
		return false
	}

	for i := 1; i < len(nick); i++ {
		c := nick[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case strings.IndexByte("[]\\`_^{|}-", c) >= 0:
		default:
			return false
		}
	}

	return true
}

// maybeFinishRegistration sends the welcome burst exactly once, once
// NICK and USER have both landed and CAP negotiation, if any, has
// ended. It's idempotent: the RegWelcomed bit guards against NICK,
// USER, and CAP END all racing to finish registration.
func maybeFinishRegistration(conn *Conn) {
	if !conn.user.Registered() {
		return
	}

	state := conn.user.RegState()
	if state&RegWelcomed == RegWelcomed {
		return
	}

	conn.server.RLock()
	want := conn.server.settings.Password
	conn.server.RUnlock()

	if want != EMPTY && conn.pass != want {
		conn.ReplyPasswordMismatch()
		conn.doQuit("Bad server password")
		return
	}

	if decision, recovered := conn.server.PreConnect.Dispatch(conn); decision == Deny {
		conn.doQuit("Connection denied by server policy")
		return
	} else if recovered != EMPTY {
		log.Warnf("irc: PreConnect hook %q panicked, treated as passthru", recovered)
	}

	if line := conn.matchingXLine(); line != nil {
		conn.doQuit(line.Reason)
		return
	}

	conn.user.SetRegBit(RegWelcomed)

	if conn.regTimer != nil {
		conn.server.timers.Cancel(conn.regTimer)
		conn.regTimer = nil
	}

	conn.user.SetUID(NewUID("001"))
	conn.server.Nicks.Set(conn.foldedNick(), conn.user)
	conn.server.Users.Set(conn.fold(conn.user.Name()), conn.user)

	conn.ReplyWelcome()
	conn.ReplyYourHost()
	conn.ReplyCreated()
	conn.ReplyMyInfo()
	conn.ReplyISupport()
	conn.ReplyMotd()
}

// HandleQuit processes a QUIT command.
//
//    Command: QUIT
//    Parameters: :<reason>
func HandleQuit(ctx *MessageContext) {
	ctx.SetRoute(RouteBroadcast, EMPTY)
	ctx.Conn.doQuit(ctx.Msg.Trailing)
	ctx.Handled()
}

// HandlePass processes a PASS command, stashing its argument for
// evaluation against Settings.Password once registration would
// otherwise finish. Harmless to send more than once; only the most
// recent value is kept, as RFC2812 allows.
//
//    Command: PASS
//    Parameters: <password>
func HandlePass(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	if conn.user.Registered() {
		conn.ReplyAlreadyRegistered()
		return
	}

	conn.pass = msg.Params[0]
}

// HandleNick processes a NICK command.
//
//    Command: NICK
//    Parameters: <nickname>
func HandleNick(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enoughParams(msg, 1) || msg.Params[0] == EMPTY {
		conn.ReplyNoNicknameGiven()
		return
	}

	nick := msg.Params[0]

	if !isValidNick(nick) {
		conn.ReplyErroneousNickname(nick)
		return
	}

	if conn.user.Nick() == nick {
		return
	}

	folded := conn.fold(nick)
	if _, exists := conn.server.Nicks.Get(folded); exists {
		conn.ReplyNicknameInUse(nick)
		return
	}

	old := conn.user.Nick()
	oldMask := conn.user.Hostmask()
	wasRegistered := conn.user.Registered()

	conn.user.SetNick(nick)
	conn.user.SetRegBit(RegGotNick)

	if wasRegistered {
		table := casemap.ForMapping(conn.server.Casemap())
		oldFolded := casemap.Key(old, table)

		conn.server.Nicks.Delete(oldFolded)
		conn.server.Nicks.Set(folded, conn.user)

		// Every joined channel's member map is keyed by folded nick;
		// move the membership or the rename locks the user out of
		// their own channels.
		conn.channels.ForEach(func(_ string, channel *Channel) error {
			channel.ChangeMemberKey(oldFolded, folded)
			return nil
		})

		ctx.SetRoute(RouteBroadcast, EMPTY)

		announce := conn.newMessage()
		announce.Source = oldMask
		announce.Command = CmdNick
		announce.Trailing = nick
		ComputeNeighbors(conn.user, conn.channels, true, table).Send(announce)
		msgPool.Recycle(announce)
		return
	}

	maybeFinishRegistration(conn)
}

// HandleUser processes a USER command.
//
//    Command: USER
//    Parameters: <username> <modemask> -0(unused)- :[realname]
func HandleUser(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 4) {
		return
	}

	if conn.user.RegState()&RegGotUser == RegGotUser {
		conn.ReplyAlreadyRegistered()
		return
	}

	// An identd-confirmed username outranks whatever USER claims.
	if conn.identName != EMPTY {
		conn.user.SetName(conn.identName)
	} else {
		conn.user.SetName(msg.Params[0])
	}
	conn.user.SetRealname(msg.Trailing)
	if len(conn.user.host) < 1 {
		conn.user.SetHostname(conn.remAddr)
	}
	conn.user.SetRegBit(RegGotUser)

	maybeFinishRegistration(conn)
}

// HandleCap processes the CAP command and sub commands for
// negotiating capabilities per the IRCv3.2 spec.
//
//    Command: CAP
//    Parameters: <subcommand> [param] :[capability] [capability]
func HandleCap(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyInvalidCapCommand(msg.Command)
		return
	}

	sub := strings.ToUpper(msg.Params[0])

	switch sub {
	case "LS":
		conn.capState.Negotiating = true
		conn.user.SetRegBit(RegCapPending)

		version := 0
		if len(msg.Params) > 1 {
			if v, err := strconv.Atoi(msg.Params[1]); err == nil {
				version = v
			}
		}
		conn.capState.Version = version

		reply := conn.newMessage()
		reply.Command = CmdCap
		reply.Params = []string{conn.foldedOrStar(), "LS"}
		reply.Trailing = conn.capState.LS(version, conn.server.AdvertisedCaps())
		conn.Write(reply.RenderBuffer())
		msgPool.Recycle(reply)

	case "LIST":
		enabled := make([]string, 0, len(conn.capState.Enabled))
		for name := range conn.capState.Enabled {
			enabled = append(enabled, name)
		}

		reply := conn.newMessage()
		reply.Command = CmdCap
		reply.Params = []string{conn.foldedOrStar(), "LIST"}
		reply.Trailing = strings.Join(enabled, SPACE)
		conn.Write(reply.RenderBuffer())
		msgPool.Recycle(reply)

	case "REQ":
		if len(msg.Trailing) < 1 {
			conn.ReplyNeedMoreParams(msg.Command)
			return
		}

		conn.capState.Negotiating = true
		conn.user.SetRegBit(RegCapPending)

		ack, nak := conn.capState.Req(msg.Trailing, conn.server.AdvertisedCaps())

		if len(ack) > 0 {
			reply := conn.newMessage()
			reply.Command = CmdCap
			reply.Params = []string{conn.foldedOrStar(), "ACK"}
			reply.Trailing = strings.Join(ack, SPACE)
			conn.Write(reply.RenderBuffer())
			msgPool.Recycle(reply)
		}

		if len(nak) > 0 {
			reply := conn.newMessage()
			reply.Command = CmdCap
			reply.Params = []string{conn.foldedOrStar(), "NAK"}
			reply.Trailing = strings.Join(nak, SPACE)
			conn.Write(reply.RenderBuffer())
			msgPool.Recycle(reply)
		}

	case "END":
		conn.capState.Negotiating = false
		conn.user.ClearRegBit(RegCapPending)
		maybeFinishRegistration(conn)

	default:
		conn.ReplyInvalidCapCommand(msg.Command)
	}
}

func (conn *Conn) foldedOrStar() string {
	if nick := conn.user.Nick(); len(nick) > 0 {
		return nick
	}
	return "*"
}

// HandleAuthenticate processes an AUTHENTICATE command, the two-step
// exchange the sasl capability negotiates. Only PLAIN is implemented:
// the first message names the mechanism, the second carries the
// base64 "authzid\0authcid\0password" response.
//
//    Command: AUTHENTICATE
//    Parameters: <mechanism> | <base64 response>
func HandleAuthenticate(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	arg := msg.Params[0]

	if conn.saslMech == EMPTY {
		if !strings.EqualFold(arg, "PLAIN") {
			conn.ReplySASLFail()
			return
		}

		conn.saslMech = "PLAIN"

		reply := conn.newMessage()
		reply.Command = CmdAuth
		reply.Params = []string{"+"}
		conn.Write(reply.RenderBuffer())
		msgPool.Recycle(reply)
		return
	}

	conn.saslMech = EMPTY

	if arg == "*" {
		conn.ReplySASLAborted()
		return
	}

	payload, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		conn.ReplySASLFail()
		return
	}

	parts := bytes.SplitN(payload, []byte{0}, 3)
	if len(parts) != 3 {
		conn.ReplySASLFail()
		return
	}
	authcid := string(parts[1])
	password := string(parts[2])

	conn.server.RLock()
	want, exists := conn.server.settings.Accounts[authcid]
	conn.server.RUnlock()

	if !exists || want != password {
		conn.ReplySASLFail()
		return
	}

	conn.user.SetAccount(authcid)
	conn.ReplyLoggedIn(authcid)
	conn.ReplySASLSuccess()
	notifyAccountChange(conn)
}

// notifyAccountChange sends an ACCOUNT message to every other member of
// every channel conn's user shares with them, for clients holding the
// account-notify capability. Each target is notified at most once even
// if they share more than one channel.
func notifyAccountChange(conn *Conn) {
	account := conn.user.Account()
	if account == EMPTY {
		account = "*"
	}

	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdAccount
	announce.Params = []string{account}
	defer msgPool.Recycle(announce)

	seen := map[string]bool{conn.foldedNick(): true}
	conn.channels.ForEach(func(_ string, channel *Channel) error {
		channel.ForEachMember(func(m *Membership) {
			nick := conn.fold(m.User().Nick())
			if seen[nick] {
				return
			}
			seen[nick] = true
			if m.User().conn.capState.Has("account-notify") {
				m.User().conn.Write(announce.RenderBuffer())
			}
		})
		return nil
	})
}

// HandlePing processes a PING command originated from the client.
//
//    Command: PING
//    Parameters: :<token>
func HandlePing(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	reply := conn.newMessage()
	reply.Command = CmdPong
	reply.Params = []string{conn.server.Hostname()}
	reply.Trailing = msg.Trailing
	conn.Write(reply.RenderBuffer())
	msgPool.Recycle(reply)
}

// HandlePong processes a PONG command in reply to a server sent PING.
//
//    Command: PONG
//    Parameters: :<token>
func HandlePong(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	conn.Lock()
	conn.lastPingRecv = msg.Trailing
	conn.Unlock()
}

// HandlePrivmsg processes a PRIVMSG command.
//
//    Command: PRIVMSG
//    Parameters: <target> :<text>
func HandlePrivmsg(ctx *MessageContext) {
	doChatMessage(ctx, CmdPrivMsg)
}

// HandleNotice processes a NOTICE command.
//
//    Command: NOTICE
//    Parameters: <target> :<text>
func HandleNotice(ctx *MessageContext) {
	doChatMessage(ctx, CmdNotice)
}

func doChatMessage(ctx *MessageContext, command string) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enoughParams(msg, 1) || msg.Trailing == EMPTY {
		if command == CmdPrivMsg {
			conn.ReplyNeedMoreParams(msg.Command)
		}
		return
	}

	target := msg.Params[0]
	folded := conn.fold(target)

	out := conn.newMessage()
	out.Source = conn.user.Hostmask()
	out.Command = command
	out.Params = []string{target}
	out.Trailing = msg.Trailing
	defer msgPool.Recycle(out)

	if strings.HasPrefix(target, "#") {
		channel, exists := conn.server.Channels.Get(folded)
		if !exists {
			if command == CmdPrivMsg {
				conn.ReplyNoSuchChan(target)
			}
			return
		}

		if _, joined := channel.Member(conn.foldedNick()); !joined && channel.ModeIsSet(CModeNoExternal) {
			return
		}
		if channel.ModeIsSet(CModeModerated) {
			if m, joined := channel.Member(conn.foldedNick()); !joined || m.Rank() == RankNone {
				return
			}
		}

		ctx.SetRoute(RouteMessage, target)
		channel.Send(out, conn.foldedNick())
		if conn.capState.Has("echo-message") {
			conn.Write(out.RenderBuffer())
		}
		return
	}

	targetUser, exists := conn.server.Nicks.Get(folded)
	if !exists {
		if command == CmdPrivMsg {
			conn.ReplyNoSuchNick(target)
		}
		return
	}

	if targetUser.IsAway() && command == CmdPrivMsg {
		conn.ReplyAway(targetUser)
	}

	ctx.SetRoute(RouteMessage, target)
	targetUser.conn.Write(out.RenderBuffer())
	if conn.capState.Has("echo-message") {
		conn.Write(out.RenderBuffer())
	}
}

// HandleJoin processes a JOIN command.
//
//    Command: JOIN
//    Parameters: <channel> [key]
func HandleJoin(ctx *MessageContext) {
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	for _, cname := range strings.Split(msg.Params[0], ",") {
		joinOneChannel(ctx, cname)
	}
}

func joinOneChannel(ctx *MessageContext, cname string) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !strings.HasPrefix(cname, "#") || len(cname) > MaxChanLength {
		conn.ReplyNoSuchChan(cname)
		return
	}

	if conn.channels.Length() >= MaxJoinedChans {
		conn.ReplyChannelIsFull(cname)
		return
	}

	folded := conn.fold(cname)

	if line := conn.server.XLines.MatchGlob(XLineCBan, cname, conn.server.Casemap()); line != nil {
		conn.ReplyBannedFromChan(cname)
		return
	}

	key := EMPTY
	if len(msg.Params) > 1 {
		key = msg.Params[1]
	}

	channel, existed := conn.server.Channels.Get(folded)
	if !existed {
		channel = NewChannel(cname, time.Now().Unix())
	} else if reason := checkJoinPolicy(conn, channel, key); reason != EMPTY {
		writeJoinRejection(conn, cname, reason)
		return
	}

	if decision, recovered := conn.server.PreJoin.Dispatch(&joinAttempt{User: conn.user, Channel: channel, Key: key}); decision == Deny {
		conn.ReplyBannedFromChan(cname)
		return
	} else if recovered != EMPTY {
		log.Warnf("irc: PreJoin hook %q panicked, treated as passthru", recovered)
	}

	if !existed {
		conn.server.Channels.Set(folded, channel)
	}

	joined := time.Now().Unix()
	channel.AddMember(conn.user, conn.foldedNick(), joined)
	conn.channels.Set(channel.Name(), channel)
	channel.InviteOnce.Delete(conn.foldedNick())
	ctx.SetRoute(RouteBroadcast, EMPTY)

	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdJoin
	announce.Params = []string{channel.Name()}
	channel.Send(announce, EMPTY)
	msgPool.Recycle(announce)

	if member, joined := channel.Member(conn.foldedNick()); joined {
		conn.server.PostJoin.VisitAll(member)
	}

	conn.ReplyChannelTopic(channel)
	conn.ReplyChannelNames(channel)
}

// checkJoinPolicy returns the Error sentinel blocking the join, or
// EMPTY if the user may join.
func checkJoinPolicy(conn *Conn, channel *Channel, key string) Error {
	if channel.ModeIsSet(CModeInviteOnly) {
		if _, invited := channel.InviteOnce.Get(conn.foldedNick()); !invited {
			return ErrInviteOnly
		}
	}

	if channel.ModeIsSet(CModeKey) && channel.Key() != key {
		return ErrBadChannelKey
	}

	if channel.ModeIsSet(CModeLimit) && channel.Limit() > 0 && channel.MemberCount() >= channel.Limit() {
		return ErrChannelFull
	}

	mask := conn.user.RealHostmask()
	table := casemap.ForMapping(conn.server.Casemap())
	for _, banMask := range channel.BanList.Keys() {
		if casemap.Glob(banMask, mask, table) && !globAny(channel.ExceptList.Keys(), mask, table) {
			return ErrBanned
		}
	}

	return EMPTY
}

// destroyChannelIfEmpty removes a channel from the server's channel
// index once its member-map is empty, unless it carries the
// permanent (+P) sticky mode. Mirrors spec §4.6: destruction happens
// immediately here rather than on a deferred cull queue, since this
// server has no cross-handler iteration over the channel being torn
// down to protect against.
func destroyChannelIfEmpty(server *Server, channel *Channel) {
	if channel.MemberCount() > 0 || channel.ModeIsSet(CModePermanent) {
		return
	}

	folded := casemap.Key(channel.Name(), casemap.ForMapping(server.Casemap()))
	server.Channels.Delete(folded)
}

// matchingXLine evaluates the K/G/Q/R line types against this
// connection's finalized identity, first match wins. Z-lines are
// checked earlier, at accept, against the bare IP (connection.go).
func (conn *Conn) matchingXLine() *XLine {
	mapping := conn.server.Casemap()

	if line := conn.server.XLines.MatchHostmask(XLineK, conn.user.UserAtHost(), mapping); line != nil {
		return line
	}
	if line := conn.server.XLines.MatchHostmask(XLineG, conn.user.UserAtHost(), mapping); line != nil {
		return line
	}
	if line := conn.server.XLines.MatchGlob(XLineQ, conn.user.Nick(), mapping); line != nil {
		return line
	}
	if line := conn.server.XLines.MatchGlob(XLineR, conn.user.Realname(), mapping); line != nil {
		return line
	}
	return nil
}

func globAny(masks []string, subject string, table *casemap.Table) bool {
	for _, mask := range masks {
		if casemap.Glob(mask, subject, table) {
			return true
		}
	}
	return false
}

func writeJoinRejection(conn *Conn, cname string, reason Error) {
	switch reason {
	case ErrInviteOnly:
		conn.ReplyInviteOnlyChan(cname)
	case ErrBadChannelKey:
		conn.ReplyBadChannelPass(cname)
	case ErrChannelFull:
		conn.ReplyChannelIsFull(cname)
	case ErrBanned:
		conn.ReplyBannedFromChan(cname)
	default:
		conn.ReplyNoSuchChan(cname)
	}
}

// HandlePart processes a PART command.
//
//    Command: PART
//    Parameters: <channel> [:reason]
func HandlePart(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	for _, cname := range strings.Split(msg.Params[0], ",") {
		folded := conn.fold(cname)
		channel, exists := conn.server.Channels.Get(folded)
		if !exists {
			conn.ReplyNoSuchChan(cname)
			continue
		}

		if _, joined := channel.Member(conn.foldedNick()); !joined {
			conn.ReplyNotOnChannel(cname)
			continue
		}

		announce := conn.newMessage()
		announce.Source = conn.user.Hostmask()
		announce.Command = CmdPart
		announce.Params = []string{channel.Name()}
		announce.Trailing = msg.Trailing
		channel.Send(announce, EMPTY)
		msgPool.Recycle(announce)

		channel.RemoveMember(conn.foldedNick())
		conn.channels.Delete(channel.Name())
		destroyChannelIfEmpty(conn.server, channel)
		ctx.SetRoute(RouteBroadcast, EMPTY)
	}
}

// HandleTopic processes a TOPIC command: with no trailing it queries
// the current topic, with one it sets it (if permitted).
//
//    Command: TOPIC
//    Parameters: <channel> [:topic]
func HandleTopic(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	cname := msg.Params[0]
	channel, exists := conn.server.Channels.Get(conn.fold(cname))
	if !exists {
		conn.ReplyNoSuchChan(cname)
		return
	}

	member, joined := channel.Member(conn.foldedNick())
	if !joined {
		conn.ReplyNotOnChannel(cname)
		return
	}

	if len(msg.Params) < 2 && msg.Trailing == EMPTY {
		conn.ReplyChannelTopic(channel)
		return
	}

	if channel.ModeIsSet(CModeTopicLock) && member.Rank()&(RankOp|RankAdmin|RankOwner) == 0 {
		conn.ReplyChanOpPrivsNeeded(cname)
		return
	}

	channel.SetTopic(msg.Trailing, conn.user.Hostmask(), time.Now().Unix())
	ctx.SetRoute(RouteBroadcast, EMPTY)

	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdTopic
	announce.Params = []string{channel.Name()}
	announce.Trailing = msg.Trailing
	channel.Send(announce, EMPTY)
	msgPool.Recycle(announce)
}

// HandleMode processes a MODE command for either a channel or a user.
//
//    Command: MODE
//    Parameters: <target> [modestring] [mode arguments...]
func HandleMode(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	target := msg.Params[0]

	if strings.HasPrefix(target, "#") {
		handleChannelMode(ctx, target, msg.Params[1:])
		return
	}

	handleUserMode(conn, target, msg.Params[1:])
}

func handleUserMode(conn *Conn, target string, args []string) {
	if conn.fold(target) != conn.foldedNick() {
		conn.ReplyUsersDontMatch()
		return
	}

	if len(args) == 0 {
		conn.ReplyUserModeIs()
		return
	}

	// Per-flag application of user modes is an extension point left to
	// services/oper tooling; the core server only tracks and reports them.
}

func handleChannelMode(ctx *MessageContext, cname string, args []string) {
	conn := ctx.Conn
	channel, exists := conn.server.Channels.Get(conn.fold(cname))
	if !exists {
		conn.ReplyNoSuchChan(cname)
		return
	}

	if len(args) == 0 {
		conn.ReplyChannelModeIs(channel)
		return
	}

	if len(args) == 1 && len(args[0]) == 1 && channel.listFor(args[0][0]) != nil {
		conn.ReplyListMode(channel, args[0][0])
		return
	}

	member, joined := channel.Member(conn.foldedNick())

	changes, err := ParseChannelModeChanges(args[0], args[1:])
	if err != nil {
		conn.ReplyNeedMoreParams(CmdMode)
		return
	}

	if !joined || member.Rank()&(RankOp|RankAdmin|RankOwner) == 0 {
		conn.ReplyChanOpPrivsNeeded(cname)
		return
	}

	table := casemap.ForMapping(conn.server.Casemap())
	applied := make([]ModeChange, 0, len(changes))

	for _, change := range changes {
		if applyChannelModeChange(conn, channel, change, table) {
			applied = append(applied, change)
		}
	}

	if len(applied) == 0 {
		return
	}

	ctx.SetRoute(RouteBroadcast, EMPTY)

	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdMode
	announce.Params = append([]string{channel.Name()}, renderModeChanges(applied)...)
	channel.Send(announce, EMPTY)
	msgPool.Recycle(announce)
}

func renderModeChanges(changes []ModeChange) []string {
	var flags strings.Builder
	var args []string
	lastAdd := true
	first := true

	for _, c := range changes {
		if first || c.Add != lastAdd {
			if c.Add {
				flags.WriteByte('+')
			} else {
				flags.WriteByte('-')
			}
			lastAdd = c.Add
			first = false
		}
		flags.WriteByte(c.Letter)
		if c.Arg != EMPTY {
			args = append(args, c.Arg)
		}
	}

	return append([]string{flags.String()}, args...)
}

func applyChannelModeChange(conn *Conn, channel *Channel, change ModeChange, table *casemap.Table) bool {
	switch ChanModeKind(change.Letter) {
	case ModeKindList:
		list := channel.listFor(change.Letter)
		if list == nil || change.Arg == EMPTY {
			return false
		}
		if change.Add {
			for _, mask := range list.Keys() {
				if casemap.Equal(mask, change.Arg, table) {
					return false // duplicate add, dropped silently
				}
			}
			if list.Length() >= MaxListItems {
				conn.ReplyListModeFull(channel.Name(), change.Letter)
				return false
			}
			list.Set(change.Arg, ListEntry{Setter: conn.user.Hostmask(), SetAt: time.Now().Unix()})
		} else {
			if !list.Delete(change.Arg) {
				for _, mask := range list.Keys() {
					if casemap.Equal(mask, change.Arg, table) {
						list.Delete(mask)
						break
					}
				}
			}
		}
		return true

	case ModeKindParam:
		if change.Letter == 'k' {
			if change.Add {
				if channel.ModeIsSet(CModeKey) && channel.Key() == change.Arg {
					return false // no-op suppression
				}
				channel.SetKey(change.Arg)
				channel.AddMode(CModeKey)
			} else {
				if !channel.ModeIsSet(CModeKey) {
					return false
				}
				channel.SetKey(EMPTY)
				channel.DelMode(CModeKey)
			}
		}
		return true

	case ModeKindSetParam:
		if change.Letter == 'l' {
			if change.Add {
				limit, err := strconv.Atoi(change.Arg)
				if err != nil {
					return false
				}
				if channel.ModeIsSet(CModeLimit) && channel.Limit() == limit {
					return false // no-op suppression
				}
				channel.SetLimit(limit)
				channel.AddMode(CModeLimit)
			} else {
				if !channel.ModeIsSet(CModeLimit) {
					return false
				}
				channel.SetLimit(0)
				channel.DelMode(CModeLimit)
			}
		}
		return true

	case ModeKindPrefix:
		rank, ok := PrefixRank[change.Letter]
		if !ok {
			return false
		}
		member, joined := channel.Member(casemap.Key(change.Arg, table))
		if !joined {
			return false
		}
		if change.Add {
			if member.Rank()&rank == rank {
				return false // no-op suppression
			}
			member.AddRank(rank)
		} else {
			if member.Rank()&rank == 0 {
				return false // no-op suppression
			}
			member.DelRank(rank)
		}
		return true

	default:
		bit, ok := ChanModeLetters[change.Letter]
		if !ok {
			return false
		}
		if change.Add == channel.ModeIsSet(bit) {
			return false // no-op suppression
		}
		if change.Add {
			channel.AddMode(bit)
		} else {
			channel.DelMode(bit)
		}
		return true
	}
}

// HandleKick processes a KICK command.
//
//    Command: KICK
//    Parameters: <channel> <nick> [:reason]
func HandleKick(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 2) {
		return
	}

	cname := msg.Params[0]
	target := msg.Params[1]

	channel, exists := conn.server.Channels.Get(conn.fold(cname))
	if !exists {
		conn.ReplyNoSuchChan(cname)
		return
	}

	kicker, joined := channel.Member(conn.foldedNick())
	if !joined || kicker.Rank()&(RankOp|RankAdmin|RankOwner) == 0 {
		conn.ReplyChanOpPrivsNeeded(cname)
		return
	}

	foldedTarget := conn.fold(target)
	if _, joined := channel.Member(foldedTarget); !joined {
		conn.ReplyUserNotInChannel(target, cname)
		return
	}

	reason := msg.Trailing
	if reason == EMPTY {
		reason = conn.user.Nick()
	}

	ctx.SetRoute(RouteBroadcast, EMPTY)

	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdKick
	announce.Params = []string{channel.Name(), target}
	announce.Trailing = reason
	channel.Send(announce, EMPTY)
	msgPool.Recycle(announce)

	channel.RemoveMember(foldedTarget)

	if targetUser, exists := conn.server.Nicks.Get(foldedTarget); exists {
		targetUser.conn.channels.Delete(channel.Name())
	}

	destroyChannelIfEmpty(conn.server, channel)
}

// HandleWho processes a WHO command.
//
//    Command: WHO
//    Parameters: [mask]
func HandleWho(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	mask := "*"
	if len(msg.Params) > 0 {
		mask = msg.Params[0]
	}

	if strings.HasPrefix(mask, "#") {
		channel, exists := conn.server.Channels.Get(conn.fold(mask))
		if exists {
			viewer, _ := channel.Member(conn.foldedNick())
			channel.VisibleMembers(viewer, func(m *Membership) {
				conn.ReplyWhoLine(channel.Name(), m.User())
			})
		}
	} else {
		table := casemap.ForMapping(conn.server.Casemap())
		conn.server.Nicks.ForEach(func(_ string, u *User) error {
			if casemap.Glob(mask, u.Nick(), table) {
				conn.ReplyWhoLine(EMPTY, u)
			}
			return nil
		})
	}

	conn.ReplyEndOfWho(mask)
}

// HandleWhois processes a WHOIS command.
//
//    Command: WHOIS
//    Parameters: <nick>[,<nick>...]
func HandleWhois(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	for _, nick := range strings.Split(msg.Params[0], ",") {
		target, exists := conn.server.Nicks.Get(conn.fold(nick))
		if !exists {
			conn.ReplyNoSuchNick(nick)
			continue
		}

		conn.ReplyWhoisUser(target)
		conn.ReplyWhoisServer(target)

		var channels []string
		target.conn.channels.ForEach(func(name string, ch *Channel) error {
			if m, joined := ch.Member(conn.fold(name)); joined {
				channels = append(channels, m.Prefix()+name)
			}
			return nil
		})
		conn.ReplyWhoisChannels(target, channels)

		if target.IsAway() {
			conn.ReplyAway(target)
		}

		conn.ReplyEndOfWhois(nick)
	}
}

// HandleList processes a LIST command.
//
//    Command: LIST
//    Parameters: [channel,...]
func HandleList(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	conn.ReplyListStart()

	if len(msg.Params) > 0 {
		for _, cname := range strings.Split(msg.Params[0], ",") {
			if channel, exists := conn.server.Channels.Get(conn.fold(cname)); exists {
				if !channel.ModeIsSet(CModeSecret) && !channel.ModeIsSet(CModePrivate) {
					conn.ReplyListLine(channel)
				}
			}
		}
	} else {
		conn.server.Channels.ForEach(func(_ string, channel *Channel) error {
			if !channel.ModeIsSet(CModeSecret) && !channel.ModeIsSet(CModePrivate) {
				conn.ReplyListLine(channel)
			}
			return nil
		})
	}

	conn.ReplyEndOfList()
}

// HandleOper processes an OPER command.
//
//    Command: OPER
//    Parameters: <name> <password>
func HandleOper(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 2) {
		return
	}

	conn.server.RLock()
	want, exists := conn.server.settings.Opers[msg.Params[0]]
	conn.server.RUnlock()

	if !exists || want != msg.Params[1] {
		conn.ReplyPasswordMismatch()
		return
	}

	conn.user.AddMode(UModeNetOp)
	conn.user.SetPermission(UPermNetOp)
	conn.ReplyYoureOper()
}

// HandleRehash processes a REHASH command. Unlike inspircd's full
// config-file reload, the only hot-swappable setting wired up here is
// the casemap, which rebuilds the nick and channel indexes in place.
//
//    Command: REHASH
//    Parameters: [CASEMAP <ascii|rfc1459|strict-rfc1459>]
func HandleRehash(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if conn.user.Permission() < UPermNetOp {
		conn.ReplyNoPrivileges()
		return
	}

	if len(msg.Params) < 2 || !strings.EqualFold(msg.Params[0], "CASEMAP") {
		conn.ReplyRehashing(EMPTY)
		return
	}

	var mapping casemap.Mapping
	switch strings.ToLower(msg.Params[1]) {
	case "ascii":
		mapping = casemap.ASCII
	case "rfc1459":
		mapping = casemap.RFC1459
	case "strict-rfc1459":
		mapping = casemap.StrictRFC1459
	default:
		conn.ReplyFail(msg.Command, "INVALID_CASEMAP", "unknown casemapping: "+msg.Params[1])
		return
	}

	conn.server.SetCasemap(mapping)
	conn.ReplyRehashing("CASEMAP")
}

// HandleMotd processes a MOTD command.
//
//    Command: MOTD
func HandleMotd(ctx *MessageContext) {
	ctx.Conn.ReplyMotd()
}

// HandleVersion processes a VERSION command.
//
//    Command: VERSION
func HandleVersion(ctx *MessageContext) {
	ctx.Conn.ReplyVersion()
}

// HandleUserhost processes a USERHOST command.
//
//    Command: USERHOST
//    Parameters: <nickname1> [nickname2] [nickname3] [nickname4] [nickname5]
func HandleUserhost(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 1) {
		return
	}

	hosts := make([]string, 0, len(msg.Params))
	for _, nick := range msg.Params {
		target, exists := conn.server.Nicks.Get(conn.fold(nick))
		if !exists {
			continue
		}

		away := "+"
		if target.IsAway() {
			away = "-"
		}
		hosts = append(hosts, nick+"="+away+target.Hostmask())
	}

	reply := conn.newMessage()
	reply.Code = ReplyUserHost
	reply.Params = []string{conn.user.Nick()}
	reply.Trailing = strings.Join(hosts, SPACE)
	conn.Write(reply.RenderBuffer())
	msgPool.Recycle(reply)
}

// HandleAway processes an AWAY command.
//
//    Command: AWAY
//    Parameters: [:message]
func HandleAway(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	conn.user.SetAway(msg.Trailing)
	ctx.SetRoute(RouteBroadcast, EMPTY)

	if msg.Trailing == EMPTY {
		conn.ReplyUnAway()
	} else {
		conn.ReplyNowAway()
	}

	// away-notify holders sharing a channel learn about the change
	// without polling WHOIS.
	announce := conn.newMessage()
	announce.Source = conn.user.Hostmask()
	announce.Command = CmdAway
	announce.Trailing = msg.Trailing
	defer msgPool.Recycle(announce)

	seen := map[string]bool{conn.foldedNick(): true}
	conn.channels.ForEach(func(_ string, channel *Channel) error {
		channel.ForEachMember(func(m *Membership) {
			nick := conn.fold(m.User().Nick())
			if seen[nick] {
				return
			}
			seen[nick] = true
			if m.User().conn.capState.Has("away-notify") {
				m.User().conn.Write(announce.RenderBuffer())
			}
		})
		return nil
	})
}

// HandleInvite processes an INVITE command. Records a one-shot
// exemption against the target's nick so a subsequent JOIN bypasses
// +i, per spec §4.6's checkJoinPolicy.
//
//    Command: INVITE
//    Parameters: <nickname> <channel>
func HandleInvite(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if !enough(ctx, 2) {
		return
	}

	target := msg.Params[0]
	cname := msg.Params[1]

	targetUser, exists := conn.server.Nicks.Get(conn.fold(target))
	if !exists {
		conn.ReplyNoSuchNick(target)
		return
	}

	channel, exists := conn.server.Channels.Get(conn.fold(cname))
	foldedTarget := conn.fold(target)

	if exists {
		if _, joined := channel.Member(foldedTarget); joined {
			conn.ReplyUserOnChannel(target, cname)
			return
		}

		if inviter, joined := channel.Member(conn.foldedNick()); !joined {
			conn.ReplyNotOnChannel(cname)
			return
		} else if channel.ModeIsSet(CModeInviteOnly) && inviter.Rank()&(RankOp|RankAdmin|RankOwner) == 0 {
			conn.ReplyChanOpPrivsNeeded(cname)
			return
		}

		channel.InviteOnce.Set(foldedTarget, conn.foldedNick())
	}

	invite := conn.newMessage()
	invite.Source = conn.user.Hostmask()
	invite.Command = CmdInvite
	invite.Params = []string{target, cname}
	targetUser.conn.Write(invite.RenderBuffer())

	if exists {
		channel.ForEachMember(func(m *Membership) {
			if m.User() != conn.user && m.User() != targetUser && m.User().conn.capState.Has("invite-notify") {
				m.User().conn.Write(invite.RenderBuffer())
			}
		})
	}

	msgPool.Recycle(invite)

	conn.ReplyInviting(target, cname)
}

// HandleWallops processes a WALLOPS command, relaying an operator
// broadcast to every connected user with the NetOp user mode set.
//
//    Command: WALLOPS
//    Parameters: :<text>
func HandleWallops(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if conn.user.Permission() < UPermNetOp {
		conn.ReplyNoPrivileges()
		return
	}

	if msg.Trailing == EMPTY {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	ctx.SetRoute(RouteBroadcast, EMPTY)

	out := conn.newMessage()
	out.Source = conn.user.Hostmask()
	out.Command = CmdWallops
	out.Trailing = msg.Trailing
	defer msgPool.Recycle(out)

	conn.server.Nicks.ForEach(func(_ string, target *User) error {
		if target.ModeIsSet(UModeNetOp) {
			target.conn.Write(out.RenderBuffer())
		}
		return nil
	})
}

// HandleKill processes a KILL command, forcibly disconnecting a
// target user with an operator-supplied reason.
//
//    Command: KILL
//    Parameters: <nickname> :<reason>
func HandleKill(ctx *MessageContext) {
	conn := ctx.Conn
	msg := ctx.Msg

	if conn.user.Permission() < UPermNetOp {
		conn.ReplyNoPrivileges()
		return
	}

	if !enough(ctx, 1) {
		return
	}

	target := msg.Params[0]
	targetUser, exists := conn.server.Nicks.Get(conn.fold(target))
	if !exists {
		conn.ReplyNoSuchNick(target)
		return
	}

	reason := msg.Trailing
	if reason == EMPTY {
		reason = "Killed"
	}

	ctx.SetRoute(RouteBroadcast, EMPTY)
	targetUser.conn.doQuit("Killed (" + conn.user.Nick() + " (" + reason + "))")
}

// handleXLine returns a MessageHandler for one of the X-line admin
// commands (KLINE/GLINE/ZLINE/QLINE/RLINE/CBAN), all of which share the
// same "<mask> [duration] :[reason]" shape and oper-only gate.
//
//    Parameters: <mask> [duration] :[reason]
func handleXLine(t XLineType) MessageHandler {
	return func(ctx *MessageContext) {
		conn := ctx.Conn
		msg := ctx.Msg

		if conn.user.Permission() < UPermNetOp {
			conn.ReplyNoPrivileges()
			return
		}

		if !enough(ctx, 1) {
			return
		}

		if strings.HasPrefix(msg.Params[0], "-") {
			if err := conn.server.XLines.Remove(t, strings.TrimPrefix(msg.Params[0], "-")); err != nil {
				conn.ReplyFail(msg.Command, "NO_SUCH_ENTRY", err.Error())
				return
			}
			ctx.SetRoute(RouteBroadcast, EMPTY)
			return
		}

		var duration time.Duration
		if len(msg.Params) > 1 {
			if secs, err := strconv.Atoi(msg.Params[1]); err == nil {
				duration = time.Duration(secs) * time.Second
			}
		}

		reason := msg.Trailing
		if reason == EMPTY {
			reason = "No reason given"
		}

		line := NewXLine(t, msg.Params[0], reason, conn.user.Nick(), duration)
		if err := conn.server.XLines.Add(line); err != nil {
			conn.ReplyFail(msg.Command, "DUPLICATE_ENTRY", err.Error())
			return
		}

		ctx.SetRoute(RouteBroadcast, EMPTY)
		applyXLineToExisting(conn.server, line)
	}
}

// applyXLineToExisting walks the local user table and disconnects
// every already-connected user newly matched by line, per spec §4.10.
// CBan targets channel names, not users, so it has nothing to apply.
func applyXLineToExisting(server *Server, line *XLine) {
	if line.Type == XLineCBan {
		return
	}

	mapping := server.Casemap()

	server.Nicks.ForEach(func(_ string, target *User) error {
		var matched bool

		switch line.Type {
		case XLineK, XLineG:
			matched = casemap.Glob(line.Mask, target.UserAtHost(), casemap.ForMapping(mapping))
		case XLineZ:
			if ip := target.conn.ip; ip != nil {
				if _, cidr, err := net.ParseCIDR(line.Mask); err == nil {
					matched = cidr.Contains(ip)
				} else {
					matched = line.Mask == ip.String()
				}
			}
		case XLineQ:
			matched = casemap.Glob(line.Mask, target.Nick(), casemap.ForMapping(mapping))
		case XLineR:
			matched = casemap.Glob(line.Mask, target.Realname(), casemap.ForMapping(mapping))
		}

		if matched {
			target.conn.doQuit(line.Reason)
		}
		return nil
	})
}
