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
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btnmasher/random"
	"golang.org/x/time/rate"

	"github.com/coreircd/dircd/casemap"
	"github.com/coreircd/dircd/jobs"
)

// oversizePenalty is the flood charge added for a line that failed to
// parse (oversize, malformed, all-whitespace). Such a line never reaches
// the token bucket, so this is the only charge it incurs.
const oversizePenalty = 5

// restrictedCommands may be issued by a connection before registration
// completes; everything else gets ErrNotRegistered.
var restrictedCommands = map[string]bool{
	CmdPass: true,
	CmdNick: true,
	CmdUser: true,
	CmdCap:  true,
	CmdAuth: true,
	CmdPing: true,
	CmdPong: true,
	CmdQuit: true,
}

// Conn represents the server side of an IRC connection.
type Conn struct {
	sync.RWMutex

	// server is the server on which the connection arrived.
	// Immutable; never nil.
	server *Server

	// sock is the underlying network connection. Usually a *net.TCPConn
	// or *tls.Conn.
	sock net.Conn

	// remAddr is sock.RemoteAddr().String(). Populated synchronously in
	// (*Conn).start, since some RemoteAddr implementations can block.
	remAddr string
	ip      net.IP

	user     *User
	channels ChanMap
	capState *CapState

	// saslMech is the mechanism name of an AUTHENTICATE exchange
	// awaiting its base64 response payload, empty when none is in
	// progress.
	saslMech string

	// pass holds the most recent PASS command's argument, checked
	// against Settings.Password once registration would otherwise
	// complete.
	pass string

	// lastSentMark is the broadcast mark this connection was last
	// written to under; see broadcast.go's NeighborSet.
	lastSentMark uint64

	// sendqBytes tracks the bytes queued but not yet written to the
	// socket, enforced against the class's SendQBytes cap.
	sendqBytes int64

	// identName is the username reported by an RFC 1413 ident lookup,
	// empty if the class doesn't require one or the lookup failed.
	identName string

	// regTimer fires if the connection hasn't completed registration
	// within its class's RegTimeout; cancelled on welcome.
	regTimer *Timer

	incoming *bufio.Scanner
	outgoing *bufio.Writer

	writeQueue chan *bytes.Buffer

	heartbeat *time.Timer

	lastPingSent string
	lastPingRecv string

	kill chan bool

	timeoutForced bool

	class   Class
	limiter *rate.Limiter
}

// NewConn initializes a new instance of Conn.
func NewConn(srv *Server, sck net.Conn) *Conn {
	conn := &Conn{
		server:     srv,
		sock:       sck,
		heartbeat:  time.NewTimer(PingTimeout),
		channels:   NewChanMap(),
		capState:   NewCapState(),
		incoming:   bufio.NewScanner(sck),
		outgoing:   bufio.NewWriter(sck),
		writeQueue: make(chan *bytes.Buffer, WriteQueueLength),
		kill:       make(chan bool, 5),
		class:      DefaultClass,
	}
	conn.limiter = newFloodLimiter(conn.class)
	conn.user = &User{conn: conn}
	return conn
}

// newFloodLimiter builds the token bucket gating how fast a connection
// may feed lines into the command router, sized off its connect
// class. A non-positive FloodLinesPerSec disables the bucket.
func newFloodLimiter(class Class) *rate.Limiter {
	if class.FloodLinesPerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(class.FloodLinesPerSec), class.FloodBurst)
}

func serve(conn *Conn) {
	defer conn.cleanup()
	conn.start()

	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("irc: Panic serving %v: %v\n%s", conn.remAddr, err, buf)
			conn.doQuit("Server Error.")
		}

		conn.sock.Close()
	}()

	if host, _, err := net.SplitHostPort(conn.remAddr); err == nil {
		conn.ip = net.ParseIP(host)
	}

	conn.class = conn.server.ClassFor(conn.ip)
	conn.limiter = newFloodLimiter(conn.class)

	if line := conn.server.XLines.MatchIP(conn.ip); line != nil {
		conn.reject("*** You are banned from this server: " + line.Reason)
		return
	}

	if conn.tooManyFromIP() {
		conn.reject("*** Too many connections from your host")
		return
	}

	if conn.class.RegTimeout > 0 {
		conn.regTimer = conn.server.timers.Schedule(conn.class.RegTimeout, 0, func(time.Time) {
			if !conn.user.Registered() {
				log.Infof("irc: Registration timed out for [%s]", conn.remAddr)
				conn.doQuit("Registration timed out.")
			}
		})
	}

	if tlsConn, ok := conn.sock.(*tls.Conn); ok {
		conn.setDeadlines()

		if err := tlsConn.Handshake(); err != nil {
			log.Errorf("irc: TLS handshake error from [%s]: %s", conn.remAddr, err)
			return
		}
	}

	conn.resolveHostname()
	conn.resolveIdent()

	go conn.writeLoop() // Runs until conn.kill channel is signaled
	conn.readLoop()     // Blocks until error
	log.Debugf("irc: readLoop() exited for [%s]", conn.remAddr)
}

// resolveHostname runs a best-effort reverse-DNS lookup, bounded so a
// slow or unresponsive resolver never blocks the accept loop; a failed
// or timed-out lookup just leaves the connection's raw IP as its
// displayed hostname. The lookup itself runs on the shared jobs pool so
// it doesn't spawn an unbounded goroutine per connect.
func (conn *Conn) resolveHostname() {
	if conn.ip == nil || !conn.class.RequireDNS {
		if conn.ip != nil {
			conn.user.SetHostname(conn.ip.String())
		}
		return
	}

	job := jobs.NewDNSLookupJob(conn.ip, 5*time.Second)
	done := make(chan jobs.Result, 1)

	conn.server.jobs.Submit(context.Background(), dnsCallbackJob{job, done})

	select {
	case result := <-done:
		if host, ok := result.Value.(string); ok && host != "" {
			conn.user.SetHostname(host)
			return
		}
	case <-time.After(6 * time.Second):
	}

	conn.user.SetHostname(conn.ip.String())
}

// resolveIdent queries the connecting client's identd when the class
// asks for one, remembering the reported username so registration can
// prefer it over whatever USER claims. Failure or timeout just leaves
// identName empty; ident is advisory, never fatal.
func (conn *Conn) resolveIdent() {
	if conn.ip == nil || !conn.class.RequireIdent {
		return
	}

	job := jobs.NewIdentLookupJob(conn.sock, 5*time.Second)
	done := make(chan jobs.Result, 1)

	conn.server.jobs.Submit(context.Background(), identCallbackJob{job, done})

	select {
	case result := <-done:
		if name, ok := result.Value.(string); ok && name != EMPTY {
			conn.identName = name
		}
	case <-time.After(6 * time.Second):
	}
}

// identCallbackJob mirrors dnsCallbackJob for ident lookups.
type identCallbackJob struct {
	*jobs.IdentLookupJob
	done chan jobs.Result
}

func (j identCallbackJob) Run(ctx context.Context) (any, error) {
	value, err := j.IdentLookupJob.Run(ctx)
	select {
	case j.done <- jobs.Result{JobID: j.ID(), Tag: j.Tag(), Value: value, Err: err}:
	default:
	}
	return value, err
}

// tooManyFromIP reports whether the class's per-IP connection cap is
// already met by other live connections from the same address.
func (conn *Conn) tooManyFromIP() bool {
	if conn.class.MaxConnsPerIP <= 0 || conn.ip == nil {
		return false
	}

	same := 0
	conn.server.Conns.ForEach(func(_ string, other *Conn) error {
		if other != conn && other.ip != nil && other.ip.Equal(conn.ip) {
			same++
		}
		return nil
	})
	return same >= conn.class.MaxConnsPerIP
}

// reject writes a notice straight to the socket and tears the
// connection down. Only valid before the write loop starts; once it's
// running, queued delivery via writeNotice preserves ordering instead.
func (conn *Conn) reject(text string) {
	msg := conn.newMessage()
	msg.Command = CmdNotice
	msg.Params = []string{"*"}
	msg.Trailing = text
	conn.write(msg.RenderBuffer())
	msgPool.Recycle(msg)

	conn.doQuit("Connection refused.")
}

// dnsCallbackJob adapts a DNSLookupJob so its result is also delivered
// to a caller-owned channel, letting resolveHostname block on its own
// lookup without contending with the pool's shared Results stream.
type dnsCallbackJob struct {
	*jobs.DNSLookupJob
	done chan jobs.Result
}

func (j dnsCallbackJob) Run(ctx context.Context) (any, error) {
	value, err := j.DNSLookupJob.Run(ctx)
	select {
	case j.done <- jobs.Result{JobID: j.ID(), Tag: j.Tag(), Value: value, Err: err}:
	default:
	}
	return value, err
}

func (conn *Conn) start() {
	conn.Lock()
	defer conn.Unlock()

	// This can block until the address is acquired, so just wait.
	conn.remAddr = conn.sock.RemoteAddr().String()

	log.Debugf("irc: Got new connection remote address: [%s]", conn.remAddr)

	conn.server.Conns.Set(conn.remAddr, conn)
}

func (conn *Conn) readLoop() {
	for {
		conn.setReadDeadline()

		if !conn.incoming.Scan() { // Will block here until there is a read or a timeout.
			defer func() { conn.kill <- true }()

			if err := conn.incoming.Err(); err != nil {
				if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
					if !conn.timeoutForced {
						log.Infof("irc: Connection timed out for [%s]", conn.remAddr)
						conn.doQuit("Connection timeout.")
					}
				} else {
					log.Error(err)
				}
			}

			log.Debugf("irc: Closing socket for [%s]", conn.remAddr)

			if err := conn.sock.Close(); err != nil {
				log.Errorf("irc: Socket error when trying to close socket from [%s]: %s", conn.remAddr, err)
			}

			return
		}

		data := conn.incoming.Text()
		log.Infof("irc: [%s]->[SERVER]: %s", conn.remAddr, data)

		msg, err := Parse(data)
		if err != nil {
			// Malformed input is charged a fixed penalty and then
			// dropped before the token bucket is consulted.
			conn.user.AddPenalty(oversizePenalty, conn.class.PenaltyCeiling)
			switch err {
			case ErrMessageTooLong, ErrTagsTooLong:
				conn.ReplyInputTooLong()
			}
			log.Errorf("irc: Error parsing message from client [%s]: %s", conn.remAddr, err)
			continue
		}

		if !conn.user.Registered() && !restrictedCommands[msg.Command] {
			conn.ReplyNotRegistered()
			continue
		}

		conn.heartbeat.Reset(PingTimeout)

		if conn.applyFloodPenalty() {
			continue
		}

		conn.server.router.RouteCommand(conn, msg)
	}
}

// applyFloodPenalty charges a penalty against the connection's class
// whenever its token bucket (sized from FloodLinesPerSec/FloodBurst)
// has run dry for this line, and reports whether the penalty has reached
// the class's ceiling; the caller then discards the line, and the
// connection itself stays open. Lines admitted
// within the bucket's rate cost nothing; DrainPenalty (driven off the
// server's maintenance loop) lets the penalty recover at wall-clock
// rate once a connection settles back under its class's line rate.
func (conn *Conn) applyFloodPenalty() bool {
	if conn.user.ModeIsSet(UModeFloodImmune) || conn.limiter.Allow() {
		return false
	}

	conn.user.AddPenalty(1, conn.class.PenaltyCeiling)
	return conn.user.Penalty() >= conn.class.PenaltyCeiling && conn.class.PenaltyCeiling > 0
}

func (conn *Conn) writeLoop() {
	for {
		select {
		case <-conn.kill:
			log.Debug("irc: conn.kill signal received in writeLoop(), closing goroutine.")
			conn.forceTimeout()
			return

		case buf := <-conn.writeQueue:
			atomic.AddInt64(&conn.sendqBytes, -int64(buf.Len()))
			conn.write(buf)

		case <-conn.heartbeat.C:
			conn.doHeartbeat()
		}
	}
}

// Write hands a rendered buffer over to the write-loop goroutine. The
// buffer's ownership transfers with the call: it is recycled exactly
// once after the socket write (or dropped here on rejection), so a
// caller fanning a message out to several connections must render a
// fresh buffer per recipient.
//
// A connection that cannot drain its queue fast enough to stay under
// its class's SendQBytes cap is killed rather than allowed to stall
// the goroutine producing the traffic.
func (conn *Conn) Write(buffer *bytes.Buffer) {
	if buffer.Len() > MaxMsgLength+MaxTagsLength {
		log.Errorf("irc: Error rendering message to buffer for [%s]: Message too long.", conn.remAddr)
		bufPool.Recycle(buffer)
		return
	}

	queued := atomic.AddInt64(&conn.sendqBytes, int64(buffer.Len()))
	if conn.class.SendQBytes > 0 && queued > int64(conn.class.SendQBytes) {
		atomic.AddInt64(&conn.sendqBytes, -int64(buffer.Len()))
		bufPool.Recycle(buffer)
		log.Infof("irc: SendQ exceeded for [%s] (%d bytes queued)", conn.remAddr, queued)
		conn.doQuit("SendQ exceeded.")
		return
	}

	select {
	case conn.writeQueue <- buffer:
	default:
		atomic.AddInt64(&conn.sendqBytes, -int64(buffer.Len()))
		bufPool.Recycle(buffer)
		log.Infof("irc: Write queue overflow for [%s]", conn.remAddr)
		conn.doQuit("SendQ exceeded.")
	}
}

func (conn *Conn) write(buffer *bytes.Buffer) {
	defer func() {
		bufPool.Recycle(buffer)
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("irc: Panic in write socket operation for [%s]: %v\n%s", conn.remAddr, err, buf)

			conn.doQuit("Socket Error.")
		}
	}()

	conn.setWriteDeadline()

	if _, err := conn.outgoing.Write(buffer.Bytes()); err != nil {
		log.Errorf("irc: Error writing to socket for [%s]: %s", conn.remAddr, err)
		conn.doQuit("Socket Error.")
		return
	}

	if err := conn.outgoing.Flush(); err != nil {
		log.Errorf("irc: Error writing to socket [%s]: %s", conn.remAddr, err)
		conn.doQuit("Socket Error.")
		return
	}

	log.Infof("irc: [SERVER]->[%s]: %s", conn.remAddr, strings.TrimSpace(buffer.String()))
}

// writeNotice queues a server NOTICE addressed to "*" on this
// connection, bypassing the router. Used by StandardReply as the
// fallback for clients without the standard-replies capability.
func (conn *Conn) writeNotice(text string) {
	msg := conn.newMessage()
	msg.Command = CmdNotice
	msg.Params = []string{"*"}
	msg.Trailing = text
	conn.Write(msg.RenderBuffer())
	msgPool.Recycle(msg)
}

func (conn *Conn) doHeartbeat() {
	conn.Lock()
	defer conn.Unlock()

	if conn.lastPingRecv != conn.lastPingSent {
		conn.heartbeat.Stop()
		log.Debugf("irc: PING timeout for [%s]: last sent: %s, last received: %s", conn.remAddr, conn.lastPingSent, conn.lastPingRecv)
		conn.doQuit("Connection timeout.")
		return
	}

	str := random.String(10)
	msg := msgPool.New()
	msg.Command = CmdPing
	msg.Trailing = str
	conn.lastPingSent = str
	conn.heartbeat.Reset(PingTimeout)
	conn.Write(msg.RenderBuffer())
	msgPool.Recycle(msg)
}

// doQuit announces the user's departure to every channel they're in
// and schedules the connection for teardown. Safe to call more than
// once; the second kill signal is simply dropped by the buffered
// channel once full.
func (conn *Conn) doQuit(reason string) {
	if reason == EMPTY {
		reason = "Client issued QUIT command."
	}

	if conn.channels.Length() > 0 {
		msg := msgPool.New()
		msg.Source = conn.user.Hostmask()
		msg.Command = CmdQuit
		msg.Trailing = reason

		mapping := conn.server.Casemap()
		table := casemap.ForMapping(mapping)
		folded := casemap.Key(conn.user.Nick(), table)

		conn.channels.ForEach(func(_ string, channel *Channel) error {
			channel.Send(msg, folded)
			channel.RemoveMember(folded)
			destroyChannelIfEmpty(conn.server, channel)
			return nil
		})

		msgPool.Recycle(msg)
	}

	select {
	case conn.kill <- true:
	default:
	}
}

func (conn *Conn) cleanup() {
	if conn.regTimer != nil {
		conn.server.timers.Cancel(conn.regTimer)
	}

	mapping := conn.server.Casemap()
	table := casemap.ForMapping(mapping)

	conn.server.Users.Delete(casemap.Key(conn.user.Name(), table))
	conn.server.Nicks.Delete(casemap.Key(conn.user.Nick(), table))
	conn.server.Conns.Delete(conn.remAddr)
}

func (conn *Conn) setWriteDeadline() {
	if WriteTimeout != 0 {
		conn.sock.SetWriteDeadline(time.Now().Add(WriteTimeout))
	}
}

func (conn *Conn) setReadDeadline() {
	if KeepAliveTimeout != 0 {
		conn.sock.SetReadDeadline(time.Now().Add(KeepAliveTimeout))
	}
}

func (conn *Conn) forceTimeout() {
	conn.Lock()
	defer conn.Unlock()
	conn.timeoutForced = true
	conn.sock.SetReadDeadline(time.Now().Add(time.Microsecond))
}

func (conn *Conn) setDeadlines() {
	conn.setReadDeadline()
	conn.setWriteDeadline()
}

func (conn *Conn) newMessage() *Message {
	msg := msgPool.New()
	msg.Source = conn.server.Hostname()
	return msg
}
