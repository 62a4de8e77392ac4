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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/coreircd/dircd/casemap"
	"github.com/coreircd/dircd/jobs"
)

// KeepAliveTimeout sets the connection timeout duration on the client IRC connections.
const KeepAliveTimeout time.Duration = 2 * time.Minute

// WriteTimeout sets the write timeout duration on the client IRC connections.
const WriteTimeout time.Duration = 5 * time.Second

// PingTimeout sets the PING/PONG timeout duration on the client IRC connections.
const PingTimeout time.Duration = 30 * time.Second

// MessagePoolMax sets the message pool buffer length
const MessagePoolMax = 1000

// BufferPoolMax sets the bytes.Buffer pool length
const BufferPoolMax = 1000

// WriteQueueLength sets the length of each connections write queue channel.
const WriteQueueLength = 10

// jobWorkers sizes the shared DNS/ident lookup pool.
const jobWorkers = 8

// DefaultMaintInterval sets how often the background maintenance loop
// sweeps expired X-lines, persists the registry if dirty, and drains
// connection flood penalties, unless overridden by WithMaintInterval.
const DefaultMaintInterval = 10 * time.Second

var log *logrus.Logger

// ErrServerClosed is returned by Serve/ListenAndServe(TLS) after a call
// to Shutdown (via WithGracefulShutdown's context being cancelled).
const ErrServerClosed Error = "irc: server closed"

// Server holds the state of an IRC server instance.
type Server struct {
	sync.RWMutex

	listenAddr string
	settings   *Settings
	startedAt  int64

	logger *logrus.Logger

	// Active State
	Users    UserMap
	Nicks    UserMap
	Conns    ConnMap
	Channels ChanMap

	XLines    *XLineRegistry
	Providers *ProviderRegistry

	capMu     sync.RWMutex
	extraCaps map[string]string

	// Metrics is this server's private prometheus registry; embedders
	// scrape it by mounting promhttp.HandlerFor(server.Metrics, ...)
	// on their own HTTP mux.
	Metrics *prometheus.Registry

	// Extension hook points.
	PreConnect  *HookChain[*Conn]
	PreJoin     *HookChain[*joinAttempt]
	PostJoin    *HookChain[*Membership]
	CapNewDel   *HookChain[*capChangeEvent]

	router     *Router
	jobs       *jobs.Pool
	federation FederationSink

	TLSConfig *tls.Config

	listener net.Listener

	shutdownCtx     context.Context
	shutdownTimeout time.Duration

	xlineDBPath   string
	chanDBPath    string
	maintInterval time.Duration
	timers        *TimerWheel
}

// joinAttempt is the event type dispatched through PreJoin: a user
// about to join a channel, and the key they supplied, if any.
type joinAttempt struct {
	User    *User
	Channel *Channel
	Key     string
}

// capChangeEvent is the event type dispatched through CapNewDel when
// the set of server-advertised capabilities changes at runtime.
type capChangeEvent struct {
	Added   []string
	Removed []string
}

// NewServer builds a Server from the given Options. It registers the
// command router, warms the shared object pools, and arms graceful
// shutdown if WithGracefulShutdown was supplied.
func NewServer(opts ...Option) (*Server, error) {
	cfg := newConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	cfg.logger.SetLevel(cfg.logLevel)
	log = cfg.logger

	server := &Server{
		settings:        cfg.settings,
		startedAt:       time.Now().Unix(),
		logger:          cfg.logger,
		Users:           NewUserMap(),
		Nicks:           NewUserMap(),
		Conns:           NewConnMap(),
		Channels:        NewChanMap(),
		XLines:          NewXLineRegistry(),
		Providers:       NewProviderRegistry(),
		extraCaps:       make(map[string]string),
		PreConnect:      NewHookChain[*Conn](),
		PreJoin:         NewHookChain[*joinAttempt](),
		PostJoin:        NewHookChain[*Membership](),
		CapNewDel:       NewHookChain[*capChangeEvent](),
		jobs:            jobs.New(jobWorkers, 64),
		shutdownCtx:     cfg.shutdownCtx,
		shutdownTimeout: cfg.shutdownTimeout,
		xlineDBPath:     cfg.xlineDBPath,
		chanDBPath:      cfg.chanDBPath,
		maintInterval:   cfg.maintInterval,
		timers:          NewTimerWheel(),
	}

	if cfg.settings.TLSListener {
		// sts is only meaningful advertised over a listener the operator
		// has actually terminated TLS on; inspircd's STS module resolves
		// this the same way, off a config-supplied flag rather than
		// introspecting the socket itself (spec Open Question #2).
		server.extraCaps["sts"] = "port=6697,duration=2592000"
	}

	log.Info("irc: registering message handlers")
	server.router = NewRouter(log.WithField("component", "irc"))
	registerHandlers(server.router)

	server.federation = &logFederationSink{logger: log.WithField("component", "federation")}
	registerXInfoProviders(server)

	// DNS and ident callers take their outcome from their own callback
	// channel, so the pool's shared Results stream is emptied here.
	go func() {
		for range server.jobs.Results() {
		}
	}()

	log.Info("irc: warming up message pool")
	msgPool.Warmup(MessagePoolMax)

	server.registerMetrics()

	if server.xlineDBPath != EMPTY {
		if err := server.XLines.LoadPersistent(server.xlineDBPath); err != nil {
			return nil, fmt.Errorf("irc: loading xline database: %w", err)
		}
	}

	if server.chanDBPath != EMPTY {
		if err := server.LoadChannelDB(server.chanDBPath); err != nil {
			return nil, fmt.Errorf("irc: loading channel database: %w", err)
		}
	}

	server.scheduleMaintenance()

	if server.shutdownCtx != nil {
		go server.awaitShutdown()
	}

	return server, nil
}

func (server *Server) awaitShutdown() {
	<-server.shutdownCtx.Done()

	server.Lock()
	listener := server.listener
	server.Unlock()

	if listener != nil {
		listener.Close()
	}

	server.timers.Stop()
	server.persistDatabases()

	done := make(chan struct{})
	go func() {
		server.Conns.ForEach(func(_ string, conn *Conn) error {
			conn.doQuit("Server shutting down.")
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(server.shutdownTimeout):
		log.Warn("irc: graceful shutdown timed out waiting for connections to close")
	}
}

// scheduleMaintenance arms the server's periodic upkeep on the timer
// wheel: sweeping expired X-lines and persisting the databases on one
// repeating timer, and draining connection flood penalties on another.
func (server *Server) scheduleMaintenance() {
	elapsed := int(server.maintInterval / time.Second)
	if elapsed < 1 {
		elapsed = 1
	}

	server.timers.Schedule(server.maintInterval, server.maintInterval, func(now time.Time) {
		removed := server.XLines.Sweep(now.Unix())
		if removed > 0 {
			log.WithField("count", removed).Debug("irc: swept expired x-lines")
		}

		server.persistDatabases()
	})

	server.timers.Schedule(server.maintInterval, server.maintInterval, func(time.Time) {
		server.Conns.ForEach(func(_ string, conn *Conn) error {
			conn.user.DrainPenalty(elapsed)
			return nil
		})
	})
}

// persistDatabases writes the X-line registry (when dirty) and the
// channel database (when configured) to disk. Called from the
// maintenance timer and once more during shutdown.
func (server *Server) persistDatabases() {
	if server.xlineDBPath != EMPTY && server.XLines.DirtySince() {
		if err := server.XLines.SavePersistent(server.xlineDBPath); err != nil {
			log.WithError(err).Warn("irc: failed to persist x-line database")
		} else {
			server.XLines.ClearDirty()
		}
	}

	if server.chanDBPath != EMPTY {
		if err := server.SaveChannelDB(server.chanDBPath); err != nil {
			log.WithError(err).Warn("irc: failed to persist channel database")
		}
	}
}

// SetFederationSink replaces the consumer of routed command traffic,
// normally installed by a server-linking layer at startup. Passing nil
// restores the default debug-logging sink.
func (server *Server) SetFederationSink(sink FederationSink) {
	server.Lock()
	defer server.Unlock()

	if sink == nil {
		sink = &logFederationSink{logger: log.WithField("component", "federation")}
	}
	server.federation = sink
}

// Casemap returns the currently configured nick/channel casemapping.
func (server *Server) Casemap() casemap.Mapping {
	server.RLock()
	defer server.RUnlock()
	return server.settings.CasemapMapping
}

// SetCasemap swaps the server's active casemapping and rebuilds every
// nick- and channel-keyed index under the new lowering table before
// returning. Held under the server's write lock, which blocks any
// getter (and so any handler folding a nick or channel name mid-swap)
// until the rebuild completes. Nicks that become ambiguous under the
// new mapping are renamed to their UID and notified, the same
// resolution used for a nick collision at registration.
func (server *Server) SetCasemap(mapping casemap.Mapping) {
	server.Lock()
	defer server.Unlock()

	if server.settings.CasemapMapping == mapping {
		return
	}
	server.settings.CasemapMapping = mapping
	table := casemap.ForMapping(mapping)

	assigned := make(map[string]bool, server.Nicks.Length())
	for _, user := range server.Nicks.Values() {
		newKey := casemap.Key(user.Nick(), table)
		if assigned[newKey] {
			server.renameToUID(user)
			newKey = casemap.Key(user.Nick(), table)
		}
		assigned[newKey] = true
	}

	users := server.Nicks.Values()
	server.Nicks.Clear()
	for _, user := range users {
		server.Nicks.Set(casemap.Key(user.Nick(), table), user)
	}

	for _, oldKey := range server.Channels.Keys() {
		channel, ok := server.Channels.Get(oldKey)
		if !ok {
			continue
		}
		channel.RekeyMembers(table)
		if newKey := casemap.Key(channel.Name(), table); newKey != oldKey {
			server.Channels.ChangeKey(oldKey, newKey)
		}
	}
}

// renameToUID forcibly renames a user to their UID and notifies them
// with a NICK message, used when a casemap swap makes their nick
// ambiguous with another already-connected user.
func (server *Server) renameToUID(user *User) {
	old := user.Hostmask()
	user.SetNick(user.UID())

	conn := user.conn
	if conn == nil {
		return
	}

	notice := conn.newMessage()
	notice.Source = old
	notice.Command = CmdNick
	notice.Params = []string{user.Nick()}
	conn.Write(notice.RenderBuffer())
	msgPool.Recycle(notice)
}

// Network returns the configured network name of the server.
func (server *Server) Network() string {
	server.RLock()
	defer server.RUnlock()
	if server.settings.Network == EMPTY {
		return server.settings.Hostname
	}
	return server.settings.Network
}

// SetNetwork sets the configured network name of the server.
func (server *Server) SetNetwork(new string) {
	server.Lock()
	defer server.Unlock()
	server.settings.Network = new
}

// Address returns the configured listen address of the server.
func (server *Server) Address() string {
	server.RLock()
	defer server.RUnlock()

	if len(server.listenAddr) < 1 {
		if server.listener != nil {
			return server.listener.Addr().String()
		}
		return EMPTY
	}
	return server.listenAddr
}

// SetAddress sets the configured listen address of the server.
func (server *Server) SetAddress(addr string) {
	server.Lock()
	defer server.Unlock()

	server.listenAddr = addr
}

// Hostname returns the configured hostname of the server.
func (server *Server) Hostname() string {
	server.RLock()
	defer server.RUnlock()

	if len(server.settings.Hostname) < 1 && server.listener != nil {
		return server.listener.Addr().String()
	}
	return server.settings.Hostname
}

// SetHostname sets the configured hostname of the server.
func (server *Server) SetHostname(host string) {
	server.Lock()
	defer server.Unlock()

	server.settings.Hostname = host
}

// MOTD returns the configured MOTD of the server.
func (server *Server) MOTD() string {
	server.RLock()
	defer server.RUnlock()

	if len(server.settings.MOTD) < 1 {
		return "Server has no MOTD message set."
	}
	return server.settings.MOTD
}

// SetMOTD sets the configured MOTD of the server.
func (server *Server) SetMOTD(motd string) {
	server.Lock()
	defer server.Unlock()

	server.settings.MOTD = motd
}

// Welcome returns the configured welcome message of the server.
func (server *Server) Welcome() string {
	server.RLock()
	defer server.RUnlock()

	if len(server.settings.Welcome) < 1 {
		return "Server has no welcome message set."
	}
	return server.settings.Welcome
}

// SetWelcome sets the configured welcome message of the server.
func (server *Server) SetWelcome(msg string) {
	server.Lock()
	defer server.Unlock()

	server.settings.Welcome = msg
}

// ClassFor returns the connect class that should be applied to an
// incoming connection. This implementation always returns the first
// configured class; a host/CIDR-matching policy is a natural extension
// point but isn't required to exercise the class mechanism itself.
func (server *Server) ClassFor(ip net.IP) Class {
	server.RLock()
	defer server.RUnlock()

	if len(server.settings.Classes) == 0 {
		return DefaultClass
	}
	return server.settings.Classes[0]
}

// ISupport returns a slice of formatted RPL_ISUPPORT key=value tokens.
func (server *Server) ISupport() []string {
	server.RLock()
	mapping := server.settings.CasemapMapping
	server.RUnlock()

	return []string{
		"CHANMODES=" + "beI,k,l,imnpstrCu",
		"PREFIX=" + "(ohv)@%+",
		"MAXPARA=" + fmt.Sprint(MaxMsgParams),
		"MODES=" + fmt.Sprint(MaxModeChange),
		"CHANLIMIT=" + fmt.Sprintf("#:%v", MaxJoinedChans),
		"NICKLEN=" + fmt.Sprint(MaxNickLength),
		"MAXLIST=" + fmt.Sprintf("beI:%v", MaxListItems),
		"CASEMAPPING=" + mapping.String(),
		"TOPICLEN=" + fmt.Sprint(MaxTopicLength),
		"KICKLEN=" + fmt.Sprint(MaxKickLength),
		"CHANTYPES=" + "#",
		"CHANLEN=" + fmt.Sprint(MaxChanLength),
		"AWAYLEN=" + fmt.Sprint(MaxAwayLength),
		"NETWORK=" + server.Network(),
	}
}

// ListenAndServe listens on the TCP network address srv.ListenAddr and
// then calls Serve to handle the irc.Conn sessions.
// Accepted connections are configured to enable TCP keep-alives.
//
// If srv.ListenAddr is blank, ":6667" is used.
//
// ListenAndServe always returns a non-nil error.
func (server *Server) ListenAndServe() error {
	addr := server.Address()
	if addr == "" {
		addr = ":6667"
	}

	listen, err := net.Listen("tcp4", addr)

	if err != nil {
		return err
	}

	return server.Serve(tcpKeepAliveListener{listen.(*net.TCPListener)})
}

// ListenAndServeTLS listens on the TCP network address srv.Addr and
// then calls Serve to handle the irc.Conn sessions on a TLS connection.
// Accepted connections are configured to enable TCP keep-alives.
//
// Filenames containing a certificate and matching private key for the
// server must be provided if neither the Server's TLSConfig.Certificates
// nor TLSConfig.GetCertificate are populated. If the certificate is
// signed by a certificate authority, the certFile should be the
// concatenation of the server's certificate, any intermediates, and
// the CA's certificate.
//
// If srv.ListenAddr is blank, ":6697" is used.
//
// ListenAndServeTLS always returns a non-nil error.
func (server *Server) ListenAndServeTLS(certFile, keyFile string) error {
	addr := server.Address()
	if addr == "" {
		addr = ":6697"
	}

	config := cloneTLSConfig(server.TLSConfig)

	configHasCert := len(config.Certificates) > 0 || config.GetCertificate != nil
	if !configHasCert || certFile != "" || keyFile != "" {
		var err error
		config.Certificates = make([]tls.Certificate, 1)
		config.Certificates[0], err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
	}

	listen, err := net.Listen("tcp4", addr)
	if err != nil {
		return err
	}

	tlsListener := tls.NewListener(tcpKeepAliveListener{listen.(*net.TCPListener)}, config)
	return server.Serve(tlsListener)
}

// Serve starts an IRC server which listens for connections on the given
// net.Listener, accepts them when they arrive, then assigns them to a new
// instance of irc.Conn
func (server *Server) Serve(listen net.Listener) error {
	defer listen.Close()

	server.Lock()
	server.listener = listen
	server.Unlock()

	log.Printf("irc: Starting IRC server listener at local address [%s]", listen.Addr())

	var tempDelay time.Duration // how long to sleep on accept failure

	for {
		log.Debug("irc: Listening for connection...")
		sock, err := listen.Accept()

		if err != nil {
			select {
			case <-server.shutdownCtxDone():
				return ErrServerClosed
			default:
			}

			if neterr, ok := err.(net.Error); ok && neterr.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}

				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}

				log.Errorf("irc: Error accepting connection: %v; retrying in %vms", err, tempDelay.Nanoseconds()/int64(time.Millisecond))
				time.Sleep(tempDelay)
				continue
			}

			return err
		}

		log.Debug("irc: Accepted connection.")

		tempDelay = 0
		conn := NewConn(server, sock)
		go serve(conn)
	}
}

// shutdownCtxDone returns the server's shutdown context Done channel, or
// a nil channel (which blocks forever) if no graceful shutdown was
// configured.
func (server *Server) shutdownCtxDone() <-chan struct{} {
	if server.shutdownCtx == nil {
		return nil
	}
	return server.shutdownCtx.Done()
}

// cloneTLSConfig returns a shallow clone of the exported
// fields of cfg, ignoring the unexported sync.Once, which
// contains a mutex and must not be copied.
//
// The cfg must not be in active use by tls.Server, or else
// there can still be a race with tls.Server updating SessionTicketKey
// and our copying it, and also a race with the server setting
// SessionTicketsDisabled=false on failure to set the random
// ticket key.
//
// If cfg is nil, a new zero tls.Config is returned.
func cloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{}
	}
	return &tls.Config{
		Rand:                     cfg.Rand,
		Time:                     cfg.Time,
		Certificates:             cfg.Certificates,
		NameToCertificate:        cfg.NameToCertificate,
		GetCertificate:           cfg.GetCertificate,
		RootCAs:                  cfg.RootCAs,
		NextProtos:               cfg.NextProtos,
		ServerName:               cfg.ServerName,
		ClientAuth:               cfg.ClientAuth,
		ClientCAs:                cfg.ClientCAs,
		InsecureSkipVerify:       cfg.InsecureSkipVerify,
		CipherSuites:             cfg.CipherSuites,
		PreferServerCipherSuites: cfg.PreferServerCipherSuites,
		SessionTicketsDisabled:   cfg.SessionTicketsDisabled,
		SessionTicketKey:         cfg.SessionTicketKey,
		ClientSessionCache:       cfg.ClientSessionCache,
		MinVersion:               cfg.MinVersion,
		MaxVersion:               cfg.MaxVersion,
		CurvePreferences:         cfg.CurvePreferences,
	}
}

// debugServerConnections controls whether all server connections are wrapped
// with a verbose logging wrapper.
// const debugServerConnections = false

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted
// connections. It's used by ListenAndServe and ListenAndServeTLS so
// dead TCP connections (e.g. closing laptop mid-download) eventually
// go away.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (listen tcpKeepAliveListener) Accept() (net.Conn, error) {
	conn, err := listen.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(KeepAliveTimeout)
	return conn, nil
}
