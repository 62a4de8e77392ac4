/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import (
	"context"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"

	"github.com/coreircd/dircd/casemap"
)

// Option configures a Server at construction time. Options are applied in
// order, each against the in-progress config, mirroring the teacher's
// referenced but previously-unimplemented functional-options surface.
type Option func(*config) error

type config struct {
	settings *Settings

	logger   *logrus.Logger
	logLevel logrus.Level

	shutdownCtx     context.Context
	shutdownTimeout time.Duration

	xlineDBPath   string
	chanDBPath    string
	maintInterval time.Duration
}

func newConfig() *config {
	return &config{
		settings:      defaultSettings(),
		logger:        logrus.New(),
		logLevel:      logrus.InfoLevel,
		maintInterval: DefaultMaintInterval,
	}
}

// WithHostname sets the server's advertised hostname.
func WithHostname(hostname string) Option {
	return func(c *config) error {
		c.settings.Hostname = hostname
		return nil
	}
}

// WithNetwork sets the server's advertised network name.
func WithNetwork(network string) Option {
	return func(c *config) error {
		c.settings.Network = network
		return nil
	}
}

// WithMOTD sets the message of the day.
func WithMOTD(motd string) Option {
	return func(c *config) error {
		c.settings.MOTD = motd
		return nil
	}
}

// WithCasemap overrides the casemapping announced in RPL_ISUPPORT and used
// for nick/channel equality throughout the server.
func WithCasemap(mapping casemap.Mapping) Option {
	return func(c *config) error {
		c.settings.CasemapMapping = mapping
		return nil
	}
}

// WithClasses replaces the connect-class table used to assign resource
// limits and registration policy to incoming connections.
func WithClasses(classes ...Class) Option {
	return func(c *config) error {
		if len(classes) > 0 {
			c.settings.Classes = classes
		}
		return nil
	}
}

// WithLogger supplies the logrus.Logger instance the server and all of its
// connections will log through.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *config) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithLogLevel sets the minimum logged severity.
func WithLogLevel(level logrus.Level) Option {
	return func(c *config) error {
		c.logLevel = level
		return nil
	}
}

// WithDefaultLogFormatter installs the nested-logrus-formatter with the
// field ordering the rest of the codebase expects (component, sub-component,
// command).
func WithDefaultLogFormatter() Option {
	return func(c *config) error {
		c.logger.SetFormatter(&nested.Formatter{
			FieldsOrder:     []string{"component", "sub-component", "command"},
			TimestampFormat: time.RFC3339,
		})
		return nil
	}
}

// WithTLSListener marks the listener as TLS-terminated, which gates
// the sts capability advertisement. The flag comes from listener
// configuration rather than socket introspection, so a server fronted
// by a TLS-terminating proxy can still advertise correctly.
func WithTLSListener(enabled bool) Option {
	return func(c *config) error {
		c.settings.TLSListener = enabled
		return nil
	}
}

// WithPassword gates registration behind a server-wide connect
// password, checked against the PASS command.
func WithPassword(password string) Option {
	return func(c *config) error {
		c.settings.Password = password
		return nil
	}
}

// WithOper registers an operator login name/password pair, checked by
// the OPER command.
func WithOper(name, password string) Option {
	return func(c *config) error {
		c.settings.Opers[name] = password
		return nil
	}
}

// WithAccount registers a SASL PLAIN account name/password pair,
// checked by AUTHENTICATE.
func WithAccount(name, password string) Option {
	return func(c *config) error {
		c.settings.Accounts[name] = password
		return nil
	}
}

// WithXLineDB enables periodic persistence of the X-line registry to
// path: it is loaded once at startup (a missing file is not an error)
// and rewritten whenever the maintenance loop finds it dirty.
func WithXLineDB(path string) Option {
	return func(c *config) error {
		c.xlineDBPath = path
		return nil
	}
}

// WithChannelDB enables periodic persistence of the channel table to
// path: it is replayed once at startup (a missing file is not an
// error) and rewritten by the maintenance timer, so registered
// channels survive a restart.
func WithChannelDB(path string) Option {
	return func(c *config) error {
		c.chanDBPath = path
		return nil
	}
}

// WithMaintInterval overrides how often the server's background
// maintenance loop runs (X-line sweep/persist, penalty decay).
func WithMaintInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval > 0 {
			c.maintInterval = interval
		}
		return nil
	}
}

// WithGracefulShutdown arms context-driven shutdown: cancelling ctx causes
// Serve to stop accepting new connections and close existing ones, waiting
// up to timeout for in-flight writes to flush before forcing closure.
func WithGracefulShutdown(ctx context.Context, timeout time.Duration) Option {
	return func(c *config) error {
		c.shutdownCtx = ctx
		c.shutdownTimeout = timeout
		return nil
	}
}
