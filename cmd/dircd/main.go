/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	irc "github.com/coreircd/dircd"
	"github.com/coreircd/dircd/casemap"

	"github.com/sirupsen/logrus"
)

const version = "dircd-1.0"

// Exit codes. Socket, config, and runtime failures are distinguished so
// supervisors can tell a bad config (don't restart) from a flaky bind
// (retry).
const (
	exitOK = iota
	exitConfigError
	exitSocketError
	exitRuntimeError
)

// fileConfig is the JSON shape accepted by --config. The full
// configuration language is a collaborator's concern; this binary only
// decodes a flat snapshot of the settings the server constructor
// already takes.
type fileConfig struct {
	Listen    string `json:"listen"`
	Hostname  string `json:"hostname"`
	Network   string `json:"network"`
	MOTD      string `json:"motd"`
	Password  string `json:"password"`
	Casemap   string `json:"casemap"`
	XLineDB   string `json:"xline_db"`
	ChannelDB string `json:"channel_db"`

	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	Opers    map[string]string `json:"opers"`
	Accounts map[string]string `json:"accounts"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		nofork     = flag.Bool("nofork", true, "stay in the foreground (the Go runtime never daemonizes; accepted for init-script compatibility)")
		quiet      = flag.Bool("quiet", false, "only log warnings and errors")
		debug      = flag.Bool("debug", false, "log protocol-level debug detail")
		configPath = flag.String("config", "", "path to a JSON configuration snapshot")
		showVer    = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()
	_ = *nofork

	if *showVer {
		fmt.Println(version)
		return exitOK
	}

	logger := logrus.New()

	level := logrus.InfoLevel
	switch {
	case *debug:
		level = logrus.DebugLevel
	case *quiet:
		level = logrus.WarnLevel
	}

	var cfg fileConfig
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			logger.Errorf("reading config %s: %s", *configPath, err)
			return exitConfigError
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			logger.Errorf("parsing config %s: %s", *configPath, err)
			return exitConfigError
		}
	}

	mainContext, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	wg := conc.NewWaitGroup()

	shutdownTimeout := 30 * time.Second

	opts := []irc.Option{
		irc.WithLogger(logger),
		irc.WithLogLevel(level),
		irc.WithDefaultLogFormatter(),
		irc.WithGracefulShutdown(mainContext, shutdownTimeout),
	}
	opts = append(opts, optionsFromConfig(cfg)...)

	server, cfgErr := irc.NewServer(opts...)
	if cfgErr != nil {
		logger.Error(cfgErr)
		return exitConfigError
	}

	if cfg.Listen != "" {
		server.SetAddress(cfg.Listen)
	}

	serveErr := make(chan error, 1)
	wg.Go(func() {
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			serveErr <- server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		serveErr <- server.ListenAndServe()
	})

	log := logger.WithField("component", "main")
	killSignals := make(chan os.Signal, 1)
	signal.Notify(killSignals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-killSignals
		log.Infof("initializing server shutdown, received signal: %s", sig)
		shutdown()
		sig = <-killSignals
		log.Errorf("forcefully shutting down server, received signal: %s", sig)
		os.Exit(exitRuntimeError)
	}()

	err := <-serveErr
	wg.Wait()

	switch {
	case err == nil, errors.Is(err, irc.ErrServerClosed):
		return exitOK
	default:
		log.Errorf("server listener failed: %s", err)
		return exitSocketError
	}
}

// optionsFromConfig maps the decoded config snapshot onto the server's
// functional options, skipping zero values so defaults stay in charge.
func optionsFromConfig(cfg fileConfig) []irc.Option {
	var opts []irc.Option

	if cfg.Hostname != "" {
		opts = append(opts, irc.WithHostname(cfg.Hostname))
	}
	if cfg.Network != "" {
		opts = append(opts, irc.WithNetwork(cfg.Network))
	}
	if cfg.MOTD != "" {
		opts = append(opts, irc.WithMOTD(cfg.MOTD))
	}
	if cfg.Password != "" {
		opts = append(opts, irc.WithPassword(cfg.Password))
	}
	if cfg.XLineDB != "" {
		opts = append(opts, irc.WithXLineDB(cfg.XLineDB))
	}
	if cfg.ChannelDB != "" {
		opts = append(opts, irc.WithChannelDB(cfg.ChannelDB))
	}

	switch cfg.Casemap {
	case "ascii":
		opts = append(opts, irc.WithCasemap(casemap.ASCII))
	case "strict-rfc1459":
		opts = append(opts, irc.WithCasemap(casemap.StrictRFC1459))
	case "", "rfc1459":
		// default mapping
	}

	for name, password := range cfg.Opers {
		opts = append(opts, irc.WithOper(name, password))
	}
	for name, password := range cfg.Accounts {
		opts = append(opts, irc.WithAccount(name, password))
	}

	return opts
}
