/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import "github.com/sirupsen/logrus"

// RouteKind classifies where a handled command's effects must travel
// beyond this server: nowhere, to every linked peer, to one named
// peer, or along the path to a message target (nick or channel).
type RouteKind int

const (
	// RouteLocalOnly commands have no federation-visible effect.
	RouteLocalOnly RouteKind = iota
	// RouteBroadcast commands propagate to every linked peer.
	RouteBroadcast
	// RouteUnicast commands travel to a single named peer server.
	RouteUnicast
	// RouteMessage commands follow message routing toward a nick or
	// channel target, the way PRIVMSG does.
	RouteMessage
)

func (k RouteKind) String() string {
	switch k {
	case RouteLocalOnly:
		return "local-only"
	case RouteBroadcast:
		return "broadcast"
	case RouteUnicast:
		return "unicast"
	case RouteMessage:
		return "message"
	default:
		return "unknown"
	}
}

// RoutingDescriptor is a handler's declaration of how the command it
// just processed should propagate across server links. Target names
// the peer server (RouteUnicast) or the nick/channel (RouteMessage);
// it is empty for the other kinds.
type RoutingDescriptor struct {
	Kind   RouteKind
	Target string
}

// FederationSink consumes routed commands on behalf of the
// server-linking layer. Deliver is called on the same goroutine that
// ran the command's handlers, before the Message is recycled, so an
// implementation must copy anything it wants to keep.
type FederationSink interface {
	Deliver(msg *Message, route RoutingDescriptor)
}

// logFederationSink is the default sink on a standalone (unlinked)
// server: routed traffic has nowhere to go, so it's only surfaced at
// debug level for protocol tracing.
type logFederationSink struct {
	logger *logrus.Entry
}

func (s *logFederationSink) Deliver(msg *Message, route RoutingDescriptor) {
	s.logger.WithFields(logrus.Fields{
		"route":  route.Kind.String(),
		"target": route.Target,
	}).Debugf("federation: %s", msg.Command)
}
