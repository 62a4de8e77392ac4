package dircd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// registerMetrics wires a set of GaugeFuncs that sample the server's live
// state directly off its maps and job pool on each scrape, taking each
// map's read lock and the pool's mutex briefly. Each Server gets its own Registry so that
// constructing more than one Server in a process (tests, embedders)
// never collides on a global default registerer.
func (server *Server) registerMetrics() {
	const ns = "dircd"

	server.Metrics = prometheus.NewRegistry()
	factory := promauto.With(server.Metrics)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "connected_users",
		Help:      "Number of currently registered users.",
	}, func() float64 {
		return float64(server.Users.Length())
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "open_connections",
		Help:      "Number of currently open client connections, registered or not.",
	}, func() float64 {
		return float64(server.Conns.Length())
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "channels",
		Help:      "Number of currently existing channels.",
	}, func() float64 {
		return float64(server.Channels.Length())
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "jobs_in_flight",
		Help:      "Number of DNS/ident lookup jobs currently running or queued.",
	}, func() float64 {
		return float64(server.jobs.InFlight())
	})
}
