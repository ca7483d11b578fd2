// Package metrics exposes the process's Prometheus instrumentation:
// live session/peer counts, wire frame volume, RPC latency, and the
// exploration core's own move/save counters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "hexplore"
)

// Label names shared across metric vectors.
const (
	labelMain      = "main"
	labelDirection = "direction"
	labelResult    = "result"
)

// Collector holds every Prometheus metric a platform/explore process
// exports. Metrics are grouped by subsystem: session (player-facing
// connections), channel (the peer multiplexer), and explore (the
// per-player movement/save core).
type Collector struct {
	// SessionsActive tracks currently open player-facing sessions.
	SessionsActive prometheus.Gauge

	// FramesTotal counts wire frames processed, labeled by main code
	// and direction ("in"/"out").
	FramesTotal *prometheus.CounterVec

	// FramesDropped counts frames that failed wire.SanityCheck.
	FramesDropped prometheus.Counter

	// PeersConnected tracks live channel-multiplexer peers.
	PeersConnected prometheus.Gauge

	// RPCLatency records request/response round-trip latency for
	// mux.Manager.RPCRequest calls.
	RPCLatency prometheus.Histogram

	// RPCTimeouts counts RPC calls that hit ErrRPCTimeout.
	RPCTimeouts prometheus.Counter

	// ExploresActive tracks currently live Explore contexts.
	ExploresActive prometheus.Gauge

	// MovesTotal counts HandleMove calls, labeled by result
	// (ok/blocked/no_path).
	MovesTotal *prometheus.CounterVec

	// SavesTotal counts save_explore_info ticks, labeled by result
	// (ok/error).
	SavesTotal *prometheus.CounterVec

	// SaveLatency records how long each persistence tick took.
	SaveLatency prometheus.Histogram
}

// NewCollector creates a Collector with every metric registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.SessionsActive,
		c.FramesTotal,
		c.FramesDropped,
		c.PeersConnected,
		c.RPCLatency,
		c.RPCTimeouts,
		c.ExploresActive,
		c.MovesTotal,
		c.SavesTotal,
		c.SaveLatency,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of currently open player-facing sessions.",
		}),

		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "frames_total",
			Help:      "Total wire frames processed.",
		}, []string{labelMain, labelDirection}),

		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "frames_dropped_total",
			Help:      "Total frames dropped for failing sanity checks.",
		}),

		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "peers_connected",
			Help:      "Number of currently connected channel-multiplexer peers.",
		}),

		RPCLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "rpc_latency_seconds",
			Help:      "RPCRequest round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}),

		RPCTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "rpc_timeouts_total",
			Help:      "Total RPCRequest calls that timed out unmatched.",
		}),

		ExploresActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "explore",
			Name:      "active",
			Help:      "Number of currently live Explore contexts.",
		}),

		MovesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "explore",
			Name:      "moves_total",
			Help:      "Total HandleMove calls, labeled by result.",
		}, []string{labelResult}),

		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "explore",
			Name:      "saves_total",
			Help:      "Total save ticks, labeled by result.",
		}, []string{labelResult}),

		SaveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "explore",
			Name:      "save_latency_seconds",
			Help:      "Explore.persist duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// -------------------------------------------------------------------------
// Session / wire
// -------------------------------------------------------------------------

// SessionOpened increments the active-session gauge.
func (c *Collector) SessionOpened() { c.SessionsActive.Inc() }

// SessionClosed decrements the active-session gauge.
func (c *Collector) SessionClosed() { c.SessionsActive.Dec() }

// IncFrame records one processed frame for main, in the given direction
// ("in" or "out").
func (c *Collector) IncFrame(main uint16, direction string) {
	c.FramesTotal.WithLabelValues(strconv.FormatUint(uint64(main), 10), direction).Inc()
}

// IncFrameDropped records one frame dropped by sanity checking.
func (c *Collector) IncFrameDropped() { c.FramesDropped.Inc() }

// -------------------------------------------------------------------------
// Channel multiplexer
// -------------------------------------------------------------------------

// PeerConnected increments the connected-peers gauge.
func (c *Collector) PeerConnected() { c.PeersConnected.Inc() }

// PeerDisconnected decrements the connected-peers gauge.
func (c *Collector) PeerDisconnected() { c.PeersConnected.Dec() }

// ObserveRPC records one RPCRequest's round-trip latency in seconds.
func (c *Collector) ObserveRPC(seconds float64) { c.RPCLatency.Observe(seconds) }

// IncRPCTimeout records one unmatched/timed-out RPCRequest.
func (c *Collector) IncRPCTimeout() { c.RPCTimeouts.Inc() }

// -------------------------------------------------------------------------
// Exploration core
// -------------------------------------------------------------------------

// ExploreStarted increments the live-exploration gauge.
func (c *Collector) ExploreStarted() { c.ExploresActive.Inc() }

// ExploreEnded decrements the live-exploration gauge.
func (c *Collector) ExploreEnded() { c.ExploresActive.Dec() }

// IncMove records one HandleMove call with its result label
// ("ok", "blocked", or "no_path").
func (c *Collector) IncMove(result string) { c.MovesTotal.WithLabelValues(result).Inc() }

// IncSave records one save tick with its result label ("ok" or
// "error"), and the tick's duration in seconds.
func (c *Collector) IncSave(result string, seconds float64) {
	c.SavesTotal.WithLabelValues(result).Inc()
	c.SaveLatency.Observe(seconds)
}
