// Package meshmetrics is the Prometheus Collector for the mesh engine,
// implementing mesh.MetricsReporter.
package meshmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loranet/loranet/internal/mesh"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "loranet"
	subsystem = "mesh"
)

// Label names for mesh metrics.
const (
	labelMsgType  = "msg_type"
	labelReason   = "reason"
	labelPeerAddr = "peer_addr"
)

// -------------------------------------------------------------------------
// Collector — Prometheus mesh engine metrics
// -------------------------------------------------------------------------

// Collector holds all mesh engine Prometheus metrics and implements
// mesh.MetricsReporter, the way gobfd's Collector backs bfd.MetricsReporter.
type Collector struct {
	// FramesSent counts successfully transmitted frames, labeled by
	// message type.
	FramesSent *prometheus.CounterVec

	// FramesReceived counts accepted inbound frames, labeled by message
	// type.
	FramesReceived *prometheus.CounterVec

	// FramesDropped counts silently discarded inbound frames, labeled by
	// the decode/validation reason (spec §7's error kinds).
	FramesDropped *prometheus.CounterVec

	// HandshakeAttempts counts successful RST_1 transmissions initiated by
	// the reset scheduler.
	HandshakeAttempts prometheus.Counter

	// HandshakeCompletions counts handshakes that reached session
	// adoption, from either role.
	HandshakeCompletions prometheus.Counter

	// DutyExceededGauge reports whether the governor is currently
	// inhibiting transmission (0 or 1).
	DutyExceededGauge prometheus.Gauge

	// PeerRSSI and PeerSNR report last-observed link quality per peer.
	PeerRSSI *prometheus.GaugeVec
	PeerSNR  *prometheus.GaugeVec

	// PeerTableSize reports the current occupancy of the peer table.
	PeerTableSize prometheus.Gauge
}

var _ mesh.MetricsReporter = (*Collector)(nil)

// NewCollector creates a Collector with all mesh metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.FramesSent,
		c.FramesReceived,
		c.FramesDropped,
		c.HandshakeAttempts,
		c.HandshakeCompletions,
		c.DutyExceededGauge,
		c.PeerRSSI,
		c.PeerSNR,
		c.PeerTableSize,
	)

	return c
}

func newMetrics() *Collector {
	msgTypeLabels := []string{labelMsgType}
	reasonLabels := []string{labelReason}
	peerLabels := []string{labelPeerAddr}

	return &Collector{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Total frames transmitted, by message type.",
		}, msgTypeLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total frames accepted on receive, by message type.",
		}, msgTypeLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total inbound frames silently discarded, by reason.",
		}, reasonLabels),

		HandshakeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_attempts_total",
			Help:      "Total RST_1 transmissions initiated by the reset scheduler.",
		}),

		HandshakeCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_completions_total",
			Help:      "Total handshakes that reached session adoption.",
		}),

		DutyExceededGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duty_cycle_exceeded",
			Help:      "1 if the duty-cycle governor is currently inhibiting transmission, else 0.",
		}),

		PeerRSSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peer_rssi_dbm",
			Help:      "Last observed RSSI for a peer, in dBm.",
		}, peerLabels),

		PeerSNR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peer_snr_db",
			Help:      "Last observed SNR for a peer, in dB.",
		}, peerLabels),

		PeerTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peer_table_size",
			Help:      "Current number of populated peer table slots.",
		}),
	}
}

// -------------------------------------------------------------------------
// mesh.MetricsReporter implementation
// -------------------------------------------------------------------------

func (c *Collector) FrameSent(msgType mesh.MsgType) {
	c.FramesSent.WithLabelValues(msgTypeLabel(msgType)).Inc()
}

func (c *Collector) FrameReceived(msgType mesh.MsgType) {
	c.FramesReceived.WithLabelValues(msgTypeLabel(msgType)).Inc()
}

func (c *Collector) FrameDropped(reason string) {
	c.FramesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) HandshakeAttempt() {
	c.HandshakeAttempts.Inc()
}

func (c *Collector) HandshakeCompleted() {
	c.HandshakeCompletions.Inc()
}

func (c *Collector) DutyCycleExceeded(exceeded bool) {
	if exceeded {
		c.DutyExceededGauge.Set(1)
		return
	}
	c.DutyExceededGauge.Set(0)
}

func (c *Collector) PeerLinkUpdated(addr byte, rssi int32, snr float64) {
	label := strconv.Itoa(int(addr))
	c.PeerRSSI.WithLabelValues(label).Set(float64(rssi))
	c.PeerSNR.WithLabelValues(label).Set(snr)
}

// SetPeerTableSize is called by the host loop after each Process tick
// (not part of mesh.MetricsReporter: table size is read from
// mesh.Engine.Table(), not pushed by the engine itself).
func (c *Collector) SetPeerTableSize(n int) {
	c.PeerTableSize.Set(float64(n))
}

func msgTypeLabel(mt mesh.MsgType) string {
	switch mt {
	case mesh.MsgRST1:
		return "rst1"
	case mesh.MsgRST2:
		return "rst2"
	case mesh.MsgRST3:
		return "rst3"
	case mesh.MsgRST4:
		return "rst4"
	default:
		return "app_" + strconv.Itoa(int(mt))
	}
}
