package hsess

import "github.com/prometheus/client_golang/prometheus"

// sessionMetrics bundles the prometheus collectors exercised by the worker.
// A nil *sessionMetrics (via Connect with no WithRegisterer option) is
// valid; every method on it is a no-op guarded by a nil receiver check.
type sessionMetrics struct {
	packetsSent     *prometheus.CounterVec
	packetsRecv     *prometheus.CounterVec
	retransmissions prometheus.Counter
	acksEmitted     prometheus.Counter
	objAcksFlushed  prometheus.Counter
	pendingDepth    prometheus.Gauge
	trackedObjects  prometheus.Gauge
}

func newSessionMetrics(reg prometheus.Registerer, constLabels prometheus.Labels) *sessionMetrics {
	if reg == nil {
		return nil
	}
	m := &sessionMetrics{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hsess_packets_sent_total",
			Help:        "Datagrams sent by packet type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		packetsRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hsess_packets_received_total",
			Help:        "Datagrams received by packet type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hsess_retransmissions_total",
			Help:        "Reliable messages retransmitted (attempts after the first).",
			ConstLabels: constLabels,
		}),
		acksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hsess_acks_emitted_total",
			Help:        "Coalesced ACK packets emitted for the reliable stream.",
			ConstLabels: constLabels,
		}),
		objAcksFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hsess_objack_entries_flushed_total",
			Help:        "Per-object ack entries flushed in OBJACK packets.",
			ConstLabels: constLabels,
		}),
		pendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hsess_pending_queue_depth",
			Help:        "Unacknowledged reliable messages awaiting send or ack.",
			ConstLabels: constLabels,
		}),
		trackedObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hsess_tracked_objects",
			Help:        "Object ids with an outstanding frame ack.",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(m.packetsSent, m.packetsRecv, m.retransmissions,
		m.acksEmitted, m.objAcksFlushed, m.pendingDepth, m.trackedObjects)
	return m
}

func (m *sessionMetrics) sent(t PacketType) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(t.String()).Inc()
}

func (m *sessionMetrics) received(t PacketType) {
	if m == nil {
		return
	}
	m.packetsRecv.WithLabelValues(t.String()).Inc()
}

func (m *sessionMetrics) retransmitted() {
	if m == nil {
		return
	}
	m.retransmissions.Inc()
}

func (m *sessionMetrics) ackEmitted() {
	if m == nil {
		return
	}
	m.acksEmitted.Inc()
}

func (m *sessionMetrics) objAcksFlushedBy(n int) {
	if m == nil {
		return
	}
	m.objAcksFlushed.Add(float64(n))
}

func (m *sessionMetrics) setPendingDepth(n int) {
	if m == nil {
		return
	}
	m.pendingDepth.Set(float64(n))
}

func (m *sessionMetrics) setTrackedObjects(n int) {
	if m == nil {
		return
	}
	m.trackedObjects.Set(float64(n))
}
