/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	metrics.go: prometheus collectors
*/

package dgps

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer, every recorder is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	Messages           *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
	Reconnects         *prometheus.CounterVec
	EphemerisRequests  prometheus.Counter
	CorrectionBytes    *prometheus.CounterVec
	CorrectionsDropped prometheus.Counter
	Divergence         *prometheus.GaugeVec
}

// NewMetrics registers against reg, the default registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgps_messages_total",
			Help: "Decoded UBX messages, by receiver role and message name.",
		}, []string{"role", "message"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgps_decode_errors_total",
			Help: "UBX messages that could not be unpacked, by receiver role.",
		}, []string{"role"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgps_reconnects_total",
			Help: "Sessions re-opened after a stall, by receiver role.",
		}, []string{"role"}),
		EphemerisRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dgps_ephemeris_requests_total",
			Help: "AID-EPH polls sent to the reference receiver.",
		}),
		CorrectionBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgps_correction_bytes_total",
			Help: "Correction payload bytes generated, by message type.",
		}, []string{"type"}),
		CorrectionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dgps_corrections_dropped_total",
			Help: "Epochs whose corrections were skipped because the encoder was still busy.",
		}),
		Divergence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dgps_divergence_meters",
			Help: "Latest 3-D distance for each reported receiver pair.",
		}, []string{"pair"}),
	}

	for _, c := range []prometheus.Collector{m.Messages, m.DecodeErrors, m.Reconnects, m.EphemerisRequests, m.CorrectionBytes, m.CorrectionsDropped, m.Divergence} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) message(role Role, name string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(role.String(), name).Inc()
}

func (m *Metrics) decodeError(role Role) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) reconnected(role Role) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) ephemerisRequested() {
	if m == nil {
		return
	}
	m.EphemerisRequests.Inc()
}

func (m *Metrics) correction(kind int, n int) {
	if m == nil {
		return
	}
	m.CorrectionBytes.WithLabelValues(strconv.Itoa(kind)).Add(float64(n))
}

func (m *Metrics) correctionDropped() {
	if m == nil {
		return
	}
	m.CorrectionsDropped.Inc()
}

func (m *Metrics) divergence(pair string, meters float64) {
	if m == nil {
		return
	}
	m.Divergence.WithLabelValues(pair).Set(meters)
}
