// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"loaner/internal/protocol"
)

const metricsNamespace = "loaner"

// Metrics collects server counters on a private registry. All methods are
// safe on a nil receiver so tests can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	broadcasts      *prometheus.CounterVec
	pushDrops       prometheus.Counter
	queueLength     *prometheus.GaugeVec
	replays         prometheus.Counter
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Connected client sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_total",
			Help:      "Client sessions accepted since start.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests handled, by type and result code.",
		}, []string{"type", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Events broadcast to registered sessions.",
		}, []string{"event"}),
		pushDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_drops_total",
			Help:      "Sessions dropped because a push could not be delivered.",
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_length",
			Help:      "Waitlist length per performance class.",
		}, []string{"class"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "idempotent_replays_total",
			Help:      "Mutating requests answered from the replay cache.",
		}),
	}

	m.registry.MustRegister(
		m.sessionsActive, m.sessionsTotal, m.requests, m.requestDuration,
		m.broadcasts, m.pushDrops, m.queueLength, m.replays,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) observeRequest(reqType string, resp *protocol.Message, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "ok"
	if resp != nil && resp.Error != nil {
		code = string(resp.Error.Code)
	}
	if !protocol.RequestType(reqType).Known() {
		reqType = "unknown"
	}
	m.requests.WithLabelValues(reqType, code).Inc()
	m.requestDuration.WithLabelValues(reqType).Observe(elapsed.Seconds())
}

func (m *Metrics) observeEvent(event protocol.EventType, payload interface{}) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(string(event)).Inc()
	if update, ok := payload.(protocol.QueueUpdate); ok {
		m.queueLength.WithLabelValues(string(update.Class)).Set(float64(len(update.Entries)))
	}
}

func (m *Metrics) pushDropped() {
	if m == nil {
		return
	}
	m.pushDrops.Inc()
}

func (m *Metrics) replayed() {
	if m == nil {
		return
	}
	m.replays.Inc()
}
