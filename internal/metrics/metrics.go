// Package metrics exposes RPC engine events as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "rpc"

var _ jsonrpc2.Observer = &Collector{}

// Collector is a jsonrpc2.Observer that records into Prometheus metrics. One
// Collector can observe many Remotes.
type Collector struct {
	callsStarted   *prometheus.CounterVec
	callsCompleted *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	callsInflight  prometheus.Gauge
	requests       *prometheus.CounterVec
	requestTime    *prometheus.HistogramVec
	protocolErrors *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		callsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_started_total",
			Help:      "Number of outbound calls sent.",
		}, []string{"method"}),

		callsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_completed_total",
			Help:      "Number of outbound calls completed, by error code (0 on success).",
		}, []string{"method", "code"}),

		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "call_duration_seconds",
			Help:      "Time from sending an outbound call to its completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		callsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_inflight",
			Help:      "Number of outbound calls awaiting a response.",
		}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_handled_total",
			Help:      "Number of inbound requests dispatched, by error code (0 on success).",
		}, []string{"method", "code"}),

		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent in handlers for inbound requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "protocol_errors_total",
			Help:      "Number of errors reported to the error sink, by code.",
		}, []string{"code"}),
	}

	for _, m := range []prometheus.Collector{
		c.callsStarted,
		c.callsCompleted,
		c.callDuration,
		c.callsInflight,
		c.requests,
		c.requestTime,
		c.protocolErrors,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) CallStarted(method string) {
	c.callsStarted.WithLabelValues(method).Inc()
	c.callsInflight.Inc()
}

func (c *Collector) CallCompleted(method string, took time.Duration, err error) {
	c.callsInflight.Dec()
	c.callsCompleted.WithLabelValues(method, code(err)).Inc()
	c.callDuration.WithLabelValues(method).Observe(took.Seconds())
}

func (c *Collector) RequestHandled(method string, took time.Duration, err error) {
	c.requests.WithLabelValues(method, code(err)).Inc()
	c.requestTime.WithLabelValues(method).Observe(took.Seconds())
}

func (c *Collector) ProtocolError(errCode int) {
	c.protocolErrors.WithLabelValues(strconv.Itoa(errCode)).Inc()
}

func code(err error) string {
	return strconv.Itoa(jsonrpc2.ErrorCode(err))
}
