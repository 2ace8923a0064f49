// Package metrics exposes Prometheus metrics for routing turns, agent
// dispatches and the HTTP surface.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/router"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "agentrouter"

// Collector owns a private registry so several collectors can coexist (tests,
// embedded use).
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	turnHops     prometheus.Histogram

	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	handoffsTotal *prometheus.CounterVec

	logger logging.Logger
}

// NewCollector creates a collector registering its metrics under namespace.
func NewCollector(namespace string, logger logging.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logging.OrNoOp(logger),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of routed turns by outcome",
		},
		[]string{"status", "error_kind"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	c.turnHops = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_hops",
			Help:      "Number of handoffs followed per completed turn",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
	)

	c.dispatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_dispatches_total",
			Help:      "Total number of dispatches to agent completion services",
		},
		[]string{"agent", "outcome"},
	)

	c.dispatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_dispatch_duration_seconds",
			Help:      "Agent dispatch duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	c.handoffsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of followed handoff edges",
		},
		[]string{"source", "target"},
	)

	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry: c.registry,
		ErrorLog: errorLog{c.logger},
	})
}

// errorLog adapts logging.Logger to promhttp.Logger.
type errorLog struct{ logging.Logger }

func (l errorLog) Println(v ...any) {
	l.Error("metrics.http.error", "error", fmt.Sprint(v...))
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTurn records a finished turn. err is nil for completed turns.
func (c *Collector) RecordTurn(hops int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		c.turnHops.Observe(float64(hops))
	}
	c.turnsTotal.WithLabelValues(status, core.ErrorKind(err)).Inc()
	c.turnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDispatch records one completion service call.
func (c *Collector) RecordDispatch(agent string, outcome core.Outcome, duration time.Duration, err error) {
	c.dispatchesTotal.WithLabelValues(agent, outcomeLabel(outcome, err)).Inc()
	c.dispatchDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordHandoff records a followed delegation edge.
func (c *Collector) RecordHandoff(source, target string) {
	c.handoffsTotal.WithLabelValues(source, target).Inc()
}

// Callbacks returns router callbacks feeding the collector.
func (c *Collector) Callbacks() []router.Callback {
	return []router.Callback{
		router.NewFunctionCallback(router.CallbackAfterDispatch, func(_ context.Context, cbCtx *router.CallbackContext) error {
			c.RecordDispatch(cbCtx.Agent, cbCtx.Outcome, cbCtx.Duration, cbCtx.Err)
			return nil
		}),
		router.NewFunctionCallback(router.CallbackOnHandoff, func(_ context.Context, cbCtx *router.CallbackContext) error {
			if cbCtx.Edge != nil {
				c.RecordHandoff(cbCtx.Edge.Source, cbCtx.Edge.Target)
			}
			return nil
		}),
		router.NewFunctionCallback(router.CallbackOnTurnComplete, func(_ context.Context, cbCtx *router.CallbackContext) error {
			c.RecordTurn(cbCtx.Hop, cbCtx.Duration, nil)
			return nil
		}),
		router.NewFunctionCallback(router.CallbackOnError, func(_ context.Context, cbCtx *router.CallbackContext) error {
			c.RecordTurn(cbCtx.Hop, cbCtx.Duration, cbCtx.Err)
			return nil
		}),
	}
}

func outcomeLabel(outcome core.Outcome, err error) string {
	if err != nil {
		return "error"
	}
	switch outcome.(type) {
	case core.FinalReply:
		return "final_reply"
	case core.Transfer:
		return "transfer"
	default:
		return "unknown"
	}
}
