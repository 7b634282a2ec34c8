// Package metrics decorates a push.Gateway with Prometheus instrumentation.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "device_failure"
	outcomeError   = "error"
)

// Gateway records send counts, outcomes and latency for the wrapped gateway.
type Gateway struct {
	gateway      push.Gateway
	provider     string
	sendCounter  *prometheus.CounterVec
	outcomeCount *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
}

// NewGateway wraps gateway and registers its collectors on reg.
func NewGateway(provider string, gateway push.Gateway, reg prometheus.Registerer) *Gateway {
	sendCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_relay_gateway_send_total",
			Help: "Number of sends issued to the push gateway.",
		},
		[]string{"provider"},
	)
	outcomeCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_relay_gateway_outcome_total",
			Help: "Push gateway send outcomes.",
		},
		[]string{"provider", "outcome"},
	)
	sendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_relay_gateway_send_duration_seconds",
			Help:    "Push gateway send latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)
	reg.MustRegister(sendCounter, outcomeCount, sendDuration)

	return &Gateway{
		gateway:      gateway,
		provider:     provider,
		sendCounter:  sendCounter,
		outcomeCount: outcomeCount,
		sendDuration: sendDuration,
	}
}

// Send forwards to the wrapped gateway and records the outcome.
func (g *Gateway) Send(ctx context.Context, key, deviceID string, payload json.RawMessage) (*push.GatewayResult, error) {
	start := time.Now()
	g.sendCounter.WithLabelValues(g.provider).Inc()

	result, err := g.gateway.Send(ctx, key, deviceID, payload)

	outcome := outcomeSuccess
	switch {
	case err != nil:
		outcome = outcomeError
	case result != nil && result.Failure:
		outcome = outcomeFailure
	}
	g.outcomeCount.WithLabelValues(g.provider, outcome).Inc()
	g.sendDuration.WithLabelValues(g.provider, outcome).Observe(time.Since(start).Seconds())

	return result, err
}
