/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for payment authorizations and partner calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Authorization outcomes by status
	AuthorizationOutcome *prometheus.CounterVec

	// End-to-end pipeline latency
	AuthorizationLatency prometheus.Histogram

	// Rolled-back transactions by failed step
	Rollbacks *prometheus.CounterVec

	// Partner call results by partner and result code
	PartnerCalls *prometheus.CounterVec

	PartnerLatency *prometheus.HistogramVec

	PartnerRetries *prometheus.CounterVec

	// Breaker state by partner: 0 closed, 1 half-open, 2 open
	BreakerState *prometheus.GaugeVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in production and
// a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthorizationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimpay_authorization_outcomes_total",
			Help: "Total payment authorization outcomes by status",
		}, []string{"status"}),

		AuthorizationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimpay_authorization_duration_seconds",
			Help:    "Duration of the full authorization pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		Rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimpay_transaction_rollbacks_total",
			Help: "Total rolled back authorization transactions by failed step",
		}, []string{"step"}),

		PartnerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimpay_partner_calls_total",
			Help: "Total external validation calls by partner and result",
		}, []string{"partner", "result"}),

		PartnerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimpay_partner_call_duration_seconds",
			Help:    "Duration of external validation calls including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"partner"}),

		PartnerRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimpay_partner_retries_total",
			Help: "Total retried external validation attempts by partner",
		}, []string{"partner"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "claimpay_partner_breaker_state",
			Help: "Circuit breaker state by partner (0 closed, 1 half-open, 2 open)",
		}, []string{"partner"}),
	}
}

// IncrementOutcome records an authorization outcome.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.AuthorizationOutcome.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveAuthorizationLatency(d time.Duration) {
	if m != nil {
		m.AuthorizationLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRollback(step string) {
	if m != nil {
		m.Rollbacks.WithLabelValues(step).Inc()
	}
}

// ObservePartnerCall records one partner call, retries included, and its result.
func (m *Metrics) ObservePartnerCall(partner, result string, d time.Duration) {
	if m != nil {
		m.PartnerCalls.WithLabelValues(partner, result).Inc()
		m.PartnerLatency.WithLabelValues(partner).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPartnerRetry(partner string) {
	if m != nil {
		m.PartnerRetries.WithLabelValues(partner).Inc()
	}
}

func (m *Metrics) SetBreakerState(partner string, state int) {
	if m != nil {
		m.BreakerState.WithLabelValues(partner).Set(float64(state))
	}
}
