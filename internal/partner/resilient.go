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

package partner

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/internal/metrics"
)

// Policy is the retry and circuit breaker policy of one partner client.
type Policy struct {
	AttemptTimeout   time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
	BreakerThreshold uint32
	BreakerOpen      time.Duration
}

// DefaultPolicy: 10s per attempt, 3 retries at 2s/4s/8s, breaker opening after 5
// consecutive failed calls for 30s.
func DefaultPolicy() Policy {
	return Policy{
		AttemptTimeout:   10 * time.Second,
		MaxRetries:       3,
		InitialBackoff:   2 * time.Second,
		BreakerThreshold: 5,
		BreakerOpen:      30 * time.Second,
	}
}

// PolicyFromConfig reads the policy from the resilience section, falling back to
// DefaultPolicy for anything unset.
func PolicyFromConfig(cfg config.ResilienceConfig) Policy {
	p := DefaultPolicy()
	p.AttemptTimeout = cfg.AttemptTimeout()
	p.InitialBackoff = cfg.InitialBackoff()
	p.BreakerOpen = cfg.BreakerOpen()
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		p.MaxRetries = *cfg.MaxRetries
	}
	if cfg.BreakerThreshold != nil && *cfg.BreakerThreshold > 0 {
		p.BreakerThreshold = uint32(*cfg.BreakerThreshold)
	}
	return p
}

// NewBackOff returns the retry schedule: InitialBackoff doubled on every retry, no jitter,
// stopping after MaxRetries.
func (p Policy) NewBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.InitialBackoff << uint(max(p.MaxRetries-1, 0)),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0)))
}

// ResilientClient wraps a Validator with a per-attempt timeout, retries and a circuit
// breaker. The breaker belongs to this instance and is shared by all its callers. One
// Validate call, retries included, counts as a single breaker outcome.
type ResilientClient struct {
	client  Validator
	policy  Policy
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	notify  backoff.Notify
}

type ResilientOption func(*ResilientClient)

func WithMetrics(m *metrics.Metrics) ResilientOption {
	return func(r *ResilientClient) {
		r.metrics = m
	}
}

// WithRetryNotify registers a callback run before every retry with the wait about to happen.
func WithRetryNotify(fn backoff.Notify) ResilientOption {
	return func(r *ResilientClient) {
		r.notify = fn
	}
}

func NewResilientClient(client Validator, policy Policy, opts ...ResilientOption) *ResilientClient {
	r := &ResilientClient{client: client, policy: policy}
	for _, opt := range opts {
		opt(r)
	}

	kind := string(client.Kind())
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        kind,
		MaxRequests: 1,
		Timeout:     policy.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"partner": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("partner circuit breaker state changed")
			r.metrics.SetBreakerState(name, int(to))
		},
	})
	r.metrics.SetBreakerState(kind, int(gobreaker.StateClosed))
	return r
}

func (r *ResilientClient) Kind() Kind {
	return r.client.Kind()
}

// State exposes the breaker state for health reporting.
func (r *ResilientClient) State() gobreaker.State {
	return r.breaker.State()
}

// Validate never returns an error: every failure becomes a non-success response with
// one of SERVICE_UNAVAILABLE, EXTERNAL_FAULT or PARSE_ERROR.
func (r *ResilientClient) Validate(ctx context.Context, vr ValidationRequest) ValidationResponse {
	kind := r.client.Kind()
	started := time.Now()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.attemptWithRetry(ctx, vr)
	})

	var resp ValidationResponse
	switch {
	case err == nil:
		resp = result.(ValidationResponse)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logrus.WithField("partner", kind).Warn("partner circuit open, skipping call")
		resp = failureResponse(kind, CodeServiceUnavailable)
	default:
		resp = failureResponse(kind, codeOf(err))
		logrus.WithFields(logrus.Fields{
			"partner": kind,
			"code":    resp.Code,
			"error":   err.Error(),
		}).Error("partner validation failed")
	}

	outcome := "success"
	if !resp.Success {
		outcome = resp.Code
	}
	r.metrics.ObservePartnerCall(string(kind), outcome, time.Since(started))
	return resp
}

func (r *ResilientClient) attemptWithRetry(ctx context.Context, vr ValidationRequest) (ValidationResponse, error) {
	var resp ValidationResponse
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()

		out, err := r.client.Validate(attemptCtx, vr)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.metrics.IncrementPartnerRetry(string(r.client.Kind()))
		logrus.WithFields(logrus.Fields{
			"partner": r.client.Kind(),
			"wait":    wait.String(),
			"error":   err.Error(),
		}).Warn("retrying partner validation")
		if r.notify != nil {
			r.notify(err, wait)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(r.policy.NewBackOff(), ctx), notify)
	return resp, err
}

// HealthCheck probes the partner directly, bypassing the breaker.
func (r *ResilientClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
	defer cancel()
	return r.client.HealthCheck(ctx)
}

func codeOf(err error) string {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeServiceUnavailable
	}
	return CodeExternalFault
}
