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

package claimpay

import (
	"context"
	"embed"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/database"
	"github.com/jerry-enebeli/claimpay/internal/cache"
	"github.com/jerry-enebeli/claimpay/internal/currency"
	redlock "github.com/jerry-enebeli/claimpay/internal/lock"
	"github.com/jerry-enebeli/claimpay/internal/metrics"
	"github.com/jerry-enebeli/claimpay/internal/partner"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("claimpay")

// ExternalValidator validates a payment with the partner responsible for the claim.
// *partner.Router is the production implementation.
type ExternalValidator interface {
	Validate(ctx context.Context, vr partner.ValidationRequest) partner.ValidationResponse
}

// ClaimPay authorizes indemnity payments against insurance claims.
type ClaimPay struct {
	datasource     database.IDataSource
	validator      ExternalValidator
	converter      currency.Converter
	targetCurrency string
	locks          *redlock.ClaimLocks
	ruleCache      cache.Cache
	ruleCacheTTL   time.Duration
	phases         *PhaseStateMachine
	coordinator    *TransactionCoordinator
	metrics        *metrics.Metrics
	queue          *Queue
	now            func() time.Time
}

type Option func(*ClaimPay)

// WithValidator replaces the partner router built from configuration.
func WithValidator(v ExternalValidator) Option {
	return func(c *ClaimPay) {
		c.validator = v
	}
}

func WithConverter(conv currency.Converter) Option {
	return func(c *ClaimPay) {
		c.converter = conv
	}
}

// WithClaimLocks serializes authorizations per claim through redis.
func WithClaimLocks(locks *redlock.ClaimLocks) Option {
	return func(c *ClaimPay) {
		c.locks = locks
	}
}

// WithRuleCache caches phase event rules for ttl.
func WithRuleCache(rc cache.Cache, ttl time.Duration) Option {
	return func(c *ClaimPay) {
		c.ruleCache = rc
		c.ruleCacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ClaimPay) {
		c.metrics = m
	}
}

// WithQueue enables post-commit webhooks.
func WithQueue(q *Queue) Option {
	return func(c *ClaimPay) {
		c.queue = q
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *ClaimPay) {
		c.now = now
	}
}

// NewClaimPay builds the authorization service over db. Collaborators not supplied as options
// are built from the loaded configuration: the partner router with one breaker per partner and
// the currency converter over the configured rate table.
func NewClaimPay(db database.IDataSource, opts ...Option) (*ClaimPay, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	c := &ClaimPay{
		datasource:     db,
		targetCurrency: cfg.Currency.Target,
		now:            time.Now,
	}
	if c.targetCurrency == "" {
		c.targetCurrency = config.DEFAULT_TARGET_CURRENCY
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.validator == nil {
		c.validator = partner.NewRouterFromConfig(cfg, &http.Client{}, c.metrics)
	}
	if c.converter == nil {
		rates, err := currency.NewRateTable(cfg.Currency.Rates)
		if err != nil {
			return nil, err
		}
		c.converter = rates
	}

	var rules PhaseRuleSource = db
	if c.ruleCache != nil {
		rules = newCachedRuleSource(db, c.ruleCache, c.ruleCacheTTL)
	}
	c.phases = NewPhaseStateMachine(db, rules)
	c.coordinator = NewTransactionCoordinator(db)
	c.coordinator.now = c.now

	return c, nil
}
