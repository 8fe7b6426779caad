package partner

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/internal/metrics"
)

// Client is what the router needs from a partner: a validation that never fails and a probe.
type Client interface {
	Kind() Kind
	Validate(ctx context.Context, vr ValidationRequest) ValidationResponse
	HealthCheck(ctx context.Context) error
}

// Router picks the partner for a request. First match wins: consortium products go to the
// consortium client, claims with a resolved contract to contract A, everything else to
// contract B.
type Router struct {
	consortiumProducts map[int]struct{}
	clients            map[Kind]Client
}

// DefaultConsortiumProducts are the product codes validated by the consortium service.
var DefaultConsortiumProducts = []int{6814, 7712, 7713, 7714}

// NewRouter builds a router over the given clients. Missing clients are allowed; requests
// routed to them get a ROUTING_ERROR response.
func NewRouter(consortiumProducts []int, clients ...Client) *Router {
	if len(consortiumProducts) == 0 {
		consortiumProducts = DefaultConsortiumProducts
	}
	r := &Router{
		consortiumProducts: make(map[int]struct{}, len(consortiumProducts)),
		clients:            make(map[Kind]Client, len(clients)),
	}
	for _, code := range consortiumProducts {
		r.consortiumProducts[code] = struct{}{}
	}
	for _, c := range clients {
		if c != nil {
			r.clients[c.Kind()] = c
		}
	}
	return r
}

// NewRouterFromConfig wires the three resilient partner clients from configuration. Each
// client gets its own breaker.
func NewRouterFromConfig(cfg *config.Configuration, httpClient *http.Client, m *metrics.Metrics) *Router {
	policy := PolicyFromConfig(cfg.Resilience)
	var clients []Client
	if cfg.Partners.Consortium.Url != "" {
		clients = append(clients, NewResilientClient(NewConsortiumClient(cfg.Partners.Consortium, httpClient), policy, WithMetrics(m)))
	}
	if cfg.Partners.ContractA.Url != "" {
		clients = append(clients, NewResilientClient(NewContractClient(KindContractA, cfg.Partners.ContractA, httpClient), policy, WithMetrics(m)))
	}
	if cfg.Partners.ContractB.Url != "" {
		clients = append(clients, NewResilientClient(NewContractClient(KindContractB, cfg.Partners.ContractB, httpClient), policy, WithMetrics(m)))
	}
	return NewRouter(cfg.Partners.ConsortiumProducts, clients...)
}

// Route returns the kind of partner responsible for vr.
func (r *Router) Route(vr ValidationRequest) Kind {
	if _, ok := r.consortiumProducts[vr.ProductCode]; ok {
		return KindConsortium
	}
	if vr.ContractNumber > 0 {
		return KindContractA
	}
	return KindContractB
}

// Validate routes vr and calls the chosen partner. It never returns an error.
func (r *Router) Validate(ctx context.Context, vr ValidationRequest) ValidationResponse {
	kind := r.Route(vr)
	client, ok := r.clients[kind]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"partner":      kind,
			"product_code": vr.ProductCode,
			"claim_key":    vr.ClaimKey.String(),
		}).Error("no partner client configured for route")
		return failureResponse(kind, CodeRoutingError)
	}
	return client.Validate(ctx, vr)
}

// HealthStatus is the probe result of one partner.
type HealthStatus struct {
	Partner   Kind          `json:"partner"`
	Healthy   bool          `json:"healthy"`
	Breaker   string        `json:"breaker,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthCheck probes every configured partner. It is informational and never consulted by
// Validate.
func (r *Router) HealthCheck(ctx context.Context) []HealthStatus {
	kinds := make([]string, 0, len(r.clients))
	for k := range r.clients {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	statuses := make([]HealthStatus, 0, len(kinds))
	for _, k := range kinds {
		client := r.clients[Kind(k)]
		started := time.Now()
		err := client.HealthCheck(ctx)
		status := HealthStatus{
			Partner:   client.Kind(),
			Healthy:   err == nil,
			Latency:   time.Since(started),
			CheckedAt: time.Now(),
		}
		if err != nil {
			status.Error = err.Error()
		}
		if rc, ok := client.(*ResilientClient); ok {
			status.Breaker = rc.State().String()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
