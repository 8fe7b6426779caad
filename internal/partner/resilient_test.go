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
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/internal/metrics"
)

func fastPolicy() Policy {
	return Policy{
		AttemptTimeout:   time.Second,
		MaxRetries:       3,
		InitialBackoff:   time.Millisecond,
		BreakerThreshold: 5,
		BreakerOpen:      100 * time.Millisecond,
	}
}

func consortiumOK() httpmock.Responder {
	return httpmock.NewStringResponder(http.StatusOK, `{"status":"000","message":"ok"}`)
}

func TestDefaultPolicy_BackoffSchedule(t *testing.T) {
	b := DefaultPolicy().NewBackOff()

	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 8*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestPolicyFromConfig(t *testing.T) {
	zero := 0
	threshold := 7
	p := PolicyFromConfig(config.ResilienceConfig{MaxRetries: &zero, BreakerThreshold: &threshold})

	assert.Equal(t, 10*time.Second, p.AttemptTimeout)
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, uint32(7), p.BreakerThreshold)
	assert.Equal(t, 30*time.Second, p.BreakerOpen)
	assert.Equal(t, backoff.Stop, p.NewBackOff().NextBackOff())
}

func TestResilientClient_RetriesTransientFailures(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls <= 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"status":"000","message":"ok"}`), nil
	})

	var waits []time.Duration
	client := NewResilientClient(
		NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil),
		fastPolicy(),
		WithRetryNotify(func(_ error, wait time.Duration) { waits = append(waits, wait) }),
	)

	resp := client.Validate(context.Background(), testValidationRequest())
	assert.True(t, resp.Success)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, waits)
	assert.Equal(t, gobreaker.StateClosed, client.State())
}

func TestResilientClient_GivesUpAfterThreeRetries(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), fastPolicy(), WithMetrics(m))

	resp := client.Validate(context.Background(), testValidationRequest())
	assert.False(t, resp.Success)
	assert.Equal(t, CodeExternalFault, resp.Code)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())

	// the whole retried call is one breaker outcome
	assert.Equal(t, uint32(1), client.breaker.Counts().ConsecutiveFailures)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PartnerRetries.WithLabelValues("consortium")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PartnerCalls.WithLabelValues("consortium", CodeExternalFault)))
}

func TestResilientClient_DoesNotRetryPermanentFailures(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, httpmock.NewStringResponder(http.StatusOK, "not json"))

	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), fastPolicy())

	resp := client.Validate(context.Background(), testValidationRequest())
	assert.Equal(t, CodeParseError, resp.Code)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestResilientClient_BusinessRejectionIsNotAFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL,
		httpmock.NewStringResponder(http.StatusOK, `{"status":"002","message":"suspenso"}`))

	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), fastPolicy())
	for i := 0; i < 6; i++ {
		resp := client.Validate(context.Background(), testValidationRequest())
		assert.Equal(t, CodeContractSuspended, resp.Code)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())
	assert.Equal(t, 6, httpmock.GetTotalCallCount())
}

func TestResilientClient_BreakerOpensAfterFiveFailures(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	policy := fastPolicy()
	policy.MaxRetries = 0
	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), policy)

	for i := 0; i < 5; i++ {
		resp := client.Validate(context.Background(), testValidationRequest())
		assert.Equal(t, CodeExternalFault, resp.Code)
	}
	assert.Equal(t, 5, httpmock.GetTotalCallCount())
	assert.Equal(t, gobreaker.StateOpen, client.State())

	// sixth call fails fast without touching the network
	started := time.Now()
	resp := client.Validate(context.Background(), testValidationRequest())
	assert.Less(t, time.Since(started), 50*time.Millisecond)
	assert.Equal(t, CodeServiceUnavailable, resp.Code)
	assert.Equal(t, "Serviço de validação indisponível no momento", resp.Message)
	assert.Equal(t, 5, httpmock.GetTotalCallCount())

	// after the open period a single trial call goes through and closes the breaker
	time.Sleep(policy.BreakerOpen + 20*time.Millisecond)
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, consortiumOK())

	resp = client.Validate(context.Background(), testValidationRequest())
	assert.True(t, resp.Success)
	assert.Equal(t, 6, httpmock.GetTotalCallCount())
	assert.Equal(t, gobreaker.StateClosed, client.State())
}

func TestResilientClient_BreakerOpensOnRepliesWithoutStatus(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		client func() Validator
		body   string
	}{
		{
			name:   "consortium json",
			url:    consortiumURL,
			client: func() Validator { return NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil) },
			body:   `{"message":"no status"}`,
		},
		{
			name:   "consortium numeric exponent",
			url:    consortiumURL,
			client: func() Validator { return NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil) },
			body:   `{"status":1e0,"message":"odd"}`,
		},
		{
			name: "contract soap",
			url:  contractURL,
			client: func() Validator {
				return NewContractClient(KindContractA, config.PartnerEndpoint{Url: contractURL}, nil)
			},
			body: `<Envelope><Body><Resp><mensagem>x</mensagem></Resp></Body></Envelope>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.Activate()
			defer httpmock.DeactivateAndReset()
			httpmock.RegisterResponder(http.MethodPost, tt.url, httpmock.NewStringResponder(http.StatusOK, tt.body))

			client := NewResilientClient(tt.client(), fastPolicy())
			for i := 0; i < 5; i++ {
				resp := client.Validate(context.Background(), testValidationRequest())
				assert.False(t, resp.Success)
				assert.Equal(t, CodeParseError, resp.Code)
			}

			// not retried, and each reply counts as one breaker failure
			assert.Equal(t, 5, httpmock.GetTotalCallCount())
			assert.Equal(t, gobreaker.StateOpen, client.State())
		})
	}
}

func TestResilientClient_BreakerIsPerInstance(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))
	httpmock.RegisterResponder(http.MethodPost, contractURL, httpmock.NewStringResponder(http.StatusOK, soapSuccess))

	policy := fastPolicy()
	policy.MaxRetries = 0
	consortium := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), policy)
	contract := NewResilientClient(NewContractClient(KindContractA, config.PartnerEndpoint{Url: contractURL}, nil), policy)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consortium.Validate(context.Background(), testValidationRequest())
		}()
	}
	wg.Wait()

	assert.Equal(t, gobreaker.StateOpen, consortium.State())
	assert.True(t, contract.Validate(context.Background(), testValidationRequest()).Success)
	assert.Equal(t, gobreaker.StateClosed, contract.State())
}

func TestResilientClient_AttemptTimeout(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	policy := fastPolicy()
	policy.AttemptTimeout = 20 * time.Millisecond
	policy.MaxRetries = 1
	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), policy)

	resp := client.Validate(context.Background(), testValidationRequest())
	assert.Equal(t, CodeServiceUnavailable, resp.Code)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestResilientClient_CallerCancellation(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, consortiumURL, consortiumOK())

	client := NewResilientClient(NewConsortiumClient(config.PartnerEndpoint{Url: consortiumURL}, nil), fastPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := client.Validate(ctx, testValidationRequest())
	require.False(t, resp.Success)
	assert.Equal(t, CodeServiceUnavailable, resp.Code)
	// a caller that gave up does not count against the partner
	assert.Equal(t, uint32(0), client.breaker.Counts().ConsecutiveFailures)
}
