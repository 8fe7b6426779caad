package partner

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/claimpay/config"
)

type fakeClient struct {
	kind      Kind
	resp      ValidationResponse
	healthErr error
	calls     int
}

func (f *fakeClient) Kind() Kind {
	return f.kind
}

func (f *fakeClient) Validate(_ context.Context, _ ValidationRequest) ValidationResponse {
	f.calls++
	resp := f.resp
	resp.Partner = f.kind
	return resp
}

func (f *fakeClient) HealthCheck(_ context.Context) error {
	return f.healthErr
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter(nil)

	tests := []struct {
		name           string
		productCode    int
		contractNumber int64
		want           Kind
	}{
		{name: "consortium product wins over contract", productCode: 7712, contractNumber: 55, want: KindConsortium},
		{name: "consortium product without contract", productCode: 6814, want: KindConsortium},
		{name: "resolved contract", productCode: 1001, contractNumber: 55, want: KindContractA},
		{name: "unresolved contract", productCode: 1001, want: KindContractB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := testValidationRequest()
			vr.ProductCode = tt.productCode
			vr.ContractNumber = tt.contractNumber
			assert.Equal(t, tt.want, router.Route(vr))
		})
	}
}

func TestRouter_ValidateDispatches(t *testing.T) {
	consortium := &fakeClient{kind: KindConsortium, resp: ValidationResponse{Success: true}}
	contractA := &fakeClient{kind: KindContractA, resp: ValidationResponse{Code: CodeContractCancelled}}
	router := NewRouter([]int{6814}, consortium, contractA)

	vr := testValidationRequest()
	assert.True(t, router.Validate(context.Background(), vr).Success)

	vr.ProductCode = 1
	vr.ContractNumber = 10
	resp := router.Validate(context.Background(), vr)
	assert.Equal(t, CodeContractCancelled, resp.Code)
	assert.Equal(t, 1, consortium.calls)
	assert.Equal(t, 1, contractA.calls)
}

func TestRouter_MissingClientIsRoutingError(t *testing.T) {
	router := NewRouter(nil, &fakeClient{kind: KindConsortium})

	vr := testValidationRequest()
	vr.ProductCode = 1
	resp := router.Validate(context.Background(), vr)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeRoutingError, resp.Code)
	assert.Equal(t, KindContractB, resp.Partner)
	assert.Equal(t, "Nenhum serviço de validação atende este produto", resp.Message)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := NewRouter(nil,
		&fakeClient{kind: KindContractB, healthErr: errors.New("status 503")},
		&fakeClient{kind: KindConsortium},
	)

	statuses := router.HealthCheck(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, KindConsortium, statuses[0].Partner)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, KindContractB, statuses[1].Partner)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, "status 503", statuses[1].Error)
}

func TestNewRouterFromConfig(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, contractURL, httpmock.NewStringResponder(http.StatusOK, soapCancelled))

	cfg := &config.Configuration{
		Partners: config.PartnersConfig{
			ContractA: config.PartnerEndpoint{Url: contractURL, SoapAction: "ValidarPagamentoContrato"},
		},
	}
	router := NewRouterFromConfig(cfg, nil, nil)

	vr := testValidationRequest()
	vr.ProductCode = 1
	vr.ContractNumber = 884211
	resp := router.Validate(context.Background(), vr)
	assert.Equal(t, CodeContractCancelled, resp.Code)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	statuses := router.HealthCheck(context.Background())
	require.Len(t, statuses, 1)
	assert.Equal(t, "closed", statuses[0].Breaker)
}
