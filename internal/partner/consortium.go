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
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/internal/request"
)

type consortiumRequest struct {
	ClaimNumber      string `json:"claim_number"`
	InsuranceType    int    `json:"insurance_type"`
	ContractNumber   int64  `json:"contract_number"`
	ProductCode      int    `json:"product_code"`
	PaymentType      int    `json:"payment_type"`
	PrincipalAmount  string `json:"principal_amount"`
	CorrectionAmount string `json:"correction_amount"`
	Beneficiary      string `json:"beneficiary"`
}

type consortiumResponse struct {
	Status    json.RawMessage `json:"status"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

// ConsortiumClient validates payments of consortium products over JSON/HTTP.
type ConsortiumClient struct {
	endpoint   config.PartnerEndpoint
	httpClient *http.Client
}

func NewConsortiumClient(endpoint config.PartnerEndpoint, httpClient *http.Client) *ConsortiumClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ConsortiumClient{endpoint: endpoint, httpClient: httpClient}
}

func (c *ConsortiumClient) Kind() Kind {
	return KindConsortium
}

// Validate sends one validation attempt. Partner rejections come back as a response;
// only transport, status and decoding problems are returned as errors.
func (c *ConsortiumClient) Validate(ctx context.Context, vr ValidationRequest) (ValidationResponse, error) {
	payload, err := request.ToJsonReq(consortiumRequest{
		ClaimNumber:      vr.ClaimKey.SlashTriple(),
		InsuranceType:    vr.ClaimKey.InsuranceType,
		ContractNumber:   vr.ContractNumber,
		ProductCode:      vr.ProductCode,
		PaymentType:      vr.PaymentType,
		PrincipalAmount:  vr.Principal.StringFixed(2),
		CorrectionAmount: vr.Correction.StringFixed(2),
		Beneficiary:      vr.Beneficiary,
	})
	if err != nil {
		return ValidationResponse{}, errors.Wrap(err, "encoding consortium request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.Url, payload)
	if err != nil {
		return ValidationResponse{}, errors.Wrap(err, "building consortium request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.endpoint.Headers {
		req.Header.Set(k, v)
	}

	logrus.WithFields(logrus.Fields{
		"partner":      KindConsortium,
		"claim_number": vr.ClaimKey.SlashTriple(),
		"product_code": vr.ProductCode,
	}).Debug("calling consortium validation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ValidationResponse{}, transportError(ctx, KindConsortium, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return ValidationResponse{}, transportError(ctx, KindConsortium, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ValidationResponse{}, statusError(KindConsortium, resp.StatusCode, body)
	}

	var out consortiumResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ValidationResponse{}, parseError(KindConsortium, err)
	}

	status, err := statusText(out.Status)
	if err != nil {
		return ValidationResponse{}, parseError(KindConsortium, err)
	}

	return mapResponse(KindConsortium, status, out.Message, parseTimestamp(out.Timestamp))
}

func (c *ConsortiumClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, KindConsortium, joinURL(c.endpoint.Url, c.endpoint.HealthPath))
}

// statusText accepts the status either as a JSON string or as a bare number.
func statusText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
