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
	"bytes"
	"context"
	"encoding/xml"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/config"
)

const (
	soapEnvNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	wsNamespace      = "http://ws.claimpay.com.br/validacao"
	defaultOperation = "ValidarPagamento"
)

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	Ws      string   `xml:"xmlns:ws,attr"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content contractValidation
}

type contractValidation struct {
	XMLName        xml.Name
	ContractNumber int64  `xml:"numeroContrato"`
	ClaimNumber    string `xml:"numeroSinistro"`
	PolicyType     string `xml:"tipoApolice"`
	Principal      string `xml:"valorPrincipal"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type soapResponse struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
		Result struct {
			Status    string `xml:"codigoRetorno"`
			Message   string `xml:"mensagem"`
			Timestamp string `xml:"dataHora"`
		} `xml:",any"`
	} `xml:"Body"`
}

// ContractClient validates payments against a contract service over SOAP. The same
// client serves both contract families; kind tells them apart.
type ContractClient struct {
	kind       Kind
	endpoint   config.PartnerEndpoint
	httpClient *http.Client
}

func NewContractClient(kind Kind, endpoint config.PartnerEndpoint, httpClient *http.Client) *ContractClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ContractClient{kind: kind, endpoint: endpoint, httpClient: httpClient}
}

func (c *ContractClient) Kind() Kind {
	return c.kind
}

func (c *ContractClient) operation() string {
	if c.endpoint.SoapAction != "" {
		return c.endpoint.SoapAction
	}
	return defaultOperation
}

func (c *ContractClient) envelope(vr ValidationRequest) ([]byte, error) {
	env := soapEnvelope{
		SoapEnv: soapEnvNamespace,
		Ws:      wsNamespace,
		Body: soapBody{Content: contractValidation{
			XMLName:        xml.Name{Local: "ws:" + c.operation()},
			ContractNumber: vr.ContractNumber,
			ClaimNumber:    vr.ClaimKey.SlashTriple(),
			PolicyType:     vr.PolicyType,
			Principal:      vr.Principal.StringFixed(2),
		}},
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Validate sends one SOAP validation attempt. A SOAP fault is a permanent EXTERNAL_FAULT
// even when it arrives with a 5xx status.
func (c *ContractClient) Validate(ctx context.Context, vr ValidationRequest) (ValidationResponse, error) {
	payload, err := c.envelope(vr)
	if err != nil {
		return ValidationResponse{}, errors.Wrap(err, "encoding soap envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.Url, bytes.NewReader(payload))
	if err != nil {
		return ValidationResponse{}, errors.Wrap(err, "building soap request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", c.operation())
	for k, v := range c.endpoint.Headers {
		req.Header.Set(k, v)
	}

	logrus.WithFields(logrus.Fields{
		"partner":         c.kind,
		"claim_number":    vr.ClaimKey.SlashTriple(),
		"contract_number": vr.ContractNumber,
	}).Debug("calling contract validation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ValidationResponse{}, transportError(ctx, c.kind, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return ValidationResponse{}, transportError(ctx, c.kind, err)
	}

	var out soapResponse
	decodeErr := xml.Unmarshal(body, &out)
	if decodeErr == nil && out.Body.Fault != nil {
		return ValidationResponse{}, &CallError{
			Partner: c.kind,
			Code:    CodeExternalFault,
			Err:     errors.Errorf("soap fault %s: %s", out.Body.Fault.Code, out.Body.Fault.String),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ValidationResponse{}, statusError(c.kind, resp.StatusCode, body)
	}
	if decodeErr != nil {
		return ValidationResponse{}, parseError(c.kind, decodeErr)
	}

	r := out.Body.Result
	return mapResponse(c.kind, r.Status, r.Message, parseTimestamp(r.Timestamp))
}

func (c *ContractClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, c.kind, joinURL(c.endpoint.Url, c.endpoint.HealthPath))
}
