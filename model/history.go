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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventPaymentAuthorized is the accompaniment and phase event code for an authorized payment.
const EventPaymentAuthorized = 1184

// HistoryEntry is an append-only ledger row keyed by claim key and occurrence.
type HistoryEntry struct {
	ClaimKey            ClaimKey        `json:"claim_key"`
	Occurrence          int             `json:"occurrence"`
	AuthorizationID     string          `json:"authorization_id"`
	PaymentType         int             `json:"payment_type"`
	Principal           decimal.Decimal `json:"principal"`
	Correction          decimal.Decimal `json:"correction"`
	Currency            string          `json:"currency"`
	ConvertedPrincipal  decimal.Decimal `json:"converted_principal"`
	ConvertedCorrection decimal.Decimal `json:"converted_correction"`
	TargetCurrency      string          `json:"target_currency"`
	Rate                decimal.Decimal `json:"rate"`
	Beneficiary         string          `json:"beneficiary"`
	BusinessDate        time.Time       `json:"business_date"`
	OperatorID          string          `json:"operator_id"`
	CreatedAt           time.Time       `json:"created_at"`
}

// AccompanimentEntry is an audit-trail row for a claim movement.
type AccompanimentEntry struct {
	ClaimKey        ClaimKey  `json:"claim_key"`
	EventCode       int       `json:"event_code"`
	Occurrence      int       `json:"occurrence"`
	AuthorizationID string    `json:"authorization_id"`
	OperatorID      string    `json:"operator_id"`
	BusinessDate    time.Time `json:"business_date"`
	MovedAt         time.Time `json:"moved_at"`
}
