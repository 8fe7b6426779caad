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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	"github.com/jerry-enebeli/claimpay/model"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// RecordHistory appends a payment history entry inside tx.
func (d Datasource) RecordHistory(ctx context.Context, tx *sql.Tx, entry *model.HistoryEntry) error {
	key := entry.ClaimKey
	_, err := tx.ExecContext(ctx, `
		INSERT INTO claimpay.claim_history (
			insurance_type, origin, branch, claim_number, occurrence, authorization_id, payment_type,
			principal, correction, currency, converted_principal, converted_correction, target_currency,
			rate, beneficiary, business_date, operator_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, key.InsuranceType, key.Origin, key.Branch, key.Number, entry.Occurrence, entry.AuthorizationID, entry.PaymentType,
		entry.Principal, entry.Correction, entry.Currency, entry.ConvertedPrincipal, entry.ConvertedCorrection, entry.TargetCurrency,
		entry.Rate, entry.Beneficiary, entry.BusinessDate, entry.OperatorID, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("History occurrence %d already exists for claim %s", entry.Occurrence, key), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record history entry", err)
	}
	return nil
}

// RecordAccompaniment appends an audit trail entry inside tx.
func (d Datasource) RecordAccompaniment(ctx context.Context, tx *sql.Tx, entry *model.AccompanimentEntry) error {
	key := entry.ClaimKey
	_, err := tx.ExecContext(ctx, `
		INSERT INTO claimpay.claim_accompaniments (
			insurance_type, origin, branch, claim_number, event_code, occurrence, authorization_id,
			operator_id, business_date, moved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, key.InsuranceType, key.Origin, key.Branch, key.Number, entry.EventCode, entry.Occurrence, entry.AuthorizationID,
		entry.OperatorID, entry.BusinessDate, entry.MovedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record accompaniment entry", err)
	}
	return nil
}
