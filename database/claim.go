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

	"go.opentelemetry.io/otel"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	"github.com/jerry-enebeli/claimpay/model"
)

// GetClaim retrieves a claim by its composite key.
// Returns a NOT_FOUND APIError when no claim matches.
func (d Datasource) GetClaim(ctx context.Context, key model.ClaimKey) (*model.Claim, error) {
	ctx, span := otel.Tracer("claimpay.database").Start(ctx, "Fetching claim from db")
	defer span.End()

	claim := &model.Claim{Key: key}
	row := d.Conn.QueryRowContext(ctx, `
		SELECT protocol_source, protocol_sequence, protocol_check_digit, reserve, amount_paid,
		       occurrence_count, policy_type, insured_type, product_code, contract_number, updated_at
		FROM claimpay.claims
		WHERE insurance_type = $1 AND origin = $2 AND branch = $3 AND claim_number = $4
	`, key.InsuranceType, key.Origin, key.Branch, key.Number)

	err := row.Scan(
		&claim.Protocol.Source, &claim.Protocol.Sequence, &claim.Protocol.CheckDigit,
		&claim.Reserve, &claim.AmountPaid, &claim.OccurrenceCount, &claim.PolicyType,
		&claim.InsuredType, &claim.ProductCode, &claim.ContractNumber, &claim.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Claim %s not found", key), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve claim", err)
	}

	return claim, nil
}

// UpdateClaimTotals writes the new paid amount and occurrence count of a claim inside tx.
// The update only applies while the row still carries expectedOccurrence and the new paid
// amount fits the reserve. Otherwise a CONFLICT APIError is returned and nothing changes.
func (d Datasource) UpdateClaimTotals(ctx context.Context, tx *sql.Tx, updated *model.Claim, expectedOccurrence int) error {
	key := updated.Key
	result, err := tx.ExecContext(ctx, `
		UPDATE claimpay.claims
		SET amount_paid = $5, occurrence_count = $6, updated_at = $7
		WHERE insurance_type = $1 AND origin = $2 AND branch = $3 AND claim_number = $4
		  AND occurrence_count = $8 AND $5 <= reserve
	`, key.InsuranceType, key.Origin, key.Branch, key.Number,
		updated.AmountPaid, updated.OccurrenceCount, updated.UpdatedAt, expectedOccurrence)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update claim", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: claim '%s' was modified by another transaction or its reserve is exhausted", key), nil)
	}

	return nil
}
