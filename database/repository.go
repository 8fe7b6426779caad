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
	"time"

	"github.com/jerry-enebeli/claimpay/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	claim      // Interface for claim aggregate operations
	calendar   // Interface for business calendar lookups
	history    // Interface for history and accompaniment ledgers
	phase      // Interface for workflow phase operations
	phaseRules // Interface for phase event rule lookups
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Ping(ctx context.Context) error
}

// claim defines methods for reading and updating claims.
type claim interface {
	GetClaim(ctx context.Context, key model.ClaimKey) (*model.Claim, error)                                // Retrieves a claim by its composite key
	UpdateClaimTotals(ctx context.Context, tx *sql.Tx, updated *model.Claim, expectedOccurrence int) error // Writes paid amount and occurrence count, guarded by the occurrence read earlier
}

// calendar defines the business date lookup.
type calendar interface {
	GetBusinessDate(ctx context.Context) (time.Time, error)
}

// history defines the append-only ledgers written by an authorization.
type history interface {
	RecordHistory(ctx context.Context, tx *sql.Tx, entry *model.HistoryEntry) error             // Appends a payment history entry
	RecordAccompaniment(ctx context.Context, tx *sql.Tx, entry *model.AccompanimentEntry) error // Appends an audit trail entry
}

// phase defines methods for workflow phases.
type phase interface {
	GetOpenPhase(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, phaseCode, eventCode int) (*model.Phase, error)
	OpenPhase(ctx context.Context, tx *sql.Tx, phase *model.Phase) error
	ClosePhase(ctx context.Context, tx *sql.Tx, phase *model.Phase, closedAt time.Time, closedBy string) error
}

type phaseRules interface {
	GetPhaseEventRules(ctx context.Context, eventCode int) ([]model.PhaseEventRule, error)
}
