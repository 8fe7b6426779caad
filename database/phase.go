package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	"github.com/jerry-enebeli/claimpay/model"
)

// GetOpenPhase returns the open phase for the protocol, phase code and event code, locking
// the row for the rest of tx. It returns nil, nil when no phase is open.
func (d Datasource) GetOpenPhase(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, phaseCode, eventCode int) (*model.Phase, error) {
	phase := &model.Phase{Protocol: protocol, PhaseCode: phaseCode, EventCode: eventCode}
	var closedBy sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT phase_id, opened_at, closed_at, opened_by, closed_by
		FROM claimpay.claim_phases
		WHERE protocol_source = $1 AND protocol_sequence = $2 AND protocol_check_digit = $3
		  AND phase_code = $4 AND event_code = $5 AND closed_at = $6
		FOR UPDATE
	`, protocol.Source, protocol.Sequence, protocol.CheckDigit, phaseCode, eventCode, model.PhaseOpenSentinel).
		Scan(&phase.PhaseID, &phase.OpenedAt, &phase.ClosedAt, &phase.OpenedBy, &closedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve open phase", err)
	}
	phase.ClosedBy = closedBy.String
	return phase, nil
}

// OpenPhase inserts phase as open. PhaseID is generated when empty and ClosedAt is forced
// to the open sentinel.
func (d Datasource) OpenPhase(ctx context.Context, tx *sql.Tx, phase *model.Phase) error {
	if phase.PhaseID == "" {
		phase.PhaseID = model.GenerateUUIDWithSuffix("phs")
	}
	phase.ClosedAt = model.PhaseOpenSentinel

	p := phase.Protocol
	_, err := tx.ExecContext(ctx, `
		INSERT INTO claimpay.claim_phases (
			phase_id, protocol_source, protocol_sequence, protocol_check_digit, phase_code, event_code,
			opened_at, closed_at, opened_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, phase.PhaseID, p.Source, p.Sequence, p.CheckDigit, phase.PhaseCode, phase.EventCode,
		phase.OpenedAt, phase.ClosedAt, phase.OpenedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Phase %d is already open for protocol %s", phase.PhaseCode, p), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to open phase", err)
	}
	return nil
}

// ClosePhase sets the closing date of an open phase.
func (d Datasource) ClosePhase(ctx context.Context, tx *sql.Tx, phase *model.Phase, closedAt time.Time, closedBy string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE claimpay.claim_phases
		SET closed_at = $2, closed_by = $3
		WHERE phase_id = $1 AND closed_at = $4
	`, phase.PhaseID, closedAt, closedBy, model.PhaseOpenSentinel)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to close phase", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Phase '%s' is not open", phase.PhaseID), nil)
	}

	phase.ClosedAt = closedAt
	phase.ClosedBy = closedBy
	return nil
}

// GetPhaseEventRules returns every rule configured for eventCode, ordered by rule id.
// Effective-date filtering is left to the caller.
func (d Datasource) GetPhaseEventRules(ctx context.Context, eventCode int) ([]model.PhaseEventRule, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT rule_id, event_code, phase_code, action, effective_from, effective_to
		FROM claimpay.phase_event_rules
		WHERE event_code = $1
		ORDER BY rule_id
	`, eventCode)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve phase event rules", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var rules []model.PhaseEventRule
	for rows.Next() {
		var rule model.PhaseEventRule
		var action string
		var effectiveTo sql.NullTime
		if err := rows.Scan(&rule.RuleID, &rule.EventCode, &rule.PhaseCode, &action, &rule.EffectiveFrom, &effectiveTo); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan phase event rule", err)
		}
		rule.Action = model.PhaseAction(action)
		if effectiveTo.Valid {
			rule.EffectiveTo = effectiveTo.Time
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate phase event rules", err)
	}

	return rules, nil
}
