package claimpay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	redlock "github.com/jerry-enebeli/claimpay/internal/lock"
	"github.com/jerry-enebeli/claimpay/internal/notification"
	"github.com/jerry-enebeli/claimpay/internal/partner"
	"github.com/jerry-enebeli/claimpay/model"
)

// AuthorizePayment runs the authorization pipeline for req.
//
// Validation, claim lookup and partner validation run first and reject without opening a
// transaction. The history entry, claim update, accompaniment and phase changes then run in one
// transaction on a context the caller can no longer cancel. Business results are returned as an
// Outcome; the error is reserved for infrastructure faults, including *RollbackFailure.
func (c *ClaimPay) AuthorizePayment(ctx context.Context, req *model.AuthorizationRequest) (*model.Outcome, error) {
	ctx, span := tracer.Start(ctx, "Authorizing payment", trace.WithAttributes(
		attribute.String("claim.key", req.ClaimKey.String()),
		attribute.Int("payment.type", req.PaymentType),
	))
	defer span.End()

	started := c.now()
	authorizationID := model.GenerateUUIDWithSuffix("auth")
	span.SetAttributes(attribute.String("authorization.id", authorizationID))
	tc := model.NewTransactionContext(authorizationID, req.ClaimKey, req.OperatorID)

	outcome, err := c.authorize(ctx, req, tc)
	if err != nil {
		span.RecordError(err)
		var rollbackErr *RollbackFailure
		if errors.As(err, &rollbackErr) {
			c.metrics.IncrementRollback(rollbackErr.Step.String())
			notification.NotifyError(err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("outcome", string(outcome.Status)))
	c.metrics.IncrementOutcome(string(outcome.Status))
	c.metrics.ObserveAuthorizationLatency(c.now().Sub(started))
	fields := logrus.Fields{
		"authorization_id": authorizationID,
		"claim_key":        req.ClaimKey.String(),
		"status":           outcome.Status,
	}
	if outcome.FailedStep != 0 {
		fields["failed_step"] = outcome.FailedStep.String()
	}
	logrus.WithFields(fields).Info("payment authorization finished")
	return outcome, nil
}

func (c *ClaimPay) authorize(ctx context.Context, req *model.AuthorizationRequest, tc model.TransactionContext) (*model.Outcome, error) {
	// 1
	if violations := ValidateRequest(req, nil); len(violations) > 0 {
		return c.rejected(req, tc, &ValidationError{Step: model.StepValidateRequest, Violations: violations}), nil
	}
	tc = tc.Pass(model.StepValidateRequest, c.now())

	lock, release, err := c.lockClaim(ctx, req.ClaimKey, tc.AuthorizationID)
	if err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return c.rejected(req, tc, &ValidationError{Step: model.StepLocateClaim, Violations: []model.Violation{{
				Code:    model.RuleConcurrentAuthorization,
				Message: "another authorization for this claim is in progress",
			}}}), nil
		}
		return nil, err
	}
	defer release()

	// 2
	claim, businessDate, err := c.LocateClaim(ctx, req.ClaimKey)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return c.rejected(req, tc, notFound), nil
		}
		return nil, err
	}
	tc = tc.WithBusinessDate(businessDate).Pass(model.StepLocateClaim, c.now())

	// 3
	if req.NeedsExternalValidation() {
		resp := c.validator.Validate(ctx, partner.NewValidationRequest(req, claim))
		if !resp.Success {
			return c.rejected(req, tc, &ExternalServiceError{Partner: resp.Partner, Code: resp.Code, Message: resp.Message}), nil
		}
		tc = tc.Pass(model.StepExternalValidation, c.now())
	} else {
		reason := "external validation not required"
		if req.BypassExternalValidation {
			reason = "external validation bypassed"
		}
		tc = tc.Skip(model.StepExternalValidation, c.now(), reason)
	}

	// 4
	if violations := ValidateRequest(req, claim); len(violations) > 0 {
		return c.rejected(req, tc, &ValidationError{Step: model.StepValidateBalance, Violations: violations}), nil
	}
	tc = tc.Pass(model.StepValidateBalance, c.now())

	// 5-8 must end in commit or rollback even if the caller goes away.
	txCtx := context.WithoutCancel(ctx)
	if err := lock.refresh(txCtx); err != nil {
		if errors.Is(err, redlock.ErrLockLost) {
			return c.rejected(req, tc, &ValidationError{Step: model.StepLocateClaim, Violations: []model.Violation{{
				Code:    model.RuleConcurrentAuthorization,
				Message: "claim lock expired before the payment could be recorded",
			}}}), nil
		}
		return nil, err
	}
	w := &authorizationWrites{ClaimPay: c, req: req, claim: claim, tc: tc}
	tc, err = c.coordinator.Execute(txCtx, tc, w.steps())
	if err != nil {
		var failure *TransactionFailure
		if errors.As(err, &failure) {
			c.metrics.IncrementRollback(failure.Step.String())
			outcome := c.rolledBack(req, tc, failure)
			c.notifyOutcome(ctx, outcome)
			return outcome, nil
		}
		return nil, err
	}

	outcome := &model.Outcome{
		Status:          model.OutcomeApproved,
		AuthorizationID: tc.AuthorizationID,
		ClaimKey:        req.ClaimKey,
		TransactionRef:  model.GenerateUUIDWithSuffix("txn"),
		Occurrence:      w.history.Occurrence,
		Principal:       req.Principal,
		Correction:      req.Correction,
		Currency:        w.history.Currency,
		Converted:       w.history.ConvertedPrincipal.Add(w.history.ConvertedCorrection),
		TargetCurrency:  w.history.TargetCurrency,
		Rate:            w.history.Rate,
		Steps:           tc.Steps(),
	}
	c.notifyOutcome(ctx, outcome)
	return outcome, nil
}

// authorizationWrites holds the transactional steps of one authorization and what they wrote.
type authorizationWrites struct {
	*ClaimPay
	req     *model.AuthorizationRequest
	claim   *model.Claim
	tc      model.TransactionContext
	history *model.HistoryEntry
}

func (w *authorizationWrites) steps() []TxStep {
	return []TxStep{
		{Step: model.StepAppendHistory, Run: w.appendHistory},
		{Step: model.StepUpdateClaim, Run: w.updateClaim},
		{Step: model.StepAppendAccompaniment, Run: w.appendAccompaniment},
		{Step: model.StepAdvancePhases, Run: w.advancePhases},
	}
}

func (w *authorizationWrites) currency() string {
	if w.req.Currency == "" {
		return w.targetCurrency
	}
	return w.req.Currency
}

func (w *authorizationWrites) appendHistory(ctx context.Context, tx *sql.Tx) error {
	from := w.currency()
	principal := w.converter.Convert(ctx, w.req.Principal, from, w.targetCurrency)
	if !principal.Success {
		return fmt.Errorf("currency conversion of principal failed: %w", principal.Err)
	}
	correction := w.converter.Convert(ctx, w.req.Correction, from, w.targetCurrency)
	if !correction.Success {
		return fmt.Errorf("currency conversion of correction failed: %w", correction.Err)
	}

	entry := &model.HistoryEntry{
		ClaimKey:            w.claim.Key,
		Occurrence:          w.claim.NextOccurrence(),
		AuthorizationID:     w.tc.AuthorizationID,
		PaymentType:         w.req.PaymentType,
		Principal:           w.req.Principal,
		Correction:          w.req.Correction,
		Currency:            from,
		ConvertedPrincipal:  principal.Converted,
		ConvertedCorrection: correction.Converted,
		TargetCurrency:      w.targetCurrency,
		Rate:                principal.Rate,
		Beneficiary:         w.req.Beneficiary,
		BusinessDate:        w.tc.BusinessDate,
		OperatorID:          w.req.OperatorID,
		CreatedAt:           w.now(),
	}
	if err := w.datasource.RecordHistory(ctx, tx, entry); err != nil {
		return err
	}
	w.history = entry
	return nil
}

func (w *authorizationWrites) updateClaim(ctx context.Context, tx *sql.Tx) error {
	updated, err := w.claim.WithPayment(w.req.Principal, w.now())
	if err != nil {
		return err
	}
	return w.datasource.UpdateClaimTotals(ctx, tx, &updated, w.claim.OccurrenceCount)
}

func (w *authorizationWrites) appendAccompaniment(ctx context.Context, tx *sql.Tx) error {
	return w.datasource.RecordAccompaniment(ctx, tx, &model.AccompanimentEntry{
		ClaimKey:        w.claim.Key,
		EventCode:       model.EventPaymentAuthorized,
		Occurrence:      w.claim.NextOccurrence(),
		AuthorizationID: w.tc.AuthorizationID,
		OperatorID:      w.req.OperatorID,
		BusinessDate:    w.tc.BusinessDate,
		MovedAt:         w.now(),
	})
}

func (w *authorizationWrites) advancePhases(ctx context.Context, tx *sql.Tx) error {
	_, err := w.phases.Advance(ctx, tx, w.claim.Protocol, model.EventPaymentAuthorized, w.tc.BusinessDate, w.req.OperatorID)
	return err
}

// rejected turns a pre-transaction failure into a Rejected outcome.
func (c *ClaimPay) rejected(req *model.AuthorizationRequest, tc model.TransactionContext, cause error) *model.Outcome {
	outcome := &model.Outcome{
		Status:          model.OutcomeRejected,
		AuthorizationID: tc.AuthorizationID,
		ClaimKey:        req.ClaimKey,
		Principal:       req.Principal,
		Correction:      req.Correction,
		Converted:       decimal.Zero,
		Rate:            decimal.Zero,
		Reason:          cause.Error(),
	}

	var (
		validationErr *ValidationError
		notFound      *NotFoundError
		external      *ExternalServiceError
	)
	switch {
	case errors.As(cause, &validationErr):
		outcome.FailedStep = validationErr.Step
		outcome.Violations = validationErr.Violations
	case errors.As(cause, &notFound):
		outcome.FailedStep = model.StepLocateClaim
		code := model.RuleClaimNotFound
		if notFound.Resource != "claim" {
			code = model.RuleBusinessDateNotFound
		}
		outcome.Violations = []model.Violation{{Code: code, Message: notFound.Error()}}
	case errors.As(cause, &external):
		outcome.FailedStep = model.StepExternalValidation
		outcome.Reason = external.Message
		if external.Unavailable() {
			outcome.Reason = fmt.Sprintf("%s unavailable: %s", external.Partner, external.Message)
		}
		outcome.Violations = []model.Violation{{
			Code:    model.RuleCode(external.Code),
			Field:   string(external.Partner),
			Message: external.Message,
		}}
	}

	outcome.Steps = tc.Fail(outcome.FailedStep, c.now(), cause.Error()).Steps()
	return outcome
}

// rolledBack turns a transaction failure into a RejectedRolledBack outcome.
func (c *ClaimPay) rolledBack(req *model.AuthorizationRequest, tc model.TransactionContext, failure *TransactionFailure) *model.Outcome {
	return &model.Outcome{
		Status:          model.OutcomeRejectedRolledBack,
		AuthorizationID: tc.AuthorizationID,
		ClaimKey:        req.ClaimKey,
		Principal:       req.Principal,
		Correction:      req.Correction,
		Converted:       decimal.Zero,
		Rate:            decimal.Zero,
		FailedStep:      failure.Step,
		Reason:          failure.Reason,
		Steps:           tc.Steps(),
	}
}
