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

package claimpay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jerry-enebeli/claimpay/database"
	"github.com/jerry-enebeli/claimpay/model"
)

// TxStep is one write of the authorization transaction.
type TxStep struct {
	Step model.Step
	Run  func(ctx context.Context, tx *sql.Tx) error
}

// TransactionCoordinator runs a list of steps inside a single read-committed transaction.
// Either every step commits or none does.
type TransactionCoordinator struct {
	datasource database.IDataSource
	now        func() time.Time
}

func NewTransactionCoordinator(datasource database.IDataSource) *TransactionCoordinator {
	return &TransactionCoordinator{datasource: datasource, now: time.Now}
}

// Execute begins a transaction, runs steps in order and commits. The first step that returns an
// error or panics stops the run and the transaction is rolled back; the returned
// *TransactionFailure names that step. When the rollback itself fails a *RollbackFailure is
// returned instead. Commit failures are reported against model.StepCommit.
//
// ctx should not be cancellable by the caller once the first step has run; see context.WithoutCancel.
func (c *TransactionCoordinator) Execute(ctx context.Context, tc model.TransactionContext, steps []TxStep) (model.TransactionContext, error) {
	if len(steps) == 0 {
		return tc, errors.New("no transaction steps given")
	}

	tx, err := c.datasource.BeginTx(ctx)
	if err != nil {
		first := steps[0].Step
		reason := fmt.Sprintf("begin transaction: %v", err)
		tc = tc.Fail(first, c.now(), reason)
		return tc, &TransactionFailure{Step: first, Reason: reason, Err: err}
	}

	for _, s := range steps {
		if err := c.runStep(ctx, tx, s); err != nil {
			return c.rollback(tc.Fail(s.Step, c.now(), err.Error()), tx, s.Step, err)
		}
		tc = tc.Pass(s.Step, c.now())
	}

	if err := tx.Commit(); err != nil {
		return c.rollback(tc.Fail(model.StepCommit, c.now(), err.Error()), tx, model.StepCommit, err)
	}
	return tc.Pass(model.StepCommit, c.now()), nil
}

func (c *TransactionCoordinator) runStep(ctx context.Context, tx *sql.Tx, s TxStep) (err error) {
	ctx, span := tracer.Start(ctx, s.Step.String(), trace.WithAttributes(attribute.Int("step", int(s.Step))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", s.Step, r)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	return s.Run(ctx, tx)
}

func (c *TransactionCoordinator) rollback(tc model.TransactionContext, tx *sql.Tx, step model.Step, cause error) (model.TransactionContext, error) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logrus.WithFields(logrus.Fields{
			"authorization_id": tc.AuthorizationID,
			"claim_key":        tc.ClaimKey.String(),
			"step":             step.String(),
		}).Errorf("rollback failed: %v", err)
		return tc, &RollbackFailure{Step: step, Cause: cause, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"authorization_id": tc.AuthorizationID,
		"claim_key":        tc.ClaimKey.String(),
		"step":             step.String(),
	}).Warnf("transaction rolled back: %v", cause)

	tc = tc.RolledBack(step, c.now(), cause.Error())
	return tc, &TransactionFailure{Step: step, Reason: cause.Error(), Err: cause}
}
