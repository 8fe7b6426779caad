package claimpay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	redlock "github.com/jerry-enebeli/claimpay/internal/lock"
	"github.com/jerry-enebeli/claimpay/model"
)

// LocateClaim loads the claim and the current business date. A missing claim or calendar
// entry is reported as a *NotFoundError; any other error is an infrastructure fault.
func (c *ClaimPay) LocateClaim(ctx context.Context, key model.ClaimKey) (*model.Claim, time.Time, error) {
	ctx, span := tracer.Start(ctx, "Locating claim")
	defer span.End()

	claim, err := c.datasource.GetClaim(ctx, key)
	if err != nil {
		span.RecordError(err)
		if apierror.HasCode(err, apierror.ErrNotFound) {
			return nil, time.Time{}, &NotFoundError{Resource: "claim", Key: key.String(), Err: err}
		}
		return nil, time.Time{}, err
	}

	businessDate, err := c.datasource.GetBusinessDate(ctx)
	if err != nil {
		span.RecordError(err)
		if apierror.HasCode(err, apierror.ErrNotFound) {
			return nil, time.Time{}, &NotFoundError{Resource: "business date", Key: "claims", Err: err}
		}
		return nil, time.Time{}, err
	}

	return claim, businessDate, nil
}

// claimLock is a claim lock held by one authorization. The zero value holds nothing.
type claimLock struct {
	locker *redlock.Locker
	ttl    time.Duration
}

// refresh restarts the lock TTL so a slow partner call cannot eat into the time left for
// the transactional steps. Fails with redlock.ErrLockLost when the lock already expired.
func (l claimLock) refresh(ctx context.Context) error {
	if l.locker == nil {
		return nil
	}
	return l.locker.ExtendLock(ctx, l.ttl)
}

// lockClaim serializes authorizations of one claim when claim locks are configured.
// The returned release func is safe to call when no lock was taken.
func (c *ClaimPay) lockClaim(ctx context.Context, key model.ClaimKey, owner string) (claimLock, func(), error) {
	if c.locks == nil {
		return claimLock{}, func() {}, nil
	}

	locker, err := c.locks.Acquire(ctx, key.String(), owner)
	if err != nil {
		return claimLock{}, func() {}, err
	}

	release := func() {
		if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logrus.WithFields(logrus.Fields{
				"claim_key":        key.String(),
				"authorization_id": owner,
			}).Warnf("failed to release claim lock: %v", err)
		}
	}
	return claimLock{locker: locker, ttl: c.locks.TTL()}, release, nil
}
