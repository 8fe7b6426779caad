package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned when another owner holds the lock.
	ErrLockHeld = errors.New("lock is already held")
	// ErrLockLost is returned when a lock could not be extended because it expired or changed owner.
	ErrLockLost = errors.New("lock expired or held by another owner")
)

const (
	unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

type Locker struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

func (l *Locker) Key() string {
	return l.key
}

func (l *Locker) Lock(ctx context.Context, timeout time.Duration) error {
	success, err := l.client.SetNX(ctx, l.key, l.value, timeout).Result()
	if err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("lock for key %s: %w", l.key, ErrLockHeld)
	}
	return nil
}

func (l *Locker) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}

func (l *Locker) ExtendLock(ctx context.Context, extension time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, fmt.Sprintf("%d", extension.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lock extension for key %s: %w", l.key, ErrLockLost)
	}
	return nil
}

// ClaimLocks serializes authorizations per claim. The lock is taken before the claim is
// read and released after commit or rollback, closing the window between read and write.
type ClaimLocks struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewClaimLocks(client redis.UniversalClient, ttl time.Duration) *ClaimLocks {
	return &ClaimLocks{client: client, ttl: ttl}
}

// TTL is how long an acquired or extended lock lives.
func (c *ClaimLocks) TTL() time.Duration {
	return c.ttl
}

func claimLockKey(claimKey string) string {
	return "claimpay:lock:claim:" + claimKey
}

// Acquire takes the lock of claimKey for owner without waiting. Contention is reported
// as an error wrapping ErrLockHeld.
func (c *ClaimLocks) Acquire(ctx context.Context, claimKey, owner string) (*Locker, error) {
	l := NewLocker(c.client, claimLockKey(claimKey), owner)
	if err := l.Lock(ctx, c.ttl); err != nil {
		return nil, err
	}
	return l, nil
}
