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

package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "test-key", "test-value")

	mock.ExpectSetNX("test-key", "test-value", 5*time.Second).SetVal(true)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "test-key", "test-value")

	mock.ExpectSetNX("test-key", "test-value", 5*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "lock for key test-key: lock is already held")
	assert.True(t, errors.Is(err, ErrLockHeld))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "test-key", "test-value")

	mock.ExpectSetNX("test-key", "test-value", 5*time.Second).SetErr(errors.New("connection refused"))

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "connection refused")
	assert.False(t, errors.Is(err, ErrLockHeld))
}

func TestLocker_Unlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "test-key", "test-value")

	mock.ExpectEval(unlockScript, []string{"test-key"}, "test-value").SetVal(int64(1))
	assert.NoError(t, locker.Unlock(context.Background()))

	mock.ExpectEval(unlockScript, []string{"test-key"}, "test-value").SetVal(int64(0))
	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "unlock failed, either lock expired or you're not the lock holder for key test-key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ExtendLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "test-key", "test-value")

	mock.ExpectEval(extendScript, []string{"test-key"}, "test-value", "5000").SetVal(int64(1))
	assert.NoError(t, locker.ExtendLock(context.Background(), 5*time.Second))

	mock.ExpectEval(extendScript, []string{"test-key"}, "test-value", "5000").SetVal(int64(0))
	err := locker.ExtendLock(context.Background(), 5*time.Second)
	assert.True(t, errors.Is(err, ErrLockLost))
	assert.False(t, errors.Is(err, ErrLockHeld))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLocks_ExtendRestoresTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locks := NewClaimLocks(client, time.Minute)
	ctx := context.Background()

	locker, err := locks.Acquire(ctx, "1-10-531-7", "auth_1")
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	assert.Equal(t, 10*time.Second, mr.TTL(locker.Key()))

	require.NoError(t, locker.ExtendLock(ctx, locks.TTL()))
	assert.Equal(t, time.Minute, mr.TTL(locker.Key()))

	mr.FastForward(2 * time.Minute)
	assert.True(t, errors.Is(locker.ExtendLock(ctx, locks.TTL()), ErrLockLost))
}

func TestClaimLocks_Acquire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locks := NewClaimLocks(client, time.Minute)
	ctx := context.Background()

	first, err := locks.Acquire(ctx, "1-10-531-7", "auth_1")
	require.NoError(t, err)
	assert.Equal(t, "claimpay:lock:claim:1-10-531-7", first.Key())

	_, err = locks.Acquire(ctx, "1-10-531-7", "auth_2")
	assert.True(t, errors.Is(err, ErrLockHeld))

	// other claims are independent
	other, err := locks.Acquire(ctx, "1-10-531-8", "auth_3")
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))

	require.NoError(t, first.Unlock(ctx))
	second, err := locks.Acquire(ctx, "1-10-531-7", "auth_2")
	require.NoError(t, err)
	assert.True(t, mr.TTL(second.Key()) > 0)
}
