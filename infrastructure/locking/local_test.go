package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assessment-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesBlock(t *testing.T) {
	locker := NewLocalLocker(0)
	block := valueobjects.MustBlockID(3)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.LockBlock(context.Background(), block)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLockerIndependentBlocks(t *testing.T) {
	locker := NewLocalLocker(0)
	releaseA, err := locker.LockBlock(context.Background(), valueobjects.MustBlockID(1))
	require.NoError(t, err)
	defer releaseA(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := locker.LockBlock(ctx, valueobjects.MustBlockID(2))
	require.NoError(t, err)
	require.NoError(t, releaseB(context.Background()))
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker(0)
	block := valueobjects.MustBlockID(1)
	release, err := locker.LockBlock(context.Background(), block)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.LockBlock(ctx, block)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// double release is harmless
	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()))

	again, err := locker.LockBlock(context.Background(), block)
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestLocalLockerGivesUpAfterTimeout(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	block := valueobjects.MustBlockID(2)
	release, err := locker.LockBlock(context.Background(), block)
	require.NoError(t, err)

	start := time.Now()
	_, err = locker.LockBlock(context.Background(), block)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, release(context.Background()))
	again, err := locker.LockBlock(context.Background(), block)
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}
