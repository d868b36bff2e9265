// Package locking serializes reconciles of a block within one process.
package locking

import (
	"context"
	"sync"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/valueobjects"
)

// NoopLocker never blocks. Concurrent reconciles of a block may interleave
// but each still writes a self-consistent aggregate.
type NoopLocker struct{}

// LockBlock implements ports.BlockLocker
func (NoopLocker) LockBlock(ctx context.Context, blockID valueobjects.BlockID) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// LocalLocker holds one channel mutex per block
type LocalLocker struct {
	mu      sync.Mutex
	locks   map[int]chan struct{}
	timeout time.Duration
}

var (
	_ ports.BlockLocker = NoopLocker{}
	_ ports.BlockLocker = (*LocalLocker)(nil)
)

// NewLocalLocker creates an in-process block locker. LockBlock gives up
// after timeout; zero waits as long as the caller's context allows.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{locks: make(map[int]chan struct{}), timeout: timeout}
}

func (l *LocalLocker) slot(blockID valueobjects.BlockID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[blockID.Number()]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[blockID.Number()] = ch
	}
	return ch
}

// LockBlock waits for the block's slot, the timeout, or for ctx to end
func (l *LocalLocker) LockBlock(ctx context.Context, blockID valueobjects.BlockID) (func(context.Context) error, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ch := l.slot(blockID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
