package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrHandlerNotFound is returned for unregistered query types
var ErrHandlerNotFound = errors.New("query handler not found")

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus() *QueryBus {
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}

	return handler.Handle(ctx, query)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// CoalescingMiddleware collapses concurrent identical queries into one
// handler call. Results are never kept after the call returns.
type CoalescingMiddleware struct {
	group singleflight.Group
}

// NewCoalescingMiddleware creates a new coalescing middleware
func NewCoalescingMiddleware() *CoalescingMiddleware {
	return &CoalescingMiddleware{}
}

// Wrap wraps a query handler with request coalescing. The shared call runs
// detached from any one caller's cancellation; each caller still stops
// waiting when its own context ends.
func (m *CoalescingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		ch := m.group.DoChan(m.key(query), func() (interface{}, error) {
			return next.Handle(shared, query)
		})
		select {
		case res := <-ch:
			return res.Val, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func (m *CoalescingMiddleware) key(query Query) string {
	return fmt.Sprintf("%T:%+v", query, query)
}
