// Package mocks provides test doubles for the database package.
package mocks

import (
	"context"
	"sync/atomic"
)

// TxManager runs fn directly without a transaction. It counts calls so tests
// can assert a use case opened one.
type TxManager struct {
	calls atomic.Int64
}

// WithTx implements database.TxManager.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls.Add(1)
	return fn(ctx)
}

// Calls returns how many times WithTx was invoked.
func (m *TxManager) Calls() int {
	return int(m.calls.Load())
}
