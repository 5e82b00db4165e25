// Package operation guards long running rig operations so only one runs at a time.
package operation

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrOperationRunning is returned by TryNew while another operation holds the manager.
var ErrOperationRunning = errors.New("another operation is already running")

// SingleOperationManager ensures only 1 operation is happening a time.
// An operation can be nested, so if there is already an operation in progress,
// it can have sub-operations without an issue.
type SingleOperationManager struct {
	mu        sync.Mutex
	currentOp *anOp
}

type somCtxKey byte

const somCtxKeySingleOp = somCtxKey(iota)

type anOp struct {
	cancelFunc context.CancelFunc
}

// TryNew starts an operation unless one is already running. The returned
// function must be called when the operation is done.
func (sm *SingleOperationManager) TryNew(ctx context.Context) (context.Context, func(), error) {
	// handle nested ops
	if ctx.Value(somCtxKeySingleOp) != nil {
		return ctx, func() {}, nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.currentOp != nil {
		return nil, nil, ErrOperationRunning
	}

	theOp := &anOp{}
	ctx = context.WithValue(ctx, somCtxKeySingleOp, theOp)
	ctx, theOp.cancelFunc = context.WithCancel(ctx)
	sm.currentOp = theOp

	return ctx, func() {
		theOp.cancelFunc()
		sm.mu.Lock()
		if theOp == sm.currentOp {
			sm.currentOp = nil
		}
		sm.mu.Unlock()
	}, nil
}

// CancelRunning cancels the current operation unless it's mine.
func (sm *SingleOperationManager) CancelRunning(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	op := sm.currentOp
	if op == nil || ctx.Value(somCtxKeySingleOp) == op {
		return
	}
	op.cancelFunc()
}

// OpRunning returns if there is a current operation.
func (sm *SingleOperationManager) OpRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.currentOp != nil
}
