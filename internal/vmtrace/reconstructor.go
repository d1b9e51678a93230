// Package vmtrace rebuilds per-thread call trees from the method entry and
// exit events of a virtual machine method trace.
package vmtrace

import (
	"fmt"

	"github.com/getsentry/vmtrace/internal/errorutil"
)

// Reconstructor rebuilds the calls of a single thread. Events must be added in
// the order they were recorded. A Reconstructor is not safe for concurrent
// use, distinct threads use distinct reconstructors.
type Reconstructor struct {
	// calls currently assumed to have no caller
	topLevel []*callBuilder
	// calls open as of the last event, innermost last
	stack []*callBuilder

	topLevelCalls []*Call
	err           error
}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// AddTraceAction consumes the next event of the thread.
//
// An exit that does not match the innermost open call returns a
// *StackMismatchError. The reconstructor can't be used after that and every
// following call returns an error matching ErrReconstructorFailed.
func (r *Reconstructor) AddTraceAction(methodID uint64, action TraceAction, threadTime, globalTime int32) error {
	if r.err != nil {
		return &failedError{cause: r.err}
	}
	switch action {
	case MethodEnter:
		r.enterMethod(methodID, threadTime, globalTime)
		return nil
	case MethodExit, MethodUnwind:
		if err := r.exitMethod(methodID, threadTime, globalTime); err != nil {
			r.err = err
			return err
		}
		return nil
	}
	return fmt.Errorf("vmtrace: %w: invalid method action: %v", errorutil.ErrDataIntegrity, action)
}

func (r *Reconstructor) enterMethod(methodID uint64, threadTime, globalTime int32) {
	b := newCallBuilder(methodID)
	b.setEntry(threadTime, globalTime)

	if len(r.stack) == 0 {
		r.topLevel = append(r.topLevel, b)
	} else {
		r.stack[len(r.stack)-1].addCallee(b)
	}
	r.stack = append(r.stack, b)
}

func (r *Reconstructor) exitMethod(methodID uint64, threadTime, globalTime int32) error {
	if len(r.stack) > 0 {
		i := len(r.stack) - 1
		b := r.stack[i]
		r.stack[i] = nil
		r.stack = r.stack[:i]
		if b.methodID != methodID {
			return &StackMismatchError{Popped: b.methodID, Requested: methodID}
		}
		b.setExit(threadTime, globalTime)
		return nil
	}

	// The method was entered before tracing started: it is the caller of
	// every call seen so far at the top level.
	b := newCallBuilder(methodID)
	b.setExit(threadTime, globalTime)
	b.callees = r.topLevel
	r.topLevel = []*callBuilder{b}
	return nil
}

// TopLevelCalls finalizes the calls consumed so far. The result is computed
// once: later calls return the same slice, even if more events were added in
// between. The returned slice must not be modified.
func (r *Reconstructor) TopLevelCalls() []*Call {
	if r.topLevelCalls != nil {
		return r.topLevelCalls
	}

	// TODO: use thread and global times to detect context switches.
	calls := make([]*Call, 0, len(r.topLevel))
	for _, b := range r.topLevel {
		calls = append(calls, b.build(0))
	}
	r.topLevelCalls = calls
	return calls
}

// Err returns the error that made the reconstructor unusable, if any.
func (r *Reconstructor) Err() error {
	return r.err
}
