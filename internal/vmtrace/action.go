package vmtrace

import (
	"fmt"

	"github.com/getsentry/vmtrace/internal/errorutil"
)

type TraceAction uint8

const (
	MethodEnter TraceAction = iota
	MethodExit
	// MethodUnwind is an exit caused by an exception unwinding the stack.
	MethodUnwind
)

func (a TraceAction) String() string {
	switch a {
	case MethodEnter:
		return "Enter"
	case MethodExit:
		return "Exit"
	case MethodUnwind:
		return "Unwind"
	}
	return fmt.Sprintf("TraceAction(%d)", uint8(a))
}

// ParseTraceAction maps the action names found in decoded traces.
func ParseTraceAction(s string) (TraceAction, error) {
	switch s {
	case "Enter":
		return MethodEnter, nil
	case "Exit":
		return MethodExit, nil
	case "Unwind":
		return MethodUnwind, nil
	}
	return 0, fmt.Errorf("vmtrace: %w: invalid method action: %q", errorutil.ErrDataIntegrity, s)
}
