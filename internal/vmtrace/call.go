package vmtrace

import (
	"fmt"
	"strings"
)

type (
	// Timestamp is one instant measured in both time domains of a trace.
	Timestamp struct {
		Thread int32 `json:"thread"`
		Global int32 `json:"global"`
	}

	// Call is a finalized method invocation. It is never modified once built.
	Call struct {
		methodID   uint64
		entry      Timestamp
		exit       Timestamp
		hasEntry   bool
		hasExit    bool
		stackDepth int
		children   []*Call
	}

	ClockDomain int
)

const (
	ThreadClock ClockDomain = iota
	GlobalClock
)

func (c ClockDomain) String() string {
	switch c {
	case ThreadClock:
		return "thread"
	case GlobalClock:
		return "global"
	}
	return fmt.Sprintf("ClockDomain(%d)", int(c))
}

func (t Timestamp) in(clock ClockDomain) int32 {
	if clock == GlobalClock {
		return t.Global
	}
	return t.Thread
}

func (c *Call) MethodID() uint64 {
	return c.methodID
}

// Entry returns the entry timestamp. The second value is false for a
// synthetic ancestor, whose entry happened before recording started.
func (c *Call) Entry() (Timestamp, bool) {
	return c.entry, c.hasEntry
}

// Exit returns the exit timestamp. The second value is false when the trace
// ended before the call returned.
func (c *Call) Exit() (Timestamp, bool) {
	return c.exit, c.hasExit
}

func (c *Call) Complete() bool {
	return c.hasEntry && c.hasExit
}

func (c *Call) StackDepth() int {
	return c.stackDepth
}

// Children returns the callees in the order they were called. The returned
// slice is shared and must not be modified.
func (c *Call) Children() []*Call {
	return c.children
}

// InclusiveTime returns the time spent between entry and exit in the given
// clock domain.
func (c *Call) InclusiveTime(clock ClockDomain) (int64, bool) {
	if !c.Complete() {
		return 0, false
	}
	return int64(c.exit.in(clock)) - int64(c.entry.in(clock)), true
}

// ExclusiveTime returns the inclusive time minus the inclusive time of every
// direct callee. It is unknown as soon as one of those durations is unknown.
func (c *Call) ExclusiveTime(clock ClockDomain) (int64, bool) {
	total, ok := c.InclusiveTime(clock)
	if !ok {
		return 0, false
	}
	for _, child := range c.children {
		d, ok := child.InclusiveTime(clock)
		if !ok {
			return 0, false
		}
		total -= d
	}
	return total, true
}

// Walk visits c and its descendants depth-first, parents before children.
// Returning false from fn skips the descendants of the visited call.
func (c *Call) Walk(fn func(*Call) bool) {
	if !fn(c) {
		return
	}
	for _, child := range c.children {
		child.Walk(fn)
	}
}

// Format renders the call hierarchy, one call per line, indented by depth.
// A nil name function prints method ids in hexadecimal.
func (c *Call) Format(name func(methodID uint64) string) string {
	if name == nil {
		name = func(id uint64) string {
			return fmt.Sprintf("0x%x", id)
		}
	}
	var b strings.Builder
	c.Walk(func(call *Call) bool {
		b.WriteString(strings.Repeat(" ", call.stackDepth*2))
		b.WriteString(" -> ")
		b.WriteString(name(call.methodID))
		if d, ok := call.InclusiveTime(ThreadClock); ok {
			fmt.Fprintf(&b, " [thread: %d", d)
			d, _ = call.InclusiveTime(GlobalClock)
			fmt.Fprintf(&b, ", global: %d]", d)
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
