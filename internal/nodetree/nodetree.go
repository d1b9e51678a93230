package nodetree

import (
	"hash/fnv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/vmtrace/internal/frame"
	"github.com/getsentry/vmtrace/internal/vmtrace"
)

type (
	// Node is a call rendered with its resolved frame. Times are in
	// nanoseconds, StartNS, EndNS and DurationNS use the global clock.
	Node struct {
		Complete         bool        `json:"complete"`
		Depth            int         `json:"depth"`
		DurationNS       uint64      `json:"duration_ns"`
		EndNS            uint64      `json:"end_ns"`
		Fingerprint      uint64      `json:"fingerprint"`
		Frame            frame.Frame `json:"frame"`
		IsApplication    bool        `json:"is_application"`
		SelfTimeNS       uint64      `json:"self_time_ns"`
		StartNS          uint64      `json:"start_ns"`
		ThreadDurationNS uint64      `json:"thread_duration_ns"`
		Children         []*Node     `json:"children,omitempty"`
	}

	CallTreeFunction struct {
		Fingerprint   uint32   `json:"fingerprint"`
		Function      string   `json:"function"`
		Package       string   `json:"package"`
		InApp         bool     `json:"in_app"`
		SelfTimesNS   []uint64 `json:"self_times_ns"`
		SumSelfTimeNS uint64   `json:"-"`
	}
)

func microsecondsToNS(us int32) uint64 {
	if us < 0 {
		return 0
	}
	return uint64(us) * uint64(time.Microsecond)
}

func durationToNS(us int64) uint64 {
	if us < 0 {
		return 0
	}
	return uint64(us) * uint64(time.Microsecond)
}

// FromCalls renders a forest of calls. Calls without an exit end at the
// latest timestamp of the forest and calls without an entry start with their
// first callee.
func FromCalls(calls []*vmtrace.Call, resolve func(methodID uint64) frame.Frame) []*Node {
	var endNS uint64
	for _, c := range calls {
		c.Walk(func(c *vmtrace.Call) bool {
			if ts, ok := c.Exit(); ok && microsecondsToNS(ts.Global) > endNS {
				endNS = microsecondsToNS(ts.Global)
			}
			if ts, ok := c.Entry(); ok && microsecondsToNS(ts.Global) > endNS {
				endNS = microsecondsToNS(ts.Global)
			}
			return true
		})
	}
	nodes := make([]*Node, 0, len(calls))
	for _, c := range calls {
		nodes = append(nodes, fromCall(c, resolve, nil, endNS))
	}
	return nodes
}

func fromCall(c *vmtrace.Call, resolve func(uint64) frame.Frame, stack []frame.Frame, endNS uint64) *Node {
	f := resolve(c.MethodID())
	stack = append(stack[:len(stack):len(stack)], f)
	n := &Node{
		Complete:      c.Complete(),
		Depth:         c.StackDepth(),
		Fingerprint:   generateFingerprint(stack),
		Frame:         f,
		IsApplication: f.IsApplicationFrame(),
	}
	for _, child := range c.Children() {
		n.Children = append(n.Children, fromCall(child, resolve, stack, endNS))
	}

	if ts, ok := c.Entry(); ok {
		n.StartNS = microsecondsToNS(ts.Global)
	} else if len(n.Children) > 0 {
		n.StartNS = n.Children[0].StartNS
	}
	if ts, ok := c.Exit(); ok {
		n.EndNS = microsecondsToNS(ts.Global)
	} else {
		n.EndNS = endNS
	}
	if n.EndNS > n.StartNS {
		n.DurationNS = n.EndNS - n.StartNS
	} else if n.EndNS < n.StartNS {
		// Timestamps are 32 bits of microseconds and wrap after about
		// 35 minutes.
		log.Warn().
			Uint64("method_id", c.MethodID()).
			Uint64("start_ns", n.StartNS).
			Uint64("end_ns", n.EndNS).
			Msg("call ends before it starts, timestamp overflow")
	}
	if d, ok := c.InclusiveTime(vmtrace.ThreadClock); ok {
		n.ThreadDurationNS = durationToNS(d)
	}
	if d, ok := c.ExclusiveTime(vmtrace.GlobalClock); ok {
		n.SelfTimeNS = durationToNS(d)
	} else {
		n.SelfTimeNS = n.DurationNS
		for _, child := range n.Children {
			if child.DurationNS > n.SelfTimeNS {
				n.SelfTimeNS = 0
				break
			}
			n.SelfTimeNS -= child.DurationNS
		}
	}
	return n
}

func generateFingerprint(stack []frame.Frame) uint64 {
	h := fnv.New64()
	for _, f := range stack {
		f.WriteToHash(h)
	}
	return h.Sum64()
}

// CollectFunctions aggregates the self time of every function of the tree.
// Functions without self time are skipped.
func (n *Node) CollectFunctions(results map[uint32]CallTreeFunction) {
	for _, child := range n.Children {
		child.CollectFunctions(results)
	}
	if n.SelfTimeNS == 0 {
		return
	}
	fingerprint := n.Frame.Fingerprint()
	function, exists := results[fingerprint]
	if !exists {
		function = CallTreeFunction{
			Fingerprint: fingerprint,
			Function:    n.Frame.Function,
			Package:     n.Frame.PackageBaseName(),
			InApp:       n.IsApplication,
		}
	}
	function.SelfTimesNS = append(function.SelfTimesNS, n.SelfTimeNS)
	function.SumSelfTimeNS += n.SelfTimeNS
	results[fingerprint] = function
}

func (n Node) Collapse() []*Node {
	// always collapse the children first, since pruning may reduce
	// the number of children
	children := make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		children = append(children, child.Collapse()...)
	}
	n.Children = children

	// If the only child runs for the entirety of the parent,
	// we want to collapse them by taking the inner most application frame.
	// If neither are application frames, we take the inner most frame
	if len(n.Children) == 1 {
		child := n.Children[0]
		if n.StartNS == child.StartNS && n.DurationNS == child.DurationNS {
			if n.IsApplication {
				if child.IsApplication {
					n = *child
				} else {
					n.Children = child.Children
				}
			} else {
				n = *child
			}
		}
	}

	return []*Node{&n}
}
