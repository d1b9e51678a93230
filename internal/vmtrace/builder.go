package vmtrace

// callBuilder accumulates a call while its events are still being consumed.
type callBuilder struct {
	methodID uint64
	entry    Timestamp
	exit     Timestamp
	hasEntry bool
	hasExit  bool
	callees  []*callBuilder

	call *Call
}

func newCallBuilder(methodID uint64) *callBuilder {
	return &callBuilder{methodID: methodID}
}

func (b *callBuilder) setEntry(threadTime, globalTime int32) {
	b.entry = Timestamp{Thread: threadTime, Global: globalTime}
	b.hasEntry = true
}

func (b *callBuilder) setExit(threadTime, globalTime int32) {
	b.exit = Timestamp{Thread: threadTime, Global: globalTime}
	b.hasExit = true
}

func (b *callBuilder) addCallee(callee *callBuilder) {
	b.callees = append(b.callees, callee)
}

// build finalizes the builder and its callees, numbering depths from depth.
// It only runs once, later calls return the first result.
func (b *callBuilder) build(depth int) *Call {
	if b.call != nil {
		return b.call
	}
	c := &Call{
		methodID:   b.methodID,
		entry:      b.entry,
		exit:       b.exit,
		hasEntry:   b.hasEntry,
		hasExit:    b.hasExit,
		stackDepth: depth,
	}
	if len(b.callees) > 0 {
		c.children = make([]*Call, 0, len(b.callees))
		for _, callee := range b.callees {
			c.children = append(c.children, callee.build(depth+1))
		}
	}
	b.call = c
	b.callees = nil
	return c
}
