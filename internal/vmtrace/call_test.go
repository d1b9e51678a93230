package vmtrace

import (
	"testing"

	"github.com/getsentry/vmtrace/internal/testutil"
)

func TestCallTimes(t *testing.T) {
	r := replay(t,
		enter(1, 0, 100),
		enter(2, 10, 120),
		exit(2, 30, 170),
		enter(3, 40, 180),
		exit(3, 45, 200),
		exit(1, 50, 260),
		enter(4, 60, 300),
	)
	calls := r.TopLevelCalls()
	root := calls[0]

	tests := []struct {
		name      string
		call      *Call
		clock     ClockDomain
		inclusive int64
		exclusive int64
		ok        bool
	}{
		{name: "thread time of caller", call: root, clock: ThreadClock, inclusive: 50, exclusive: 25, ok: true},
		{name: "global time of caller", call: root, clock: GlobalClock, inclusive: 160, exclusive: 90, ok: true},
		{name: "thread time of leaf", call: root.Children()[0], clock: ThreadClock, inclusive: 20, exclusive: 20, ok: true},
		{name: "incomplete call", call: calls[1], clock: GlobalClock, ok: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			inclusive, ok := test.call.InclusiveTime(test.clock)
			if ok != test.ok || inclusive != test.inclusive {
				t.Fatalf("inclusive time: expected (%d, %v), got (%d, %v)", test.inclusive, test.ok, inclusive, ok)
			}
			exclusive, ok := test.call.ExclusiveTime(test.clock)
			if ok != test.ok || exclusive != test.exclusive {
				t.Fatalf("exclusive time: expected (%d, %v), got (%d, %v)", test.exclusive, test.ok, exclusive, ok)
			}
		})
	}
}

func TestExclusiveTimeWithIncompleteCallee(t *testing.T) {
	r := replay(t,
		enter(1, 0, 0),
		exit(1, 10, 10),
		exit(2, 20, 20),
	)
	if _, ok := r.TopLevelCalls()[0].ExclusiveTime(ThreadClock); ok {
		t.Fatal("synthetic ancestor should not have an exclusive time")
	}
}

func TestWalk(t *testing.T) {
	r := replay(t,
		enter(1, 0, 0),
		enter(2, 1, 1),
		enter(3, 2, 2),
		exit(3, 3, 3),
		exit(2, 4, 4),
		enter(4, 5, 5),
		exit(4, 6, 6),
		exit(1, 7, 7),
	)
	root := r.TopLevelCalls()[0]

	var visited []uint64
	root.Walk(func(c *Call) bool {
		visited = append(visited, c.MethodID())
		return true
	})
	if diff := testutil.Diff([]uint64{1, 2, 3, 4}, visited); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	visited = nil
	root.Walk(func(c *Call) bool {
		visited = append(visited, c.MethodID())
		return c.MethodID() != 2
	})
	if diff := testutil.Diff([]uint64{1, 2, 4}, visited); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestFormat(t *testing.T) {
	r := replay(t,
		enter(0x1, 0, 0),
		enter(0x2, 5, 10),
		exit(0x2, 15, 30),
		exit(0x1, 20, 40),
		exit(0x3, 25, 50),
	)
	root := r.TopLevelCalls()[0]

	want := " -> 0x3\n" +
		"   -> 0x1 [thread: 20, global: 40]\n" +
		"     -> 0x2 [thread: 10, global: 20]\n"
	if got := root.Format(nil); got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}

	names := map[uint64]string{1: "main", 2: "run", 3: "loop"}
	got := root.Format(func(id uint64) string {
		return names[id]
	})
	want = " -> loop\n" +
		"   -> main [thread: 20, global: 40]\n" +
		"     -> run [thread: 10, global: 20]\n"
	if got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBuildIsOneShot(t *testing.T) {
	b := newCallBuilder(1)
	b.setEntry(1, 2)
	child := newCallBuilder(2)
	b.addCallee(child)

	first := b.build(0)
	second := b.build(3)
	if first != second {
		t.Fatal("expected build to return the same call")
	}
	if second.StackDepth() != 0 || second.Children()[0].StackDepth() != 1 {
		t.Fatal("depths should be assigned by the first build")
	}
}
