package android

import (
	"sort"
	"time"
)

type (
	Thread struct {
		ID   uint64 `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	}

	Duration struct {
		Secs  uint64 `json:"secs,omitempty"`
		Nanos uint64 `json:"nanos,omitempty"`
	}

	EventMonotonic struct {
		Wall Duration `json:"wall,omitempty"`
		CPU  Duration `json:"cpu,omitempty"`
	}

	EventTime struct {
		Global    Duration       `json:"global,omitempty"`
		Monotonic EventMonotonic `json:"Monotonic,omitempty"`
	}

	Action string

	Event struct {
		Action   Action    `json:"action,omitempty"`
		ThreadID uint64    `json:"thread_id,omitempty"`
		MethodID uint64    `json:"method_id,omitempty"`
		Time     EventTime `json:"time,omitempty"`
	}

	Clock string

	// Trace is a decoded Android method trace.
	Trace struct {
		Clock     Clock    `json:"clock"`
		Events    []Event  `json:"events,omitempty"`
		Methods   []Method `json:"methods,omitempty"`
		StartTime uint64   `json:"start_time,omitempty"`
		Threads   []Thread `json:"threads,omitempty"`
	}
)

const (
	EnterAction  Action = "Enter"
	ExitAction   Action = "Exit"
	UnwindAction Action = "Unwind"

	DualClock   Clock = "Dual"
	CPUClock    Clock = "Cpu"
	WallClock   Clock = "Wall"
	GlobalClock Clock = "Global"

	mainThread = "main"
)

func (d Duration) nanoseconds() uint64 {
	return d.Secs*uint64(time.Second) + d.Nanos
}

// toMicroseconds truncates to the 32 bits used by the trace file format.
func toMicroseconds(ns int64) int32 {
	return int32(ns / int64(time.Microsecond))
}

// Timestamps returns the thread and global times of an event, in
// microseconds. Thread time is the thread CPU time. Global time is the wall
// clock, relative to the start of the trace for a global clock. A CPU clock
// records no wall time, the CPU time is the only timeline then.
func (t Trace) Timestamps(et EventTime) (threadTime, globalTime int32) {
	threadTime = toMicroseconds(int64(et.Monotonic.CPU.nanoseconds()))
	switch t.Clock {
	case GlobalClock:
		globalTime = toMicroseconds(int64(et.Global.nanoseconds()) - int64(t.StartTime))
	case CPUClock:
		globalTime = threadTime
	default:
		globalTime = toMicroseconds(int64(et.Monotonic.Wall.nanoseconds()))
	}
	return threadTime, globalTime
}

// ThreadNames maps thread ids to their names.
func (t Trace) ThreadNames() map[uint64]string {
	names := make(map[uint64]string, len(t.Threads))
	for _, thread := range t.Threads {
		names[thread.ID] = thread.Name
	}
	return names
}

func (t Trace) MainThreadID() uint64 {
	for _, thread := range t.Threads {
		if thread.Name == mainThread {
			return thread.ID
		}
	}
	return 0
}

// ThreadIDs returns the ids of the threads with at least one event, sorted.
func (t Trace) ThreadIDs() []uint64 {
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, e := range t.Events {
		if _, ok := seen[e.ThreadID]; ok {
			continue
		}
		seen[e.ThreadID] = struct{}{}
		ids = append(ids, e.ThreadID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
