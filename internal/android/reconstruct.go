package android

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/vmtrace/internal/vmtrace"
)

type (
	ThreadEvent struct {
		MethodID   uint64
		Action     vmtrace.TraceAction
		ThreadTime int32
		GlobalTime int32
	}

	// ThreadCallTree holds the calls reconstructed for one thread. When Err is
	// set the events of the thread could not be trusted and Calls is nil.
	ThreadCallTree struct {
		ThreadID uint64
		Name     string
		Calls    []*vmtrace.Call
		Err      error
	}
)

// EventsByThread decodes the events and splits them per thread, keeping the
// order they were recorded in.
func (t Trace) EventsByThread() (map[uint64][]ThreadEvent, error) {
	events := make(map[uint64][]ThreadEvent)
	for i, e := range t.Events {
		action, err := vmtrace.ParseTraceAction(string(e.Action))
		if err != nil {
			return nil, fmt.Errorf("android: event %d: %w", i, err)
		}
		threadTime, globalTime := t.Timestamps(e.Time)
		events[e.ThreadID] = append(events[e.ThreadID], ThreadEvent{
			MethodID:   e.MethodID,
			Action:     action,
			ThreadTime: threadTime,
			GlobalTime: globalTime,
		})
	}
	return events, nil
}

// ReconstructThread replays the events of a single thread.
func ReconstructThread(events []ThreadEvent) ([]*vmtrace.Call, error) {
	r := vmtrace.NewReconstructor()
	for _, e := range events {
		err := r.AddTraceAction(e.MethodID, e.Action, e.ThreadTime, e.GlobalTime)
		if err != nil {
			return nil, err
		}
	}
	return r.TopLevelCalls(), nil
}

// Reconstruct rebuilds the calls of every thread, running up to workers
// threads in parallel. A thread with inconsistent events only fails that
// thread. The result is sorted by thread id.
func (t Trace) Reconstruct(ctx context.Context, workers int) ([]ThreadCallTree, error) {
	if workers < 1 {
		workers = 1
	}
	eventsByThread, err := t.EventsByThread()
	if err != nil {
		return nil, err
	}
	names := t.ThreadNames()
	threadIDs := t.ThreadIDs()
	trees := make([]ThreadCallTree, len(threadIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, threadID := range threadIDs {
		i, threadID := i, threadID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			calls, err := ReconstructThread(eventsByThread[threadID])
			if err != nil {
				log.Warn().
					Err(err).
					Uint64("thread_id", threadID).
					Str("thread_name", names[threadID]).
					Msg("discarding thread call tree")
			}
			trees[i] = ThreadCallTree{
				ThreadID: threadID,
				Name:     names[threadID],
				Calls:    calls,
				Err:      err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}
