package main

import (
	"sort"

	"github.com/getsentry/vmtrace/internal/nodetree"
)

type (
	// CallTreesKafkaMessage is the summary of a reconstructed trace we send
	// to Kafka.
	CallTreesKafkaMessage struct {
		AndroidClock   string                      `json:"android_clock"`
		CallTrees      map[uint64][]*nodetree.Node `json:"call_trees"`
		Functions      []nodetree.CallTreeFunction `json:"functions"`
		OrganizationID uint64                      `json:"organization_id"`
		Platform       string                      `json:"platform"`
		ProjectID      uint64                      `json:"project_id"`
		Received       int64                       `json:"received"`
		ThreadErrors   map[uint64]string           `json:"thread_errors,omitempty"`
		TraceID        string                      `json:"trace_id"`
	}
)

const platformAndroid = "android"

func buildCallTreesKafkaMessage(t *ingestedTrace) CallTreesKafkaMessage {
	functions := make(map[uint32]nodetree.CallTreeFunction)
	for _, nodes := range t.callTrees {
		for _, n := range nodes {
			n.CollectFunctions(functions)
		}
	}
	m := CallTreesKafkaMessage{
		AndroidClock:   string(t.trace.Clock),
		CallTrees:      t.callTrees,
		Functions:      make([]nodetree.CallTreeFunction, 0, len(functions)),
		OrganizationID: t.organizationID,
		Platform:       platformAndroid,
		ProjectID:      t.projectID,
		Received:       t.received.Unix(),
		TraceID:        t.id,
	}
	for _, f := range functions {
		m.Functions = append(m.Functions, f)
	}
	sort.Slice(m.Functions, func(i, j int) bool {
		return m.Functions[i].SumSelfTimeNS > m.Functions[j].SumSelfTimeNS
	})
	for _, thread := range t.threads {
		if thread.Err == nil {
			continue
		}
		if m.ThreadErrors == nil {
			m.ThreadErrors = make(map[uint64]string)
		}
		m.ThreadErrors[thread.ThreadID] = thread.Err.Error()
	}
	return m
}
