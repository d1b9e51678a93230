package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"gocloud.dev/gcerrors"

	"github.com/getsentry/vmtrace/internal/android"
	"github.com/getsentry/vmtrace/internal/errorutil"
	"github.com/getsentry/vmtrace/internal/nodetree"
	"github.com/getsentry/vmtrace/internal/speedscope"
	"github.com/getsentry/vmtrace/internal/storageutil"
)

type (
	ingestedTrace struct {
		id             string
		organizationID uint64
		projectID      uint64
		received       time.Time
		trace          android.Trace
		threads        []android.ThreadCallTree
		callTrees      map[uint64][]*nodetree.Node
	}

	ThreadSummary struct {
		ThreadID uint64 `json:"thread_id"`
		Name     string `json:"name"`
		Calls    int    `json:"calls"`
		Error    string `json:"error,omitempty"`
	}

	PostTraceResponse struct {
		TraceID string          `json:"trace_id"`
		Threads []ThreadSummary `json:"threads"`
	}
)

func (env *environment) postTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	organizationID, projectID, ok := projectFromRequest(w, r, hub)
	if !ok {
		return
	}

	s := sentry.StartSpan(ctx, "processing")
	s.Description = "Read HTTP body"
	body, err := io.ReadAll(r.Body)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	t := ingestedTrace{
		id:             uuid.New().String(),
		organizationID: organizationID,
		projectID:      projectID,
		received:       time.Now(),
	}

	s = sentry.StartSpan(ctx, "json.unmarshal")
	s.Description = "Unmarshal trace"
	err = gojson.Unmarshal(body, &t.trace)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	hub.Scope().SetContext("Trace metadata", map[string]interface{}{
		"clock":           string(t.trace.Clock),
		"events":          len(t.trace.Events),
		"organization_id": strconv.FormatUint(organizationID, 10),
		"project_id":      strconv.FormatUint(projectID, 10),
		"size":            len(body),
		"trace_id":        t.id,
	})

	t.trace.NormalizeMethods(r.URL.Query().Get("app_identifier"))

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Reconstruct call trees"
	t.threads, err = t.trace.Reconstruct(ctx, env.config.Workers)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		if errors.Is(err, errorutil.ErrDataIntegrity) {
			w.WriteHeader(http.StatusBadRequest)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	resolve := t.trace.Resolver()
	t.callTrees = make(map[uint64][]*nodetree.Node, len(t.threads))
	response := PostTraceResponse{
		TraceID: t.id,
		Threads: make([]ThreadSummary, 0, len(t.threads)),
	}
	for _, thread := range t.threads {
		summary := ThreadSummary{
			ThreadID: thread.ThreadID,
			Name:     thread.Name,
			Calls:    len(thread.Calls),
		}
		if thread.Err != nil {
			summary.Error = thread.Err.Error()
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("thread_id", strconv.FormatUint(thread.ThreadID, 10))
				hub.CaptureMessage(summary.Error)
			})
		} else {
			t.callTrees[thread.ThreadID] = nodetree.FromCalls(thread.Calls, resolve)
		}
		response.Threads = append(response.Threads, summary)
	}

	s = sentry.StartSpan(ctx, "gcs.write")
	s.Description = "Write trace"
	err = storageutil.CompressedWrite(ctx, env.storage, storageutil.TracePath(organizationID, projectID, t.id), t.trace)
	s.Finish()
	if err != nil {
		writeStorageError(w, hub, err)
		return
	}

	s = sentry.StartSpan(ctx, "gcs.write")
	s.Description = "Write call trees"
	err = storageutil.CompressedWrite(ctx, env.storage, storageutil.CallTreesPath(organizationID, projectID, t.id), t.callTrees)
	s.Finish()
	if err != nil {
		writeStorageError(w, hub, err)
		return
	}

	s = sentry.StartSpan(ctx, "json.marshal")
	s.Description = "Marshal call trees Kafka message"
	b, err := jsoniter.Marshal(buildCallTreesKafkaMessage(&t))
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Send call trees to Kafka"
	err = env.callTreesWriter.WriteMessages(ctx, kafka.Message{
		Topic: env.config.CallTreesKafkaTopic,
		Value: b,
	})
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s = sentry.StartSpan(ctx, "json.marshal")
	s.Description = "Marshal response"
	b, err = gojson.Marshal(response)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(b)
}

func (env *environment) getCallTrees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	organizationID, projectID, ok := projectFromRequest(w, r, hub)
	if !ok {
		return
	}
	traceID, ok := traceIDFromRequest(w, r, hub)
	if !ok {
		return
	}

	var callTrees map[uint64][]*nodetree.Node
	s := sentry.StartSpan(ctx, "gcs.read")
	s.Description = "Read call trees"
	err := storageutil.UnmarshalCompressed(ctx, env.storage, storageutil.CallTreesPath(organizationID, projectID, traceID), &callTrees)
	s.Finish()
	if err != nil {
		writeStorageError(w, hub, err)
		return
	}

	if collapse, _ := strconv.ParseBool(r.URL.Query().Get("collapse")); collapse {
		for threadID, nodes := range callTrees {
			collapsed := make([]*nodetree.Node, 0, len(nodes))
			for _, n := range nodes {
				collapsed = append(collapsed, n.Collapse()...)
			}
			callTrees[threadID] = collapsed
		}
	}

	writeJSON(ctx, w, hub, callTrees)
}

func (env *environment) getSpeedscope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	organizationID, projectID, ok := projectFromRequest(w, r, hub)
	if !ok {
		return
	}
	traceID, ok := traceIDFromRequest(w, r, hub)
	if !ok {
		return
	}

	var t android.Trace
	s := sentry.StartSpan(ctx, "gcs.read")
	s.Description = "Read trace"
	err := storageutil.UnmarshalCompressed(ctx, env.storage, storageutil.TracePath(organizationID, projectID, traceID), &t)
	s.Finish()
	if err != nil {
		writeStorageError(w, hub, err)
		return
	}

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Reconstruct call trees"
	threads, err := t.Reconstruct(ctx, env.config.Workers)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resolve := t.Resolver()
	rendered := make([]speedscope.Thread, 0, len(threads))
	for _, thread := range threads {
		if thread.Err != nil {
			continue
		}
		rendered = append(rendered, speedscope.Thread{
			ID:    thread.ThreadID,
			Name:  thread.Name,
			Nodes: nodetree.FromCalls(thread.Calls, resolve),
		})
	}

	o := speedscope.FromThreads(rendered, t.MainThreadID())
	o.AndroidClock = string(t.Clock)
	o.Platform = platformAndroid
	o.ProfileID = traceID
	o.ProjectID = projectID

	writeJSON(ctx, w, hub, o)
}

func projectFromRequest(w http.ResponseWriter, r *http.Request, hub *sentry.Hub) (uint64, uint64, bool) {
	ps := httprouter.ParamsFromContext(r.Context())
	rawOrganizationID := ps.ByName("organization_id")
	organizationID, err := strconv.ParseUint(rawOrganizationID, 10, 64)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return 0, 0, false
	}
	rawProjectID := ps.ByName("project_id")
	projectID, err := strconv.ParseUint(rawProjectID, 10, 64)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return 0, 0, false
	}
	hub.Scope().SetTag("organization_id", rawOrganizationID)
	hub.Scope().SetTag("project_id", rawProjectID)
	return organizationID, projectID, true
}

func traceIDFromRequest(w http.ResponseWriter, r *http.Request, hub *sentry.Hub) (string, bool) {
	traceID := httprouter.ParamsFromContext(r.Context()).ByName("trace_id")
	if _, err := uuid.Parse(traceID); err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return "", false
	}
	hub.Scope().SetTag("trace_id", traceID)
	return traceID, true
}

func writeStorageError(w http.ResponseWriter, hub *sentry.Hub, err error) {
	switch {
	case errors.Is(err, storageutil.ErrObjectNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		// This is a transient error, we'll retry
		w.WriteHeader(http.StatusTooManyRequests)
	default:
		hub.CaptureException(err)
		if code := gcerrors.Code(err); code == gcerrors.FailedPrecondition {
			w.WriteHeader(http.StatusPreconditionFailed)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, hub *sentry.Hub, v interface{}) {
	s := sentry.StartSpan(ctx, "json.marshal")
	defer s.Finish()

	b, err := gojson.Marshal(v)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
