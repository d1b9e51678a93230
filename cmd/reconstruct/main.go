package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/vmtrace/internal/android"
	"github.com/getsentry/vmtrace/internal/logutil"
	"github.com/getsentry/vmtrace/internal/metrics"
	"github.com/getsentry/vmtrace/internal/nodetree"
	"github.com/getsentry/vmtrace/internal/vmtrace"
)

type (
	threadReport struct {
		ThreadID      uint64
		Name          string
		TopLevelCalls int
		Calls         int
		Tree          string
		Err           error
	}

	traceReport struct {
		Path      string
		Threads   []threadReport
		Functions map[uint32]nodetree.CallTreeFunction
	}
)

func main() {
	logutil.ConfigureLogger()

	workers := flag.Int("workers", 8, "number of traces reconstructed in parallel")
	appIdentifier := flag.String("app-identifier", "", "package of the traced application")
	top := flag.Int("top", 20, "number of slowest functions to report")
	tree := flag.Bool("tree", false, "print the call tree of every thread")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "./reconstruct [-workers N] [-app-identifier id] [-top N] [-tree] <traces directory>") // nolint
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 || *workers < 1 {
		flag.Usage()
		os.Exit(2)
	}

	root := flag.Arg(0)
	if _, err := os.Stat(root); err != nil {
		log.Fatal().Err(err).Str("path", root).Msg("can't open traces directory")
	}

	pathChannel := make(chan string, *workers)
	reportChannel := make(chan traceReport)
	errChannel := make(chan error)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go analyzeTraces(*appIdentifier, *tree, pathChannel, reportChannel, errChannel, &wg)
	}

	done := make(chan struct{})
	go func() {
		var traces, threads, failed int
		aggregator := metrics.NewAggregator(*top, 5)
		for reportChannel != nil || errChannel != nil {
			select {
			case r, ok := <-reportChannel:
				if !ok {
					reportChannel = nil
					continue
				}
				traces++
				threads += len(r.Threads)
				failed += logReport(r)
				aggregator.Add(r.Path, r.Functions)
			case err, ok := <-errChannel:
				if !ok {
					errChannel = nil
					continue
				}
				log.Error().Err(err).Msg("can't reconstruct trace")
			}
		}
		log.Info().
			Int("traces", traces).
			Int("threads", threads).
			Int("failed_threads", failed).
			Msg("done")
		for _, m := range aggregator.ToMetrics() {
			log.Info().
				Str("function", m.Name).
				Str("package", m.Package).
				Bool("in_app", m.InApp).
				Int("count", m.Count).
				Uint64("sum_ns", m.Sum).
				Uint64("p95_ns", m.P95).
				Str("worst", m.Worst).
				Msg("slow function")
		}
		close(done)
	}()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		pathChannel <- path
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("can't walk traces directory")
	}

	close(pathChannel)
	wg.Wait()
	close(reportChannel)
	close(errChannel)
	<-done
}

func analyzeTraces(appIdentifier string, tree bool, pathChannel <-chan string, reportChannel chan<- traceReport, errChannel chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for path := range pathChannel {
		r, err := analyzeTrace(path, appIdentifier, tree)
		if err != nil {
			errChannel <- err
			continue
		}
		reportChannel <- r
	}
}

func analyzeTrace(path, appIdentifier string, tree bool) (traceReport, error) {
	t, err := readTrace(path)
	if err != nil {
		return traceReport{}, fmt.Errorf("%s: %w", path, err)
	}
	t.NormalizeMethods(appIdentifier)
	threads, err := t.Reconstruct(context.Background(), 1)
	if err != nil {
		return traceReport{}, fmt.Errorf("%s: %w", path, err)
	}
	r := traceReport{
		Path:      path,
		Threads:   make([]threadReport, 0, len(threads)),
		Functions: make(map[uint32]nodetree.CallTreeFunction),
	}
	resolve := t.Resolver()
	name := func(methodID uint64) string {
		return resolve(methodID).Function
	}
	for _, thread := range threads {
		tr := threadReport{
			ThreadID:      thread.ThreadID,
			Name:          thread.Name,
			TopLevelCalls: len(thread.Calls),
			Err:           thread.Err,
		}
		for _, c := range thread.Calls {
			c.Walk(func(*vmtrace.Call) bool {
				tr.Calls++
				return true
			})
		}
		if tree {
			var b strings.Builder
			for _, c := range thread.Calls {
				b.WriteString(c.Format(name))
			}
			tr.Tree = b.String()
		}
		for _, n := range nodetree.FromCalls(thread.Calls, resolve) {
			n.CollectFunctions(r.Functions)
		}
		r.Threads = append(r.Threads, tr)
	}
	return r, nil
}

// readTrace decodes a trace file. Files ending in .json are read as is,
// anything else is expected to be lz4 compressed.
func readTrace(path string) (android.Trace, error) {
	var t android.Trace
	f, err := os.Open(path)
	if err != nil {
		return t, err
	}
	defer f.Close()
	var r io.Reader = f
	if !strings.HasSuffix(path, ".json") {
		r = lz4.NewReader(f)
	}
	err = gojson.NewDecoder(r).Decode(&t)
	return t, err
}

func logReport(r traceReport) int {
	var failed int
	for _, thread := range r.Threads {
		if thread.Err != nil {
			failed++
			log.Warn().
				Err(thread.Err).
				Str("path", r.Path).
				Uint64("thread_id", thread.ThreadID).
				Str("thread_name", thread.Name).
				Msg("call stack mismatch")
			continue
		}
		log.Info().
			Str("path", r.Path).
			Uint64("thread_id", thread.ThreadID).
			Str("thread_name", thread.Name).
			Int("top_level_calls", thread.TopLevelCalls).
			Int("calls", thread.Calls).
			Msg("thread reconstructed")
		if thread.Tree != "" {
			fmt.Print(thread.Tree) // nolint
		}
	}
	return failed
}
