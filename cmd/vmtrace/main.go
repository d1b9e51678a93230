package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"

	"github.com/getsentry/vmtrace/internal/httputil"
	"github.com/getsentry/vmtrace/internal/logutil"
)

type (
	KafkaWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	environment struct {
		config ServiceConfig

		callTreesWriter KafkaWriter

		storage *blob.Bucket
	}
)

var release string

const shutdownTimeout = 30 * time.Second

func newEnvironment() (*environment, error) {
	var e environment
	var err error
	e.config, err = readServiceConfig()
	if err != nil {
		return nil, err
	}
	e.storage, err = blob.OpenBucket(context.Background(), e.config.BucketURL)
	if err != nil {
		return nil, err
	}
	e.callTreesWriter = &kafka.Writer{
		Addr:         kafka.TCP(e.config.KafkaBrokers...),
		Async:        true,
		Balancer:     kafka.CRC32Balancer{},
		BatchSize:    10,
		Compression:  kafka.Lz4,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	return &e, nil
}

func (e *environment) shutdown() {
	for _, c := range []io.Closer{e.storage, e.callTreesWriter} {
		if err := c.Close(); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error closing environment")
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodPost, "/organizations/:organization_id/projects/:project_id/traces", e.postTrace},
		{http.MethodGet, "/organizations/:organization_id/projects/:project_id/traces/:trace_id/calltrees", e.getCallTrees},
		{http.MethodGet, "/organizations/:organization_id/projects/:project_id/traces/:trace_id/speedscope", e.getSpeedscope},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.NameTransaction(route.method, route.path, route.handler)
		handlerFunc = httputil.DecompressPayload(handlerFunc)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

// configureLogLevel drops log events below level, one of zerolog's level
// names.
func configureLogLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	logutil.SetLevel(l)
	return nil
}

func initSentry(config ServiceConfig) error {
	return sentry.Init(sentry.ClientOptions{
		BeforeSend:       httputil.SetHTTPStatusCodeTag,
		Dsn:              config.SentryDSN,
		EnableTracing:    true,
		Environment:      config.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	})
}

// serve runs the server until ctx is done, then waits up to
// shutdownTimeout for in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	logutil.ConfigureLogger()

	env, err := newEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	if err := configureLogLevel(env.config.LogLevel); err != nil {
		log.Fatal().Err(err).Str("level", env.config.LogLevel).Msg("invalid log level")
	}

	if err := initSentry(env.config); err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := &http.Server{
		Addr:              ":" + env.config.Port,
		Handler:           sentryhttp.New(sentryhttp.Options{}).Handle(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("port", env.config.Port).
		Str("environment", env.config.Environment).
		Int("workers", env.config.Workers).
		Msg("listening")

	if err := serve(ctx, server); err != nil {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	// The bucket and the Kafka writer are closed once no request uses them.
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
