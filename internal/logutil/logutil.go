package logutil

import (
	"io"
	"os"

	"cloud.google.com/go/compute/metadata"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogger sets up the global logger. On GCE, logs are written as
// JSON with a severity field Cloud Logging understands; elsewhere they go
// to a console writer on stderr.
func ConfigureLogger() {
	configureLogger(os.Stderr, metadata.OnGCE())
}

func configureLogger(out io.Writer, structured bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Stack().Logger()
	if structured {
		log.Logger = log.Hook(ErrorHook{})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	}
}

// SetLevel discards events below level.
func SetLevel(level zerolog.Level) {
	log.Logger = log.Sample(LevelSampler{Level: level})
}

type ErrorHook struct{}

func (h ErrorHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}

// LevelSampler keeps events at or above Level.
type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(level zerolog.Level) bool {
	return level >= l.Level
}
