package logutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestStructuredLoggerAddsSeverity(t *testing.T) {
	previous := log.Logger
	defer func() { log.Logger = previous }()

	var buf bytes.Buffer
	configureLogger(&buf, true)
	log.Warn().Uint64("thread_id", 3).Msg("discarding thread call tree")

	out := buf.String()
	if !strings.Contains(out, `"severity":"warn"`) {
		t.Fatalf("expected a severity field, got %q", out)
	}
	if !strings.Contains(out, `"thread_id":3`) {
		t.Fatalf("expected the thread_id field, got %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	previous := log.Logger
	defer func() { log.Logger = previous }()

	var buf bytes.Buffer
	configureLogger(&buf, true)
	SetLevel(zerolog.WarnLevel)
	log.Info().Msg("dropped")
	log.Error().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info event should have been sampled out: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("error event should have been written: %q", out)
	}
}

func TestLevelSampler(t *testing.T) {
	s := LevelSampler{Level: zerolog.InfoLevel}
	if s.Sample(zerolog.DebugLevel) {
		t.Fatal("debug should not be sampled at info level")
	}
	if !s.Sample(zerolog.ErrorLevel) {
		t.Fatal("error should be sampled at info level")
	}
}
