package testutil

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pierrec/lz4/v4"
)

var (
	False = false
	True  = true
)

// nanEqual makes NaNs compare equal.
var nanEqual = []cmp.Option{
	cmp.FilterValues(func(x, y float64) bool {
		return math.IsNaN(x) && math.IsNaN(y)
	}, cmp.Comparer(func(_, _ float64) bool { return true })),
	cmp.FilterValues(func(x, y float32) bool {
		return math.IsNaN(float64(x)) && math.IsNaN(float64(y))
	}, cmp.Comparer(func(_, _ float32) bool { return true })),
}

// Diff returns a human readable report of the differences between want
// and got, empty when they are equal.
func Diff(want, got interface{}, opts ...cmp.Option) string {
	return cmp.Diff(want, got, append(opts, nanEqual...)...)
}

// CompressLZ4 returns b compressed in the lz4 frame format used for stored
// traces and lz4 request bodies.
func CompressLZ4(tb testing.TB, b []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		tb.Fatalf("couldn't compress: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("couldn't close the lz4 writer: %v", err)
	}
	return buf.Bytes()
}
