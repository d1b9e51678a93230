package httputil

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"

	"github.com/getsentry/vmtrace/internal/errorutil"
)

// DecompressPayload wraps the request body in a reader matching its
// Content-Encoding. Unknown encodings are rejected with a 415.
func DecompressPayload(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		switch encoding := r.Header.Get("Content-Encoding"); encoding {
		case "", "identity":
		case "br":
			r.Body = io.NopCloser(brotli.NewReader(r.Body))
		case "lz4":
			r.Body = io.NopCloser(lz4.NewReader(r.Body))
		default:
			http.Error(w, errorutil.ErrUnsupportedEncoding.Error()+": "+encoding, http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
