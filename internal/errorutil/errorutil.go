package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrUnsupportedEncoding is returned when a payload is compressed with an
// encoding we can't read.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")
