package frame

import (
	"fmt"
	"hash"
	"hash/fnv"
	"path"

	"github.com/getsentry/vmtrace/internal/packageutil"
)

type (
	// Frame is the resolved identity of a traced method.
	Frame struct {
		File     string `json:"filename,omitempty"`
		Function string `json:"function,omitempty"`
		InApp    *bool  `json:"in_app"`
		Line     uint32 `json:"lineno,omitempty"`
		MethodID uint64 `json:"method_id"`
		Package  string `json:"package,omitempty"`
		Path     string `json:"abs_path,omitempty"`
	}
)

// Unknown returns the frame used when a method id has no metadata.
func Unknown(methodID uint64) Frame {
	inApp := false
	return Frame{
		Function: fmt.Sprintf("unknown (id %d)", methodID),
		InApp:    &inApp,
		MethodID: methodID,
		Package:  "unknown",
	}
}

func (f Frame) PackageBaseName() string {
	if f.Package == "" {
		return ""
	}
	return path.Base(f.Package)
}

// IsApplicationFrame returns the in_app flag when it's set and falls back on
// the package name otherwise.
func (f Frame) IsApplicationFrame() bool {
	if f.InApp != nil {
		return *f.InApp
	}
	return packageutil.IsAndroidApplicationPackage(f.Package)
}

func (f Frame) WriteToHash(h hash.Hash) {
	var s string
	if f.Package != "" {
		s = f.PackageBaseName()
	} else if f.File != "" {
		s = f.File
	} else {
		s = "-"
	}
	h.Write([]byte(s))
	if f.Function != "" {
		s = f.Function
	} else {
		s = "-"
	}
	h.Write([]byte(s))
}

func (f Frame) Fingerprint() uint32 {
	h := fnv.New64()
	f.WriteToHash(h)
	return uint32(h.Sum64())
}
