package android

import (
	"path"
	"strings"

	"github.com/getsentry/vmtrace/internal/frame"
	"github.com/getsentry/vmtrace/internal/packageutil"
)

type Method struct {
	ClassName  string `json:"class_name,omitempty"`
	ID         uint64 `json:"id,omitempty"`
	InApp      *bool  `json:"in_app,omitempty"`
	Name       string `json:"name,omitempty"`
	Signature  string `json:"signature,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	SourceLine uint32 `json:"source_line,omitempty"`
}

func (m Method) PackageName() string {
	index := strings.LastIndex(m.ClassName, ".")
	if index == -1 {
		return m.ClassName
	}
	return m.ClassName[:index]
}

// FullName returns the class, method name and a readable signature, for
// example "com.example.Foo.bar(int, String): boolean".
func (m Method) FullName() string {
	if m.ClassName == "" {
		return m.Name
	}
	signature, err := ConvertedSignatureFromBytecodeSignature(m.Signature)
	if err != nil {
		signature = m.Signature
	}
	var b strings.Builder
	b.WriteString(m.ClassName)
	// "<init>" is a constructor, the class name is enough.
	if m.Name != "<init>" {
		b.WriteRune('.')
		b.WriteString(m.Name)
	}
	b.WriteString(signature)
	return b.String()
}

func (m Method) Frame() frame.Frame {
	packageName := m.PackageName()
	var inApp bool
	if m.InApp != nil {
		inApp = *m.InApp
	} else {
		inApp = packageutil.IsAndroidApplicationPackage(m.ClassName)
	}
	return frame.Frame{
		File:     path.Base(m.SourceFile),
		Function: StripPackageNameFromFullMethodName(m.FullName(), packageName),
		InApp:    &inApp,
		Line:     m.SourceLine,
		MethodID: m.ID,
		Package:  packageName,
		Path:     m.SourceFile,
	}
}

// NormalizeMethods sets the in_app flag of every method, using the
// application identifier when there is one.
func (t *Trace) NormalizeMethods(appIdentifier string) {
	for i, m := range t.Methods {
		inApp := packageutil.IsAndroidApplicationClass(m.ClassName, appIdentifier)
		m.InApp = &inApp
		t.Methods[i] = m
	}
}

// Resolver returns a function mapping method ids to frames. Ids missing from
// the method table resolve to an unknown frame.
func (t Trace) Resolver() func(methodID uint64) frame.Frame {
	frames := make(map[uint64]frame.Frame, len(t.Methods))
	for _, m := range t.Methods {
		frames[m.ID] = m.Frame()
	}
	return func(methodID uint64) frame.Frame {
		if f, ok := frames[methodID]; ok {
			return f
		}
		return frame.Unknown(methodID)
	}
}
