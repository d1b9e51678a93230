package android

import (
	"errors"
	"strings"
	"testing"

	"github.com/getsentry/vmtrace/internal/errorutil"
	"github.com/getsentry/vmtrace/internal/testutil"
)

func assertFails(t *testing.T, err error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error to be non-nil")
	}
	if !errors.Is(err, errorutil.ErrDataIntegrity) {
		t.Fatalf("expected a data integrity error, got %v", err)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Fatalf("expected error message %q to contain %q", err.Error(), contains)
	}
}

func TestParseBytecodeSignature(t *testing.T) {
	tests := []struct {
		signature      string
		wantParameters []string
		wantReturnType string
		wantErr        string
	}{
		{signature: "", wantErr: "expected the character '('"},
		{signature: "()", wantErr: "expected a return type"},
		{signature: "()ZI", wantErr: "did not end as expected"},
		{signature: "Z", wantErr: "expected the character '('"},
		{signature: "(I", wantErr: "expected a parameter type or the character ')'"},
		{signature: "(Ljava/lang/String)V", wantErr: "unterminated class name"},
		{signature: "Unknown"},
		{signature: "()V", wantReturnType: "V"},
		{
			signature:      "(I[[JLjava/lang/String;)[Landroid/view/View;",
			wantParameters: []string{"I", "[[J", "Ljava/lang/String;"},
			wantReturnType: "[Landroid/view/View;",
		},
	}

	for _, test := range tests {
		t.Run(test.signature, func(t *testing.T) {
			parameters, returnType, err := ParseBytecodeSignature(test.signature)
			if test.wantErr != "" {
				assertFails(t, err, test.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := testutil.Diff(test.wantParameters, parameters); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
			if returnType != test.wantReturnType {
				t.Fatalf("expected return type %q, got %q", test.wantReturnType, returnType)
			}
		})
	}
}

func TestSimpleJavaTypeFromBytecodeType(t *testing.T) {
	tests := []struct {
		bytecodeType string
		simple       string
		wantErr      string
	}{
		{bytecodeType: "", wantErr: "must not be empty"},
		{bytecodeType: "Y", wantErr: "invalid descriptor type"},
		{bytecodeType: "Lmissing.semicolon", wantErr: "invalid descriptor type, expected ';'"},
		{bytecodeType: "Z", simple: "boolean"},
		{bytecodeType: "[I", simple: "int[]"},
		{bytecodeType: "[[J", simple: "long[][]"},
		{bytecodeType: "Ljava/lang/String;", simple: "String"},
		{bytecodeType: "[Ljava/lang/String;", simple: "String[]"},
		{bytecodeType: "Landroid/app/Activity;", simple: "Activity"},
		{
			bytecodeType: "Lcom/google/common/util/concurrent/AbstractFuture$Listener;",
			simple:       "AbstractFuture$Listener",
		},
		{bytecodeType: "LTopLevel;", simple: "TopLevel"},
	}

	for _, test := range tests {
		t.Run(test.bytecodeType, func(t *testing.T) {
			simple, err := SimpleJavaTypeFromBytecodeType(test.bytecodeType)
			if test.wantErr != "" {
				assertFails(t, err, test.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if simple != test.simple {
				t.Fatalf("expected %q, got %q", test.simple, simple)
			}
		})
	}
}
