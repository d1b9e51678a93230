package android

import (
	"testing"
)

func TestConvertedSignatureFromBytecodeSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		want      string
	}{
		{name: "no parameters void return", signature: "()V", want: "()"},
		{name: "no parameters", signature: "()F", want: "(): float"},
		{name: "void return", signature: "(Z)V", want: "(boolean)"},
		{name: "multiple parameters", signature: "(BLjava/lang/String;Landroid/view/View;)V", want: "(byte, String, View)"},
		{name: "array parameters and return", signature: "([Ljava/lang/String;[[B)[I", want: "(String[], byte[][]): int[]"},
		{name: "unknown", signature: "Unknown", want: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ConvertedSignatureFromBytecodeSignature(test.signature)
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Fatalf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestConvertedSignatureFromInvalidBytecodeSignature(t *testing.T) {
	_, err := ConvertedSignatureFromBytecodeSignature("(Y)V")
	assertFails(t, err, "invalid descriptor type")
}

func TestStripPackageNameFromFullMethodName(t *testing.T) {
	got := StripPackageNameFromFullMethodName("com.example.Foo.bar()", "com.example")
	if got != "Foo.bar()" {
		t.Fatalf("expected %q, got %q", "Foo.bar()", got)
	}
}
