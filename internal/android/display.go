package android

import (
	"strings"
)

func StripPackageNameFromFullMethodName(s, p string) string {
	return strings.TrimPrefix(s, p+".")
}

// ConvertedSignatureFromBytecodeSignature turns a bytecode signature into a
// readable one: "(ILjava/lang/String;)Z" becomes "(int, String): boolean".
// The return type is omitted for void methods.
func ConvertedSignatureFromBytecodeSignature(signature string) (string, error) {
	parameters, returnType, err := ParseBytecodeSignature(signature)
	if err != nil {
		return "", err
	}
	if parameters == nil && returnType == "" {
		return "", nil
	}
	javaParameters := make([]string, 0, len(parameters))
	for _, p := range parameters {
		javaType, err := SimpleJavaTypeFromBytecodeType(p)
		if err != nil {
			return "", err
		}
		javaParameters = append(javaParameters, javaType)
	}
	var b strings.Builder
	b.WriteRune('(')
	b.WriteString(strings.Join(javaParameters, ", "))
	b.WriteRune(')')
	if returnType != "V" {
		javaType, err := SimpleJavaTypeFromBytecodeType(returnType)
		if err != nil {
			return "", err
		}
		b.WriteString(": ")
		b.WriteString(javaType)
	}
	return b.String(), nil
}
