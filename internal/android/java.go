package android

import (
	"fmt"
	"strings"

	"github.com/getsentry/vmtrace/internal/errorutil"
)

type signatureState int

const (
	expectParametersStart signatureState = iota
	expectParameterOrEnd
	expectParameter
	expectReturnType
	expectNothing
)

var signatureExpectations = map[signatureState]string{
	expectParametersStart: "the character '('",
	expectParameterOrEnd:  "a parameter type or the character ')'",
	expectParameter:       "a parameter type",
	expectReturnType:      "a return type",
}

// ParseBytecodeSignature splits a method descriptor such as
// "(ILjava/lang/String;)V" into its parameter types and return type.
// Parameters are nil and the return type empty for an "Unknown" signature.
func ParseBytecodeSignature(signature string) (parameters []string, returnType string, err error) {
	if signature == "Unknown" {
		return nil, "", nil
	}

	state := expectParametersStart
	arrayPrefix := ""
	for i := 0; i < len(signature); {
		c := signature[i]
		switch state {
		case expectParametersStart:
			if c != '(' {
				return nil, "", fmt.Errorf("java: %w: invalid descriptor, expected the character '(' but got %q in %q", errorutil.ErrDataIntegrity, c, signature)
			}
			state = expectParameterOrEnd
			i++
		case expectParameterOrEnd:
			if c == ')' {
				state = expectReturnType
				i++
				continue
			}
			// Read the same character again as a parameter type.
			state = expectParameter
		case expectParameter, expectReturnType:
			if c == '[' {
				arrayPrefix += "["
				i++
				continue
			}
			end := i + 1
			if c == 'L' {
				semicolon := strings.IndexByte(signature[i:], ';')
				if semicolon == -1 {
					return nil, "", fmt.Errorf("java: %w: invalid descriptor, unterminated class name in %q", errorutil.ErrDataIntegrity, signature)
				}
				end = i + semicolon + 1
			}
			bytecodeType := arrayPrefix + signature[i:end]
			arrayPrefix = ""
			i = end
			if state == expectReturnType {
				returnType = bytecodeType
				state = expectNothing
			} else {
				parameters = append(parameters, bytecodeType)
				state = expectParameterOrEnd
			}
		case expectNothing:
			return nil, "", fmt.Errorf("java: %w: invalid descriptor, did not end as expected: %q", errorutil.ErrDataIntegrity, signature)
		}
	}

	if state != expectNothing {
		return nil, "", fmt.Errorf("java: %w: invalid descriptor, expected %v but got: %q", errorutil.ErrDataIntegrity, signatureExpectations[state], signature)
	}
	return parameters, returnType, nil
}

var primitiveTypes = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'V': "void",
}

// SimpleJavaTypeFromBytecodeType drops the package of class types:
// "Landroid/app/Activity;" becomes "Activity" and "[Z" becomes "boolean[]".
func SimpleJavaTypeFromBytecodeType(bytecodeType string) (string, error) {
	return javaTypeFromBytecodeType(bytecodeType, func(className string) string {
		if i := strings.LastIndexByte(className, '/'); i != -1 {
			return className[i+1:]
		}
		return className
	})
}

func javaTypeFromBytecodeType(bytecodeType string, className func(string) string) (string, error) {
	if len(bytecodeType) == 0 {
		return "", fmt.Errorf("java: %w: invalid descriptor type, must not be empty", errorutil.ErrDataIntegrity)
	}
	first := bytecodeType[0]
	if javaType, ok := primitiveTypes[first]; ok {
		return javaType, nil
	}
	switch first {
	case 'L':
		last := bytecodeType[len(bytecodeType)-1]
		if last != ';' {
			return "", fmt.Errorf("java: %w: invalid descriptor type, expected ';' character at the end of class name but was '%c' in %q", errorutil.ErrDataIntegrity, last, bytecodeType)
		}
		return className(bytecodeType[1 : len(bytecodeType)-1]), nil
	case '[':
		elementType, err := javaTypeFromBytecodeType(bytecodeType[1:], className)
		return elementType + "[]", err
	}
	return "", fmt.Errorf("java: %w: invalid descriptor type: %q", errorutil.ErrDataIntegrity, bytecodeType)
}
