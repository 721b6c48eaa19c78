package mango

import (
	"strings"
)

// EscapeField escapes a document field name for use in a selector, sort
// or index. Mango reads a leading "$" as an operator and "." as a path
// separator, so both are prefixed with a backslash.
func EscapeField(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == '\\' || (c == '$' && i == 0) {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// SplitField splits a selector field path into unescaped segments.
// "owner.name" is two segments; "\$class" is the single segment "$class".
func SplitField(path string) []string {
	var parts []string
	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '\\' && i+1 < len(path):
			i++
			sb.WriteByte(path[i])
		case c == '.':
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	return append(parts, sb.String())
}

// isOperator reports whether a selector key is an operator rather than
// an escaped or plain field name.
func isOperator(key string) bool {
	return strings.HasPrefix(key, "$")
}
