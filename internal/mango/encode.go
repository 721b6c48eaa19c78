package mango

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// ParamError reports a Param with no value at encode time.
type ParamError struct {
	Name string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %s has no value", e.Name)
}

// Encode serializes a document to compact JSON, resolving Params from
// params. The output is byte-compatible with JavaScript's JSON.stringify:
// no HTML escaping, U+2028 and U+2029 emitted literally and numbers in
// JavaScript notation. Objects keep insertion order; plain Go maps and
// ir.Object are written with sorted keys.
func Encode(v any, params Params) ([]byte, error) {
	e := &encoder{params: params}
	if err := e.write(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf    bytes.Buffer
	params Params
}

func (e *encoder) write(v any) error {
	switch val := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case Param:
		return e.writeParam(val)
	case *Param:
		return e.writeParam(*val)
	case *Object:
		if val == nil {
			e.buf.WriteString("null")
			return nil
		}
		e.buf.WriteByte('{')
		for i, f := range val.fields {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			writeString(&e.buf, f.Key)
			e.buf.WriteByte(':')
			if err := e.write(f.Value); err != nil {
				return fmt.Errorf("%s: %w", f.Key, err)
			}
		}
		e.buf.WriteByte('}')
	case Array:
		return e.writeList(len(val), func(i int) any { return val[i] })
	case []any:
		return e.writeList(len(val), func(i int) any { return val[i] })
	case []string:
		return e.writeList(len(val), func(i int) any { return val[i] })
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		e.buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			writeString(&e.buf, k)
			e.buf.WriteByte(':')
			if err := e.write(val[k]); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		e.buf.WriteByte('}')
	case ir.Value:
		return e.writeIR(val)
	case string:
		writeString(&e.buf, val)
	case bool:
		e.buf.WriteString(strconv.FormatBool(val))
	case int:
		e.buf.WriteString(strconv.Itoa(val))
	case int32:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		e.buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		e.buf.WriteString(strconv.FormatUint(val, 10))
	case float32:
		e.buf.WriteString(ir.FormatNumber(float64(val)))
	case float64:
		e.buf.WriteString(ir.FormatNumber(val))
	default:
		return fmt.Errorf("cannot encode value of type %T", v)
	}
	return nil
}

func (e *encoder) writeList(n int, at func(int) any) error {
	e.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.write(at(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) writeParam(p Param) error {
	value, ok := e.params.Lookup(p.Name)
	if !ok {
		return &ParamError{Name: p.Name}
	}
	if p.AsArray && !isArray(value) {
		value = Array{value}
	}
	return e.write(value)
}

func (e *encoder) writeIR(v ir.Value) error {
	switch val := v.(type) {
	case ir.Null:
		e.buf.WriteString("null")
	case ir.String:
		writeString(&e.buf, string(val))
	case ir.Int:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case ir.Float:
		e.buf.WriteString(ir.FormatNumber(float64(val)))
	case ir.Bool:
		e.buf.WriteString(strconv.FormatBool(bool(val)))
	case ir.Array:
		return e.writeList(len(val), func(i int) any { return val[i] })
	case ir.Object:
		e.buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			writeString(&e.buf, k)
			e.buf.WriteByte(':')
			if err := e.write(val[k]); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		e.buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode value of type %T", v)
	}
	return nil
}

// isArray reports whether v encodes as a JSON array.
func isArray(v any) bool {
	switch v.(type) {
	case Array, []any, []string, ir.Array:
		return true
	default:
		return false
	}
}

// IsObject reports whether v encodes as a JSON object.
func IsObject(v any) bool {
	switch val := v.(type) {
	case *Object:
		return val != nil
	case map[string]any, ir.Object:
		return true
	default:
		return false
	}
}

// IsArray reports whether v encodes as a JSON array.
func IsArray(v any) bool {
	return isArray(v)
}

// writeString quotes s the way JSON.stringify does.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				buf.WriteString(`\"`)
			case '\\':
				buf.WriteString(`\\`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			case '\t':
				buf.WriteString(`\t`)
			default:
				if c < 0x20 {
					buf.WriteString(`\u00`)
					buf.WriteByte(hex[c>>4])
					buf.WriteByte(hex[c&0xf])
				} else {
					buf.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(`�`)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
