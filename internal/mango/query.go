package mango

import (
	"fmt"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Top-level members of a query document.
const (
	SelectorKey = "selector"
	SortKey     = "sort"
	LimitKey    = "limit"
	SkipKey     = "skip"
)

// Sort directions as written in a query document.
const (
	Asc  = "asc"
	Desc = "desc"
)

// SortField orders results by one field.
type SortField struct {
	Field      string
	Descending bool
}

// Query is a decoded query document.
type Query struct {
	Selector ir.Object
	Sort     []SortField
	Limit    int64 // -1 when absent
	Skip     int64
}

// Parse decodes a query document such as the query compiler emits.
func Parse(data []byte) (*Query, error) {
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	doc, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("parse query: expected a JSON object, got %T", v)
	}

	q := &Query{Limit: -1}
	for _, key := range doc.SortedKeys() {
		switch key {
		case SelectorKey, SortKey, LimitKey, SkipKey:
		default:
			return nil, fmt.Errorf("parse query: unsupported member %q", key)
		}
	}

	sel, ok := doc[SelectorKey].(ir.Object)
	if !ok {
		return nil, fmt.Errorf("parse query: %q must be an object", SelectorKey)
	}
	q.Selector = sel

	if raw, ok := doc[SortKey]; ok {
		if q.Sort, err = parseSort(raw); err != nil {
			return nil, fmt.Errorf("parse query: %w", err)
		}
	}
	if raw, ok := doc[LimitKey]; ok {
		if q.Limit, err = parseCount(LimitKey, raw); err != nil {
			return nil, fmt.Errorf("parse query: %w", err)
		}
	}
	if raw, ok := doc[SkipKey]; ok {
		if q.Skip, err = parseCount(SkipKey, raw); err != nil {
			return nil, fmt.Errorf("parse query: %w", err)
		}
	}
	return q, nil
}

// parseSort accepts ["field", {"field": "desc"}, ...].
func parseSort(raw ir.Value) ([]SortField, error) {
	arr, ok := raw.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("%q must be an array", SortKey)
	}
	out := make([]SortField, 0, len(arr))
	for i, elem := range arr {
		switch s := elem.(type) {
		case ir.String:
			out = append(out, SortField{Field: string(s)})
		case ir.Object:
			if len(s) != 1 {
				return nil, fmt.Errorf("sort[%d] must have exactly one field", i)
			}
			for field, dir := range s {
				d, ok := dir.(ir.String)
				if !ok {
					return nil, fmt.Errorf("sort[%d] direction must be a string", i)
				}
				switch strings.ToLower(string(d)) {
				case Asc:
					out = append(out, SortField{Field: field})
				case Desc:
					out = append(out, SortField{Field: field, Descending: true})
				default:
					return nil, fmt.Errorf("sort[%d] direction %q must be asc or desc", i, string(d))
				}
			}
		default:
			return nil, fmt.Errorf("sort[%d] must be a string or an object", i)
		}
	}
	return out, nil
}

func parseCount(name string, raw ir.Value) (int64, error) {
	switch n := raw.(type) {
	case ir.Int:
		if n < 0 {
			return 0, fmt.Errorf("%q must not be negative", name)
		}
		return int64(n), nil
	case ir.Float:
		if n < 0 || float64(n) != float64(int64(n)) {
			return 0, fmt.Errorf("%q must be a non-negative integer", name)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%q must be a number", name)
	}
}
