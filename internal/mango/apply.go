package mango

import (
	"slices"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Apply filters docs by the query selector, then sorts, skips and limits.
// Input order is kept for documents that compare equal on every sort
// field.
func (m *Matcher) Apply(q *Query, docs []ir.Object) ([]ir.Object, error) {
	matched := make([]ir.Object, 0, len(docs))
	for _, doc := range docs {
		ok, err := m.Match(q.Selector, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	if len(q.Sort) > 0 {
		m.Sort(matched, q.Sort)
	}

	if q.Skip > 0 {
		if q.Skip >= int64(len(matched)) {
			return []ir.Object{}, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit >= 0 && q.Limit < int64(len(matched)) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Sort orders docs in place by the given fields. Missing fields sort as
// null.
func (m *Matcher) Sort(docs []ir.Object, fields []SortField) {
	slices.SortStableFunc(docs, func(a, b ir.Object) int {
		for _, f := range fields {
			av, _ := lookup(a, f.Field)
			bv, _ := lookup(b, f.Field)
			c := m.Compare(av, bv)
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
