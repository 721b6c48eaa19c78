package mango

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func TestParse(t *testing.T) {
	q, err := Parse([]byte(`{"selector":{"\\$class":"a.b.Asset","value":{"$gt":1}},"sort":[{"\\$class":"desc"},"value"],"limit":5,"skip":2}`))
	require.NoError(t, err)

	assert.Equal(t, ir.String("a.b.Asset"), q.Selector[`\$class`])
	assert.Equal(t, []SortField{{Field: `\$class`, Descending: true}, {Field: "value"}}, q.Sort)
	assert.Equal(t, int64(5), q.Limit)
	assert.Equal(t, int64(2), q.Skip)
}

func TestParseDefaults(t *testing.T) {
	q, err := Parse([]byte(`{"selector":{}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), q.Limit)
	assert.Equal(t, int64(0), q.Skip)
	assert.Empty(t, q.Sort)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"not json", `{`, "parse query"},
		{"not object", `[]`, "expected a JSON object"},
		{"no selector", `{}`, `"selector" must be an object`},
		{"unknown member", `{"selector":{},"fields":["a"]}`, `unsupported member "fields"`},
		{"bad sort", `{"selector":{},"sort":{"a":"asc"}}`, `"sort" must be an array`},
		{"bad direction", `{"selector":{},"sort":[{"a":"up"}]}`, "must be asc or desc"},
		{"negative limit", `{"selector":{},"limit":-1}`, "must not be negative"},
		{"string skip", `{"selector":{},"skip":"1"}`, "must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
