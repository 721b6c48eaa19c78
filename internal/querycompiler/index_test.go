package querycompiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
	"github.com/hyperledger-archives/composer-sub008/internal/queryparse"
)

func TestIndexCompilerGolden(t *testing.T) {
	file, err := queryparse.ParseFile("queries.qry", sampleQueries)
	require.NoError(t, err)

	ic := NewIndexCompiler()
	var out strings.Builder
	for _, q := range file.Queries {
		def, err := ic.Compile(q)
		require.NoError(t, err)
		fmt.Fprintf(&out, "%s %s\n", q.Name, def)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample_indexes", []byte(out.String()))
}

func TestCompileIndex(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "no clauses",
			text: `SELECT a.b.Asset`,
			want: `{"index":{"fields":["\\$class","\\$registryType","\\$registryId"]},"name":"Idx","ddoc":"IdxDoc","type":"json"}`,
		},
		{
			name: "parameters are skipped",
			text: `SELECT a.b.Asset WHERE (owner == _$owner AND _$v < value) LIMIT _$n`,
			want: `{"index":{"fields":["\\$class","\\$registryType","\\$registryId","owner","value"]},"name":"Idx","ddoc":"IdxDoc","type":"json"}`,
		},
		{
			name: "ascending sort keeps plain fields",
			text: `SELECT a.b.Asset WHERE (colour == "red") ORDER BY [size ASC]`,
			want: `{"index":{"fields":["\\$class","\\$registryType","\\$registryId","colour",{"size":"asc"}]},"name":"Idx","ddoc":"IdxDoc","type":"json"}`,
		},
		{
			name: "sort replaces filter field in place",
			text: `SELECT a.b.Asset WHERE (colour == "red" AND size > 2) ORDER BY [colour DESC]`,
			want: `{"index":{"fields":[{"\\$class":"desc"},{"\\$registryType":"desc"},{"\\$registryId":"desc"},{"colour":"desc"},{"size":"desc"}]},"name":"Idx","ddoc":"IdxDoc","type":"json"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := queryparse.ParseSelect(tt.text)
			require.NoError(t, err)
			got, err := CompileIndex(&queryir.Query{Name: "Idx", Select: sel})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileIndexRequiresSelect(t *testing.T) {
	_, err := CompileIndex(&queryir.Query{Name: "Empty"})
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
}
