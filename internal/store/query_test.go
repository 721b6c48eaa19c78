package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/querycompiler"
	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

var _ querycompiler.QueryService = (*Store)(nil)

func vins(docs []ir.Object) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, _ := doc.GetString("vin")
		out = append(out, id)
	}
	return out
}

func TestExecuteQuery(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	addVehicles(t, s,
		vehicle("V1", "red", 2019),
		vehicle("V2", "blue", 2021),
		vehicle("V3", "red", 2022),
		vehicle("V4", "red", 2018),
	)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "discriminators only",
			query: `{"selector": {"\\$class": "org.acme.Vehicle", "\\$registryType": "Asset", "\\$registryId": "org.acme.Vehicle"}}`,
			want:  []string{"V1", "V2", "V3", "V4"},
		},
		{
			name:  "field equality",
			query: `{"selector": {"\\$class": "org.acme.Vehicle", "colour": {"$eq": "red"}}}`,
			want:  []string{"V1", "V3", "V4"},
		},
		{
			name:  "range left to matcher",
			query: `{"selector": {"\\$class": "org.acme.Vehicle", "year": {"$gte": 2019}}}`,
			want:  []string{"V1", "V2", "V3"},
		},
		{
			name:  "sort limit skip",
			query: `{"selector": {"colour": "red"}, "sort": [{"year": "desc"}], "skip": 1, "limit": 1}`,
			want:  []string{"V1"},
		},
		{
			name:  "other registry",
			query: `{"selector": {"\\$registryId": "org.acme.Car"}}`,
			want:  []string{},
		},
		{
			name:  "disjunction",
			query: `{"selector": {"$or": [{"vin": "V2"}, {"year": {"$lt": 2019}}]}}`,
			want:  []string{"V2", "V4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.ExecuteQuery(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, vins(results))
			for _, doc := range results {
				assert.NotContains(t, doc, ir.RegistryTypeKey)
				assert.NotContains(t, doc, ir.RegistryIDKey)
			}
		})
	}
}

func TestExecuteQuery_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ExecuteQuery(ctx, `not json`)
	assert.Error(t, err)

	_, err = s.ExecuteQuery(ctx, `{"selector": {"a": {"$unknown": 1}}, "extra": 1}`)
	assert.Error(t, err)
}

func TestApplyIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	definition := `{"index": {"fields": ["\\$class", "colour"]}, "name": "ByColour", "type": "json"}`
	require.NoError(t, s.ApplyIndex(ctx, definition))
	require.NoError(t, s.ApplyIndex(ctx, definition), "applying an index twice is a no-op")

	assert.Contains(t, getTableIndexes(t, s.db, "resources"), "idx_ByColour")

	assert.Error(t, s.ApplyIndex(ctx, `{"name": "Broken"}`))
}

func TestExecuteCompiledQueries(t *testing.T) {
	installed, err := network.Install(mustParseSample(t))
	require.NoError(t, err)

	s := createTestStore(t)
	ctx := context.Background()
	ns := testutil.SampleNamespace
	require.NoError(t, s.AddRegistry(ctx, Registry{Type: "Asset", ID: ns + ".SampleAsset"}))
	for _, idx := range installed.Indexes() {
		require.NoError(t, s.ApplyIndex(ctx, idx.Definition))
	}

	asset := func(id, owner, value string) ir.Object {
		return ir.Object{
			ir.ClassKey: ir.String(ns + ".SampleAsset"),
			"assetId":   ir.String(id),
			"owner":     ir.String(ir.Relationship{Type: ns + ".SampleParticipant", ID: owner}.String()),
			"value":     ir.String(value),
		}
	}
	for _, a := range []ir.Object{
		asset("A3", "alice", "10"),
		asset("A1", "alice", "20"),
		asset("A2", "bob", "10"),
	} {
		id, _ := a.GetString("assetId")
		require.NoError(t, s.AddResource(ctx, "Asset", ns+".SampleAsset", id, a))
	}

	bundle := installed.QueryBundle()
	byValue, err := bundle.Execute(ctx, s, "AssetsByValue", map[string]any{"value": "10"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A2", "A3"}, assetIDs(byValue))

	byOwner, err := bundle.Execute(ctx, s, "AssetsByOwner", map[string]any{
		"owner": "resource:" + ns + ".SampleParticipant#alice",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A3"}, assetIDs(byOwner))
}

func mustParseSample(t *testing.T) *network.Definition {
	t.Helper()
	def, err := network.Parse(testutil.SampleNetworkFiles())
	require.NoError(t, err)
	return def
}

func assetIDs(docs []ir.Object) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, _ := doc.GetString("assetId")
		out = append(out, id)
	}
	return out
}
