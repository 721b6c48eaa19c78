package engine

import (
	"context"
	"maps"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

const ns = testutil.SampleNamespace

const (
	assetType       = ns + ".SampleAsset"
	participantType = ns + ".SampleParticipant"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// installNetwork installs the sample network with extra files added.
func installNetwork(t *testing.T, extra map[string]string) *network.InstalledBusinessNetwork {
	t.Helper()
	files := testutil.SampleNetworkFiles()
	maps.Copy(files, extra)
	def, err := network.Parse(files)
	require.NoError(t, err)
	net, err := network.Install(def)
	require.NoError(t, err)
	return net
}

func participant(id string) ir.Object {
	return ir.Object{
		ir.ClassKey:     ir.String(participantType),
		"participantId": ir.String(id),
		"firstName":     ir.String(id),
		"lastName":      ir.String("Sample"),
	}
}

func asset(id, owner, value string) ir.Object {
	return ir.Object{
		ir.ClassKey: ir.String(assetType),
		"assetId":   ir.String(id),
		"owner":     ir.String(ir.Relationship{Type: participantType, ID: owner}.String()),
		"value":     ir.String(value),
	}
}

type fixture struct {
	engine *Engine
	net    *network.InstalledBusinessNetwork
	store  *store.Store
}

// newFixture deploys the sample network with participants alice, bob and
// admin, and assets A1 (alice, 10), A2 (bob, 10) and A3 (alice, 20).
func newFixture(t *testing.T, extra map[string]string, opts ...EngineOption) *fixture {
	t.Helper()
	ctx := context.Background()
	s := setupTestStore(t)
	net := installNetwork(t, extra)

	opts = append([]EngineOption{
		WithIDGenerator(testutil.NewSequenceIDGenerator("tx")),
		WithClock(testutil.NewDeterministicClock()),
	}, opts...)
	e := New(s, opts...)
	require.NoError(t, e.Deploy(ctx, net))
	require.NoError(t, e.AddResources(ctx, net,
		participant("alice"),
		participant("bob"),
		participant("admin"),
		asset("A1", "alice", "10"),
		asset("A2", "bob", "10"),
		asset("A3", "alice", "20"),
	))
	return &fixture{engine: e, net: net, store: s}
}

func (f *fixture) participant(t *testing.T, id string) ir.Object {
	t.Helper()
	p, err := f.engine.LookupParticipant(context.Background(), f.net, participantType+"#"+id)
	require.NoError(t, err)
	return p
}

// stored reads a resource as the system.
func (f *fixture) stored(t *testing.T, registryType, registryID, id string) ir.Object {
	t.Helper()
	doc, err := f.store.Resource(context.Background(), registryType, registryID, id)
	require.NoError(t, err)
	return doc
}

func sampleTransaction(assetID, newValue string) ir.Object {
	return ir.Object{
		ir.ClassKey: ir.String(ns + ".SampleTransaction"),
		"asset":     ir.String(ir.Relationship{Type: assetType, ID: assetID}.String()),
		"newValue":  ir.String(newValue),
	}
}

func ids(docs []ir.Object, field string) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, _ := doc.GetString(field)
		out = append(out, id)
	}
	return out
}
