package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHashMatchesKnownDigest(t *testing.T) {
	assert.Equal(t,
		"47c3ada49abf4704f9a0cdbabfdde9fa6fdb83872755b481a9cca607e8fce09d",
		QueryHash("SELECT org.acme.sample.SampleAsset"))
}

func TestNetworkHashDeterminism(t *testing.T) {
	a := Object{"name": String("net"), "scripts": Object{"lib/a.star": String("x = 1")}}
	b := Object{"scripts": Object{"lib/a.star": String("x = 1")}, "name": String("net")}

	ha, err := NetworkHash(a)
	require.NoError(t, err)
	hb, err := NetworkHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64, "SHA-256 hex is 64 characters")
	assert.NotEqual(t, ha, MustNetworkHash(Object{"name": String("other")}))
}

func TestNetworkHashRejectsFloats(t *testing.T) {
	_, err := NetworkHash(Object{"x": Float(0.5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NetworkHash")
}
