package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

func newTestContext(t *testing.T, f *fixture, who string, requester script.Requester) *transactionContext {
	t.Helper()
	tx := sampleTransaction("A1", "42")
	tx[model.TransactionIDField] = ir.String("tx-9")
	tx[model.TimestampField] = ir.String("2024-01-01T00:00:09Z")
	var p ir.Object
	if who != "" {
		p = f.participant(t, who)
	}
	return newTransactionContext(f.net, f.store, p, tx, requester)
}

func sampleEvent() ir.Object {
	return ir.Object{
		ir.ClassKey: ir.String(ns + ".SampleEvent"),
		"asset":     ir.String("resource:" + assetType + "#A1"),
		"oldValue":  ir.String("1"),
		"newValue":  ir.String("2"),
	}
}

func TestTransactionContext_Emit(t *testing.T) {
	f := newFixture(t, nil)
	tc := newTestContext(t, f, "alice", nil)
	ctx := context.Background()

	require.NoError(t, tc.Emit(ctx, sampleEvent()))
	require.NoError(t, tc.Emit(ctx, sampleEvent()))

	require.Len(t, tc.events, 2)
	assert.Equal(t, ir.String("tx-9#0"), tc.events[0]["eventId"])
	assert.Equal(t, ir.String("tx-9#1"), tc.events[1]["eventId"])
	assert.Equal(t, ir.String("2024-01-01T00:00:09Z"), tc.events[0]["timestamp"])

	err := tc.Emit(ctx, asset("A1", "alice", "1"))
	assert.True(t, IsInvalidResourceError(err), "only events can be emitted")

	incomplete := sampleEvent()
	delete(incomplete, "newValue")
	assert.True(t, IsInvalidResourceError(tc.Emit(ctx, incomplete)))
	assert.Len(t, tc.events, 2)
}

func TestTransactionContext_Participant(t *testing.T) {
	f := newFixture(t, nil)

	tc := newTestContext(t, f, "alice", nil)
	assert.Equal(t, participant("alice"), tc.GetCurrentParticipant())
	assert.Equal(t, ir.Object{
		"participant": ir.String("resource:" + participantType + "#alice"),
	}, tc.GetCurrentIdentity())

	tc.GetCurrentParticipant()["firstName"] = ir.String("changed")
	assert.Equal(t, ir.String("alice"), tc.participant["firstName"], "callers get a copy")

	system := newTestContext(t, f, "", nil)
	assert.Nil(t, system.GetCurrentParticipant())
	assert.Nil(t, system.GetCurrentIdentity())
	assert.Nil(t, system.GetNativeAPI())
}

func TestTransactionContext_Registries(t *testing.T) {
	f := newFixture(t, nil)
	tc := newTestContext(t, f, "alice", nil)
	ctx := context.Background()

	reg, err := tc.GetAssetRegistry(ctx, assetType)
	require.NoError(t, err)
	assert.Equal(t, "Asset", reg.Type())

	reg, err = tc.GetParticipantRegistry(ctx, participantType)
	require.NoError(t, err)
	assert.Equal(t, "Participant", reg.Type())

	reg, err = tc.GetTransactionRegistry(ctx, ns+".SampleTransaction")
	require.NoError(t, err)
	assert.Equal(t, "Transaction", reg.Type())

	_, err = tc.GetAssetRegistry(ctx, participantType)
	assert.True(t, IsNotFoundError(err), "registry IDs are scoped by type")
}

func TestTransactionContext_BuildQuery(t *testing.T) {
	f := newFixture(t, nil)
	tc := newTestContext(t, f, "alice", nil)

	id, err := tc.BuildQuery("SELECT " + assetType + " WHERE (value == _$value)")
	require.NoError(t, err)

	results, err := tc.Query(context.Background(), id, map[string]any{"value": "20"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A3"}, ids(results, "assetId"))
}

func TestTransactionContext_Post(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestContext(t, f, "alice", nil).Post(ctx, srv.URL, ir.Null{})
	assert.ErrorIs(t, err, ErrRequestsDisabled)

	tc := newTestContext(t, f, "alice", NewHTTPRequester(srv.Client()))
	doc := asset("A1", "alice", "1")
	doc["owner"] = participant("alice")
	got, err := tc.Post(ctx, srv.URL, doc)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"ok": ir.Bool(true)}, got)
	assert.Equal(t,
		`{"$class":"org.acme.sample.SampleAsset","assetId":"A1","owner":"resource:org.acme.sample.SampleParticipant#alice","value":"1"}`,
		<-received, "resources are serialized before sending")
}
