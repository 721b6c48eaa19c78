package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

const (
	alice       = "org.acme.sample.SampleParticipant#alice"
	bob         = "org.acme.sample.SampleParticipant#bob"
	updateA1    = `{"$class": "org.acme.sample.SampleTransaction", "asset": "resource:org.acme.sample.SampleAsset#A1", "newValue": "42"}`
	resetValues = `{"$class": "org.acme.sample.ResetValues", "value": "10"}`
)

// seededWorld writes the sample network and a world state holding the
// sample seed. It returns the network directory and the database path.
func seededWorld(t *testing.T) (string, string) {
	t.Helper()
	dir := testutil.WriteSampleNetwork(t)
	db := filepath.Join(t.TempDir(), "world.db")
	_, err := execute(t, "submit", dir, `{"$class": "org.acme.sample.ResetValues", "value": "none"}`,
		"--db", db, "--seed", writeFile(t, "seed.json", sampleSeed))
	require.NoError(t, err)
	return dir, db
}

func TestSubmit_Committed(t *testing.T) {
	dir, db := seededWorld(t)

	out, err := execute(t, "submit", dir, updateA1, "--db", db, "--participant", alice)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ org.acme.sample.SampleTransaction committed as ")
	assert.Contains(t, out, "  1 function(s) executed\n")
	assert.Contains(t, out, "  returned [\"A1=42\"]\n")
	assert.Contains(t, out, `"newValue":"42","oldValue":"10"`)
}

func TestSubmit_JSON(t *testing.T) {
	dir, db := seededWorld(t)

	out, err := execute(t, "submit", dir, updateA1, "--db", db, "--participant", "resource:"+alice, "--format", "json")
	require.NoError(t, err)

	resp, result := decodeResponse[struct {
		TransactionID string           `json:"transaction_id"`
		Seq           int64            `json:"seq"`
		Executed      int              `json:"executed"`
		ReturnValues  []any            `json:"return_values"`
		Events        []map[string]any `json:"events"`
	}](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Equal(t, resp.TransactionID, result.TransactionID)
	assert.Equal(t, int64(1), result.Seq)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, []any{"A1=42"}, result.ReturnValues)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "org.acme.sample.SampleEvent", result.Events[0]["$class"])
	assert.Equal(t, resp.TransactionID+"#0", result.Events[0]["eventId"])
}

func TestSubmit_StatePersists(t *testing.T) {
	dir, db := seededWorld(t)

	_, err := execute(t, "submit", dir, updateA1, "--db", db, "--participant", alice)
	require.NoError(t, err)

	out, err := execute(t, "query", dir, "AssetsByValue", "--param", "value=42", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"assetId":"A1"`)
}

func TestSubmit_RolledBack(t *testing.T) {
	dir, db := seededWorld(t)

	t.Run("access denied", func(t *testing.T) {
		out, err := execute(t, "submit", dir, resetValues, "--db", db, "--participant", bob, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		resp, _ := decodeResponse[any](t, out)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ACCESS_DENIED", resp.Error.Code)
		assert.NotEmpty(t, resp.TransactionID)
	})

	t.Run("script failure", func(t *testing.T) {
		tx := `{"$class": "org.acme.sample.SampleTransaction", "asset": "resource:org.acme.sample.SampleAsset#A2", "newValue": "1"}`
		out, err := execute(t, "submit", dir, tx, "--db", db, "--participant", alice)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ org.acme.sample.SampleTransaction rolled back [")
	})

	t.Run("not a transaction", func(t *testing.T) {
		tx := `{"$class": "org.acme.sample.SampleAsset", "assetId": "A9", "owner": "resource:` + alice + `", "value": "1"}`
		out, err := execute(t, "submit", dir, tx, "--db", db)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "[INVALID_RESOURCE]")
	})
}

func TestSubmit_System(t *testing.T) {
	dir, db := seededWorld(t)

	out, err := execute(t, "submit", dir, resetValues, "--db", db)
	require.NoError(t, err, "the system bypasses access control")
	assert.Contains(t, out, "  returned [2]\n")
}

func TestSubmit_Input(t *testing.T) {
	dir, db := seededWorld(t)

	t.Run("file", func(t *testing.T) {
		path := writeFile(t, "tx.json", updateA1)
		_, err := execute(t, "submit", dir, "@"+path, "--db", db, "--participant", alice)
		assert.NoError(t, err)
	})

	t.Run("stdin", func(t *testing.T) {
		cmd := NewRootCommand()
		out := &strings.Builder{}
		cmd.SetOut(out)
		cmd.SetErr(&strings.Builder{})
		cmd.SetIn(strings.NewReader(resetValues))
		cmd.SetArgs([]string{"submit", dir, "-", "--db", db})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "ResetValues committed")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		out, err := execute(t, "submit", dir, "{", "--db", db)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E011]")
	})

	t.Run("not an object", func(t *testing.T) {
		out, err := execute(t, "submit", dir, "[1]", "--db", db)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "expected a JSON object")
	})

	t.Run("unknown participant", func(t *testing.T) {
		out, err := execute(t, "submit", dir, updateA1, "--db", db, "--participant", "org.acme.sample.SampleParticipant#ghost")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [RESOURCE_NOT_FOUND]")
	})

	t.Run("invalid seed", func(t *testing.T) {
		seed := writeFile(t, "seed.json", `[{"$class": "org.acme.sample.SampleParticipant", "participantId": "carol"}]`)
		out, err := execute(t, "submit", dir, resetValues, "--db", db, "--seed", seed)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [INVALID_RESOURCE]")
	})
}

func TestSubmit_Metrics(t *testing.T) {
	dir, db := seededWorld(t)
	path := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := execute(t, "submit", dir, updateA1, "--db", db, "--participant", alice, "--metrics", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `composer_engine_transactions_total{status="committed"} 1`)
	assert.Contains(t, string(data), "composer_network_installs_total 1")
}
