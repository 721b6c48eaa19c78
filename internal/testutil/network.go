package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SampleNamespace is the model namespace of the sample network.
const SampleNamespace = "org.acme.sample"

const sampleMetadata = `name: sample-network
version: 0.0.1
description: Sample business network
`

const sampleParticipants = `model: "org.acme.sample": {
	SampleParticipant: {
		kind:         "participant"
		identifiedBy: "participantId"
		fields: {
			participantId: "String"
			firstName:     "String"
			lastName:      "String"
		}
	}
}
`

const sampleModels = `model: "org.acme.sample": {
	SampleAsset: {
		kind:         "asset"
		identifiedBy: "assetId"
		fields: {
			assetId: "String"
			owner:   "--> SampleParticipant"
			value:   "String"
		}
	}
	SampleTransaction: {
		kind: "transaction"
		fields: {
			asset:    "--> SampleAsset"
			newValue: "String"
		}
	}
	ResetValues: {
		kind: "transaction"
		fields: {
			value: "String"
		}
	}
	SampleEvent: {
		kind: "event"
		fields: {
			asset:    "--> SampleAsset"
			oldValue: "String"
			newValue: "String"
		}
	}
}
`

const samplePermissions = `rule: NobodyDeletesAssets: {
	description: "assets are never deleted"
	participant: "ANY"
	resource:    "org.acme.sample.SampleAsset"
	operation:   "DELETE"
	action:      "DENY"
}

rule: ParticipantsSeeThemselves: {
	description: "participants may read their own record"
	participant: {type: "org.acme.sample.SampleParticipant", variable: "p"}
	resource:    {type: "org.acme.sample.SampleParticipant", variable: "r"}
	operation:   "READ"
	condition:   "r.participantId == p.participantId"
	action:      "ALLOW"
}

rule: OwnersManageAssets: {
	description: "owners have full access to their assets"
	participant: {type: "org.acme.sample.SampleParticipant", variable: "p"}
	resource:    {type: "org.acme.sample.SampleAsset", variable: "r"}
	operation:   "ALL"
	condition:   "getIdentifier(r.owner) == p.participantId"
	action:      "ALLOW"
}

rule: SubmitSampleTransactions: {
	description: "participants may submit sample transactions"
	participant: "org.acme.sample.SampleParticipant"
	resource:    "org.acme.sample.SampleTransaction"
	operation:   "CREATE"
	action:      "ALLOW"
}

rule: AdminSubmitsReset: {
	description: "only the admin may reset values"
	participant: "org.acme.sample.SampleParticipant#admin"
	resource:    "org.acme.sample.ResetValues"
	operation:   "CREATE"
	action:      "ALLOW"
}

rule: AdminResetsAnyAsset: {
	description: "the admin may read and update any asset while resetting"
	participant: "org.acme.sample.SampleParticipant#admin"
	resource:    "org.acme.sample.SampleAsset"
	transaction: "org.acme.sample.ResetValues"
	operation:   ["READ", "UPDATE"]
	action:      "ALLOW"
}
`

const sampleScript = `def describe(asset):
    return "%s=%s" % (asset.assetId, asset.value)

def onSampleTransaction(tx):
    """
    Changes the value of an asset and announces the change.
    @param {org.acme.sample.SampleTransaction} tx
    @transaction
    """
    old = tx.asset.value
    tx.asset.value = tx.newValue
    getAssetRegistry("org.acme.sample.SampleAsset").update(tx.asset)

    event = getFactory().newEvent("org.acme.sample", "SampleEvent")
    event.asset = tx.asset
    event.oldValue = old
    event.newValue = tx.newValue
    emit(event)
    return describe(tx.asset)

def resetValues(tx):
    """
    Resets every asset holding a value.
    @param {org.acme.sample.ResetValues} tx
    @transaction
    """
    assets = query("AssetsByValue", {"value": tx.value})
    for asset in assets:
        asset.value = "reset"
    getAssetRegistry("org.acme.sample.SampleAsset").updateAll(assets)
    return len(assets)
`

const sampleQueries = `query AssetsByValue {
    description: "Select the assets holding a value"
    statement:
        SELECT org.acme.sample.SampleAsset
            WHERE (value == _$value)
}

query AssetsByOwner {
    description: "Select the assets of one owner"
    statement:
        SELECT org.acme.sample.SampleAsset
            WHERE (owner == _$owner)
            ORDER BY [assetId ASC]
}
`

// SampleNetworkFiles returns the files of the sample network keyed by
// slash-separated path.
func SampleNetworkFiles() map[string]string {
	return map[string]string{
		"network.yaml":            sampleMetadata,
		"models/participants.cue": sampleParticipants,
		"models/sample.cue":       sampleModels,
		"permissions.cue":         samplePermissions,
		"lib/sample.star":         sampleScript,
		"queries.qry":             sampleQueries,
	}
}

// WriteNetwork writes files below dir and returns dir.
func WriteNetwork(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// WriteSampleNetwork writes the sample network into a fresh temporary
// directory and returns its path.
func WriteSampleNetwork(t *testing.T) string {
	t.Helper()
	return WriteNetwork(t, t.TempDir(), SampleNetworkFiles())
}
