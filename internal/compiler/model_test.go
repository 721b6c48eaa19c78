package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func compileCUE(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompileModels(t *testing.T) {
	v := compileCUE(t, `
model: "org.acme.sample": {
	SampleParticipant: {
		kind:         "participant"
		identifiedBy: "participantId"
		fields: {
			participantId: "String"
			firstName:     "String"
		}
	}
	SampleAsset: {
		kind:         "asset"
		identifiedBy: "assetId"
		fields: {
			assetId: "String"
			owner:   "--> SampleParticipant"
			value:   "String"
			tags:    "String[]?"
			history: {type: "org.acme.sample.Entry", array: true, optional: true}
		}
	}
	Entry: {
		kind: "concept"
		fields: when: "DateTime"
	}
	Colour: {
		kind:   "enum"
		values: ["RED", "GREEN"]
	}
	Special: {
		kind:    "asset"
		extends: "SampleAsset"
	}
}
`)

	decls, err := CompileModels(v)
	require.NoError(t, err)
	require.Len(t, decls, 5)

	assert.Equal(t, "org.acme.sample.SampleParticipant", decls[0].FullyQualifiedName())
	assert.Equal(t, ir.KindParticipant, decls[0].Kind)

	asset := decls[1]
	assert.Equal(t, "assetId", asset.IdentifiedBy)
	assert.Equal(t, []ir.FieldDeclaration{
		{Name: "assetId", Type: "String"},
		{Name: "owner", Type: "org.acme.sample.SampleParticipant", Relationship: true},
		{Name: "value", Type: "String"},
		{Name: "tags", Type: "String", Array: true, Optional: true},
		{Name: "history", Type: "org.acme.sample.Entry", Array: true, Optional: true},
	}, asset.Fields)

	assert.Equal(t, []string{"RED", "GREEN"}, decls[3].EnumValues)
	assert.Equal(t, "org.acme.sample.SampleAsset", decls[4].SuperType)

	assert.Empty(t, ValidateNetwork(decls, nil))
}

func TestCompileModelsMissingKind(t *testing.T) {
	v := compileCUE(t, `model: "n": X: fields: a: "String"`)

	_, err := CompileModels(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "kind", ce.Field)
}

func TestCompileModelsEnumWithFields(t *testing.T) {
	v := compileCUE(t, `model: "n": E: {kind: "enum", values: ["A"], fields: a: "String"}`)

	_, err := CompileModels(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enumerations declare values")
}

func TestCompileModelsAbsent(t *testing.T) {
	decls, err := CompileModels(compileCUE(t, `other: 1`))
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "String", qualify("n", "String"))
	assert.Equal(t, "n.Car", qualify("n", "Car"))
	assert.Equal(t, "m.Car", qualify("n", "m.Car"))
}
