package mango

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func TestEncodeKeepsInsertionOrder(t *testing.T) {
	doc := NewObject(
		F(SelectorKey, NewObject(
			F(EscapeField("$class"), "a.b.Asset"),
			F(EscapeField("$registryType"), "Asset"),
			F(EscapeField("$registryId"), "a.b.Asset"),
			F("value", NewObject(F("$eq", "Green hat"))),
		)),
		F(LimitKey, int64(5)),
	)

	out, err := Encode(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"selector":{"\\$class":"a.b.Asset","\\$registryType":"Asset","\\$registryId":"a.b.Asset","value":{"$eq":"Green hat"}},"limit":5}`, string(out))
}

func TestEncodeStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html is not escaped", "<a&b>", `"<a&b>"`},
		{"quotes and backslash", `say "hi" \ bye`, `"say \"hi\" \\ bye"`},
		{"short escapes", "\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"other control characters", "\x01\x1f", `"\u0001\u001f"`},
		{"line separators stay literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"non-ascii stays literal", "héllo 世界", `"héllo 世界"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestEncodeNumbers(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{5, "5"},
		{int64(-12), "-12"},
		{0.1, "0.1"},
		{1.5, "1.5"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{ir.Float(2.5), "2.5"},
		{ir.Int(42), "42"},
	}
	for _, tt := range tests {
		out, err := Encode(tt.in, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(out))
	}
}

func TestEncodeParams(t *testing.T) {
	doc := NewObject(
		F("value", NewObject(F("$eq", Param{Name: "foo"}))),
		F("tags", NewObject(F("$all", Param{Name: "tag", AsArray: true}))),
	)

	out, err := Encode(doc, Params{"foo": "bar", "tag": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"value":{"$eq":"bar"},"tags":{"$all":["x"]}}`, string(out))

	out, err = Encode(doc, Params{"foo": ir.Int(3), "tag": []any{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, `{"value":{"$eq":3},"tags":{"$all":["x","y"]}}`, string(out))

	_, err = Encode(doc, Params{"tag": "x"})
	require.Error(t, err)
	var perr *ParamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "foo", perr.Name)
}

func TestEncodeMapsSortKeys(t *testing.T) {
	out, err := Encode(map[string]any{"b": true, "a": nil, "c": ir.Object{"z": ir.Int(1), "y": ir.Null{}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":true,"c":{"y":null,"z":1}}`, string(out))
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(NewObject(F("f", struct{}{})), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f: cannot encode value of type struct {}")
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsObject(NewObject()))
	assert.True(t, IsObject(ir.Object{}))
	assert.False(t, IsObject((*Object)(nil)))
	assert.False(t, IsObject("x"))
	assert.True(t, IsArray(Array{}))
	assert.True(t, IsArray(ir.Array{}))
	assert.False(t, IsArray(Param{Name: "p"}))
}
