package store

import (
	"testing"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func TestMarshalDocument_SortedKeys(t *testing.T) {
	doc := ir.Object{
		"name":     ir.String("widget"),
		"quantity": ir.Int(42),
		"active":   ir.Bool(true),
	}
	json, err := marshalDocument(doc)
	if err != nil {
		t.Fatalf("marshalDocument() failed: %v", err)
	}

	expected := `{"active":true,"name":"widget","quantity":42}`
	if json != expected {
		t.Errorf("marshalDocument() = %q, want %q", json, expected)
	}
}

func TestMarshalDocument_KeepsStringsUnnormalized(t *testing.T) {
	// "e" followed by a combining acute accent; NFC would compose it.
	decomposed := "e\u0301"
	json, err := marshalDocument(ir.Object{"name": ir.String(decomposed)})
	if err != nil {
		t.Fatalf("marshalDocument() failed: %v", err)
	}

	doc, err := unmarshalDocument(json)
	if err != nil {
		t.Fatalf("unmarshalDocument() failed: %v", err)
	}
	if got, _ := doc.GetString("name"); got != decomposed {
		t.Errorf("round trip = %q, want %q", got, decomposed)
	}
}

func TestMarshalDocument_NoHTMLEscaping(t *testing.T) {
	json, err := marshalDocument(ir.Object{"html": ir.String("<b>&</b>")})
	if err != nil {
		t.Fatalf("marshalDocument() failed: %v", err)
	}
	expected := `{"html":"<b>&</b>"}`
	if json != expected {
		t.Errorf("marshalDocument() = %q, want %q", json, expected)
	}
}

func TestMarshalDocument_DropsDiscriminators(t *testing.T) {
	json, err := marshalDocument(ir.Object{
		ir.ClassKey:        ir.String("org.acme.T"),
		ir.RegistryTypeKey: ir.String("Asset"),
		ir.RegistryIDKey:   ir.String("org.acme.T"),
	})
	if err != nil {
		t.Fatalf("marshalDocument() failed: %v", err)
	}
	expected := `{"$class":"org.acme.T"}`
	if json != expected {
		t.Errorf("marshalDocument() = %q, want %q", json, expected)
	}
}

func TestUnmarshalDocument_LargeInteger(t *testing.T) {
	// 2^53 + 1 is not representable as float64.
	doc, err := unmarshalDocument(`{"n":9007199254740993}`)
	if err != nil {
		t.Fatalf("unmarshalDocument() failed: %v", err)
	}
	if doc["n"] != ir.Int(9007199254740993) {
		t.Errorf("n = %v, want 9007199254740993", doc["n"])
	}
}

func TestUnmarshalDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"array", `[1, 2]`},
		{"string", `"text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := unmarshalDocument(tt.data); err == nil {
				t.Errorf("unmarshalDocument(%s) expected error, got nil", tt.data)
			}
		})
	}
}
