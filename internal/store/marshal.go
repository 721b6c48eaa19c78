package store

import (
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// marshalDocument converts a document to JSON TEXT for storage. The
// registry discriminators live in their own columns and are dropped.
//
// MarshalValue is used rather than canonical JSON: stored strings must
// round-trip unchanged, and documents may hold floats and nulls.
func marshalDocument(doc ir.Object) (string, error) {
	stored := withoutDiscriminators(doc)
	data, err := ir.MarshalValue(stored)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses stored JSON TEXT. Integral numbers come back as
// ir.Int, so values above 2^53 keep their precision.
func unmarshalDocument(data string) (ir.Object, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal document: expected a JSON object, got %T", v)
	}
	return obj, nil
}

// withoutDiscriminators returns doc without $registryType and $registryId.
// doc is copied only when it holds either key.
func withoutDiscriminators(doc ir.Object) ir.Object {
	_, hasType := doc[ir.RegistryTypeKey]
	_, hasID := doc[ir.RegistryIDKey]
	if !hasType && !hasID {
		return doc
	}
	out := make(ir.Object, len(doc))
	for k, v := range doc {
		if k == ir.RegistryTypeKey || k == ir.RegistryIDKey {
			continue
		}
		out[k] = v
	}
	return out
}
