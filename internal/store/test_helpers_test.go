package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

const vehicleType = "org.acme.Vehicle"

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRegistry adds the asset registry for vehicleType.
func createTestRegistry(t *testing.T, s *Store) {
	t.Helper()
	err := s.AddRegistry(context.Background(), Registry{Type: "Asset", ID: vehicleType, Name: "Vehicles"})
	if err != nil {
		t.Fatalf("AddRegistry() failed: %v", err)
	}
}

// vehicle creates a vehicle document with minimal required fields.
func vehicle(vin, colour string, year int64) ir.Object {
	return ir.Object{
		ir.ClassKey: ir.String(vehicleType),
		"vin":       ir.String(vin),
		"colour":    ir.String(colour),
		"year":      ir.Int(year),
	}
}

// addVehicles stores vehicles in the vehicleType registry.
func addVehicles(t *testing.T, s *Store, docs ...ir.Object) {
	t.Helper()
	for _, doc := range docs {
		id, _ := doc.GetString("vin")
		if err := s.AddResource(context.Background(), "Asset", vehicleType, id, doc); err != nil {
			t.Fatalf("AddResource(%s) failed: %v", id, err)
		}
	}
}
