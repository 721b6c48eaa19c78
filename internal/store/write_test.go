package store

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func TestAddRegistry_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := Registry{Type: "Asset", ID: vehicleType, Name: "Vehicles"}
	if err := s.AddRegistry(ctx, first); err != nil {
		t.Fatalf("AddRegistry() failed: %v", err)
	}
	// Second add keeps the original name.
	if err := s.AddRegistry(ctx, Registry{Type: "Asset", ID: vehicleType, Name: "Other", System: true}); err != nil {
		t.Fatalf("second AddRegistry() failed: %v", err)
	}

	got, err := s.Registry(ctx, "Asset", vehicleType)
	if err != nil {
		t.Fatalf("Registry() failed: %v", err)
	}
	if got != first {
		t.Errorf("Registry() = %+v, want %+v", got, first)
	}
}

func TestAddRegistry_RequiresKey(t *testing.T) {
	s := createTestStore(t)
	if err := s.AddRegistry(context.Background(), Registry{Type: "Asset"}); err == nil {
		t.Error("expected error for registry without id, got nil")
	}
}

func TestRemoveRegistry_RemovesResources(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	addVehicles(t, s, vehicle("V1", "red", 2020))
	ctx := context.Background()

	if err := s.RemoveRegistry(ctx, "Asset", vehicleType); err != nil {
		t.Fatalf("RemoveRegistry() failed: %v", err)
	}
	if _, err := s.Registry(ctx, "Asset", vehicleType); !errors.Is(err, ErrRegistryNotFound) {
		t.Errorf("Registry() after remove = %v, want ErrRegistryNotFound", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM resources").Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("resources left after registry removal: %d", n)
	}

	if err := s.RemoveRegistry(ctx, "Asset", vehicleType); !errors.Is(err, ErrRegistryNotFound) {
		t.Errorf("second RemoveRegistry() = %v, want ErrRegistryNotFound", err)
	}
}

func TestAddResource_Basic(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	ctx := context.Background()

	doc := vehicle("V1", "red", 2020)
	if err := s.AddResource(ctx, "Asset", vehicleType, "V1", doc); err != nil {
		t.Fatalf("AddResource() failed: %v", err)
	}

	var class, data string
	err := s.db.QueryRow(`SELECT class, data FROM resources WHERE id = 'V1'`).Scan(&class, &data)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if class != vehicleType {
		t.Errorf("class = %q, want %q", class, vehicleType)
	}
	expected := `{"$class":"org.acme.Vehicle","colour":"red","vin":"V1","year":2020}`
	if data != expected {
		t.Errorf("data = %s, want %s", data, expected)
	}
}

func TestAddResource_StripsDiscriminators(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	ctx := context.Background()

	doc := vehicle("V1", "red", 2020)
	doc[ir.RegistryTypeKey] = ir.String("Asset")
	doc[ir.RegistryIDKey] = ir.String(vehicleType)
	if err := s.AddResource(ctx, "Asset", vehicleType, "V1", doc); err != nil {
		t.Fatalf("AddResource() failed: %v", err)
	}

	got, err := s.Resource(ctx, "Asset", vehicleType, "V1")
	if err != nil {
		t.Fatalf("Resource() failed: %v", err)
	}
	if _, ok := got[ir.RegistryTypeKey]; ok {
		t.Error("stored document kept $registryType")
	}
	if _, ok := got[ir.RegistryIDKey]; ok {
		t.Error("stored document kept $registryId")
	}
	// The caller's document is untouched.
	if _, ok := doc[ir.RegistryTypeKey]; !ok {
		t.Error("AddResource() modified its argument")
	}
}

func TestAddResource_Duplicate(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	addVehicles(t, s, vehicle("V1", "red", 2020))

	err := s.AddResource(context.Background(), "Asset", vehicleType, "V1", vehicle("V1", "blue", 2021))
	if !errors.Is(err, ErrResourceExists) {
		t.Fatalf("AddResource() duplicate = %v, want ErrResourceExists", err)
	}

	got, err := s.Resource(context.Background(), "Asset", vehicleType, "V1")
	if err != nil {
		t.Fatalf("Resource() failed: %v", err)
	}
	if colour, _ := got.GetString("colour"); colour != "red" {
		t.Errorf("duplicate add overwrote resource: colour = %q", colour)
	}
}

func TestAddResource_UnknownRegistry(t *testing.T) {
	s := createTestStore(t)

	err := s.AddResource(context.Background(), "Asset", vehicleType, "V1", vehicle("V1", "red", 2020))
	if !errors.Is(err, ErrRegistryNotFound) {
		t.Fatalf("AddResource() = %v, want ErrRegistryNotFound", err)
	}
}

func TestUpdateResource(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	addVehicles(t, s, vehicle("V1", "red", 2020))
	ctx := context.Background()

	if err := s.UpdateResource(ctx, "Asset", vehicleType, "V1", vehicle("V1", "green", 2020)); err != nil {
		t.Fatalf("UpdateResource() failed: %v", err)
	}
	got, err := s.Resource(ctx, "Asset", vehicleType, "V1")
	if err != nil {
		t.Fatalf("Resource() failed: %v", err)
	}
	if colour, _ := got.GetString("colour"); colour != "green" {
		t.Errorf("colour = %q, want green", colour)
	}

	err = s.UpdateResource(ctx, "Asset", vehicleType, "V9", vehicle("V9", "green", 2020))
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("UpdateResource() missing = %v, want ErrResourceNotFound", err)
	}
}

func TestRemoveResource(t *testing.T) {
	s := createTestStore(t)
	createTestRegistry(t, s)
	addVehicles(t, s, vehicle("V1", "red", 2020))
	ctx := context.Background()

	if err := s.RemoveResource(ctx, "Asset", vehicleType, "V1"); err != nil {
		t.Fatalf("RemoveResource() failed: %v", err)
	}
	if exists, _ := s.ResourceExists(ctx, "Asset", vehicleType, "V1"); exists {
		t.Error("resource still exists after removal")
	}
	if err := s.RemoveResource(ctx, "Asset", vehicleType, "V1"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("second RemoveResource() = %v, want ErrResourceNotFound", err)
	}
}
