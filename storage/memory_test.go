package storage

import (
	"testing"
	"time"

	"github.com/dqfoundry/dqengine/engine"
)

func vendorCheck(name string) *Check {
	return &Check{
		Spec: engine.CheckSpec{
			Name:        name,
			Criticality: "error",
			Check: &engine.CheckBlock{
				Function:  "is_not_null",
				Arguments: map[string]any{"col_name": "vendor_id"},
			},
		},
	}
}

func TestInMemoryStoreAddAssignsID(t *testing.T) {
	store := NewInMemoryCheckStore()
	check := vendorCheck("vendor_present")

	if err := store.Add(check); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if check.ID == "" {
		t.Error("Add() should assign an ID")
	}
	if check.CreatedAt.IsZero() || check.UpdatedAt.IsZero() {
		t.Error("Add() should stamp timestamps")
	}
}

func TestInMemoryStoreAddRejectsDuplicateID(t *testing.T) {
	store := NewInMemoryCheckStore()
	first := vendorCheck("a")
	first.ID = "fixed"
	if err := store.Add(first); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	dup := vendorCheck("b")
	dup.ID = "fixed"
	if err := store.Add(dup); err == nil {
		t.Error("Add() should reject a duplicate ID")
	}
}

func TestInMemoryStoreGet(t *testing.T) {
	store := NewInMemoryCheckStore()
	check := vendorCheck("vendor_present")
	if err := store.Add(check); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := store.Get(check.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Spec.Name != "vendor_present" {
		t.Errorf("Get() returned %q", got.Spec.Name)
	}

	if _, err := store.Get("missing"); err == nil {
		t.Error("Get() should fail for an unknown ID")
	}
}

func TestInMemoryStoreListInsertionOrder(t *testing.T) {
	store := NewInMemoryCheckStore()
	names := []string{"first", "second", "third"}
	for _, name := range names {
		if err := store.Add(vendorCheck(name)); err != nil {
			t.Fatalf("Add(%s) failed: %v", name, err)
		}
	}

	listed, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(listed) != len(names) {
		t.Fatalf("List() returned %d checks, want %d", len(listed), len(names))
	}
	for i, name := range names {
		if listed[i].Spec.Name != name {
			t.Errorf("List()[%d] = %q, want %q", i, listed[i].Spec.Name, name)
		}
	}
}

func TestInMemoryStoreUpdatePreservesCreatedAt(t *testing.T) {
	store := NewInMemoryCheckStore()
	check := vendorCheck("before")
	if err := store.Add(check); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	created := check.CreatedAt

	time.Sleep(time.Millisecond)

	replacement := vendorCheck("after")
	replacement.ID = check.ID
	if err := store.Update(replacement); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := store.Get(check.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Spec.Name != "after" {
		t.Errorf("Update() did not replace the spec: %q", got.Spec.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("Update() should preserve CreatedAt")
	}
	if !got.UpdatedAt.After(created) {
		t.Error("Update() should advance UpdatedAt")
	}
}

func TestInMemoryStoreUpdateUnknownID(t *testing.T) {
	store := NewInMemoryCheckStore()
	check := vendorCheck("x")
	check.ID = "missing"
	if err := store.Update(check); err == nil {
		t.Error("Update() should fail for an unknown ID")
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryCheckStore()
	check := vendorCheck("x")
	if err := store.Add(check); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := store.Delete(check.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(check.ID); err == nil {
		t.Error("deleted check still retrievable")
	}
	listed, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("List() returned %d checks after delete", len(listed))
	}

	if err := store.Delete(check.ID); err == nil {
		t.Error("Delete() should fail for an unknown ID")
	}
}

func TestSpecs(t *testing.T) {
	stored := []*Check{vendorCheck("a"), vendorCheck("b")}

	specs := Specs(stored)
	if len(specs) != 2 {
		t.Fatalf("Specs() returned %d specs", len(specs))
	}
	if specs[0].Name != "a" || specs[1].Name != "b" {
		t.Errorf("Specs() order wrong: %q, %q", specs[0].Name, specs[1].Name)
	}
}
