package config

import (
	"testing"
	"time"

	"hytun/internal/storage/jsonfile"
)

func TestNewManagerBootstrapsDefaults(t *testing.T) {
	store, err := jsonfile.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(store)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	s := m.Get()
	if s.WebPort != 8080 {
		t.Errorf("web port = %d, want 8080", s.WebPort)
	}
	if s.ServiceName != "hysteria2-client" {
		t.Errorf("service name = %q", s.ServiceName)
	}
	if s.LockoutThreshold != 5 {
		t.Errorf("lockout threshold = %d, want 5", s.LockoutThreshold)
	}
	if s.SessionTTL() != 24*time.Hour {
		t.Errorf("session ttl = %v, want 24h", s.SessionTTL())
	}

	// The defaults must have been written so the first run is visible on
	// disk.
	var onDisk Settings
	if err := store.Load("settings", &onDisk); err != nil {
		t.Fatalf("settings document missing: %v", err)
	}
}

func TestUpdatePersistsAndFillsZeroes(t *testing.T) {
	store, err := jsonfile.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(store)
	if err != nil {
		t.Fatal(err)
	}

	s := m.Get()
	s.WebPort = 9090
	s.LockoutThreshold = 0 // zero fields fall back to defaults
	if err := m.Update(s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got := m.Get()
	if got.WebPort != 9090 {
		t.Errorf("web port = %d, want 9090", got.WebPort)
	}
	if got.LockoutThreshold != 5 {
		t.Errorf("zero lockout threshold not defaulted: %d", got.LockoutThreshold)
	}

	// A fresh manager over the same store sees the update.
	m2, err := NewManager(store)
	if err != nil {
		t.Fatal(err)
	}
	if m2.Get().WebPort != 9090 {
		t.Error("update not persisted")
	}
}
