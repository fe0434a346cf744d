package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoginEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	events := []*LoginEvent{
		{Username: "admin", Success: false, RemoteAddr: "203.0.113.5", OccurredAt: time.Now().Add(-2 * time.Minute)},
		{Username: "admin", Success: true, RemoteAddr: "203.0.113.5", OccurredAt: time.Now()},
	}
	for _, ev := range events {
		if err := db.RecordLogin(ctx, ev); err != nil {
			t.Fatalf("RecordLogin failed: %v", err)
		}
		if ev.ID == 0 {
			t.Error("event ID not assigned")
		}
	}

	got, err := db.RecentLogins(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogins failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Newest first.
	if !got[0].Success || got[1].Success {
		t.Error("events not ordered newest first")
	}
}

func TestStatusSamples(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := &StatusSample{ServiceActive: true, TunUp: true, CurrentNode: "abcd1234", SampledAt: time.Now()}
	if err := db.RecordStatus(ctx, s); err != nil {
		t.Fatalf("RecordStatus failed: %v", err)
	}

	got, err := db.StatusHistory(ctx, 10)
	if err != nil {
		t.Fatalf("StatusHistory failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
	if !got[0].ServiceActive || !got[0].TunUp || got[0].CurrentNode != "abcd1234" {
		t.Errorf("sample = %+v", got[0])
	}
}

func TestPrune(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := db.RecordLogin(ctx, &LoginEvent{Username: "admin", OccurredAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordLogin(ctx, &LoginEvent{Username: "admin", OccurredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordStatus(ctx, &StatusSample{SampledAt: old}); err != nil {
		t.Fatal(err)
	}

	if err := db.Prune(ctx, 24*time.Hour); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	logins, err := db.RecentLogins(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logins) != 1 {
		t.Errorf("got %d logins after prune, want 1", len(logins))
	}

	samples, err := db.StatusHistory(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 0 {
		t.Errorf("got %d samples after prune, want 0", len(samples))
	}
}
