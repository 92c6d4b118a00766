package orm

import (
	"context"
	"path/filepath"
	"testing"

	"airhome/internal/store"
	"airhome/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	// file-based rather than :memory: so every pooled connection sees the same schema
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return openTestStore(t) })
}

func TestSchemaSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airhome.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	home, err := first.CreateHome(ctx, store.Home{HouseName: "Lake Cabin", Price: 120, Location: "Tahoe", Rating: 4.5})
	if err != nil {
		t.Fatalf("CreateHome: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.HomeByID(ctx, home.ID)
	if err != nil {
		t.Fatalf("HomeByID: %v", err)
	}
	if got.HouseName != "Lake Cabin" {
		t.Fatalf("unexpected home %#v", got)
	}
}
