package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/db"
	"github.com/fabworks/printquote/internal/migrations"
	"github.com/fabworks/printquote/internal/seed"
)

func newSeededStore(t *testing.T) *catalog.Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "catalog-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(database); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return catalog.NewStore(database)
}

func TestStore_ListAndGet(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()

	materials, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(materials) != len(seed.DefaultMaterials()) {
		t.Fatalf("got %d materials, want %d", len(materials), len(seed.DefaultMaterials()))
	}

	pla, err := store.Get(ctx, "pla")
	if err != nil {
		t.Fatalf("get pla: %v", err)
	}
	if pla.Name != "PLA" || pla.BasePricePerGram != 0.025 {
		t.Fatalf("pla = %+v", pla)
	}
	if len(pla.Colors) == 0 || len(pla.VolumeDiscounts) == 0 {
		t.Fatalf("json columns not decoded: %+v", pla)
	}

	_, err = store.Get(ctx, "unobtanium")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UnreachableBackendIsAnError(t *testing.T) {
	t.Parallel()

	database, err := db.Open(filepath.Join(t.TempDir(), "catalog-closed.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	database.Close()

	store := catalog.NewStore(database)

	// A broken catalog must never be mistaken for an empty one.
	materials, err := store.List(context.Background())
	if err == nil {
		t.Fatal("expected an error from a closed database")
	}
	if materials != nil {
		t.Fatalf("got materials %v alongside the error", materials)
	}
	if _, err := store.Get(context.Background(), "pla"); err == nil {
		t.Fatal("expected an error from a closed database")
	}
}

func TestStore_RefreshPicksUpChanges(t *testing.T) {
	t.Parallel()

	database, err := db.Open(filepath.Join(t.TempDir(), "catalog-refresh.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(database); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	store := catalog.NewStore(database)
	ctx := context.Background()

	before, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	// Deactivate a material behind the cache's back.
	if _, err := database.Exec(`UPDATE materials SET active = FALSE WHERE id = 'tpu'`); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// The cache still serves the old view until an explicit refresh.
	cached, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list cached: %v", err)
	}
	if len(cached) != len(before) {
		t.Fatalf("cache was invalidated implicitly: %d vs %d", len(cached), len(before))
	}

	if err := store.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	after, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list after refresh: %v", err)
	}
	if len(after) != len(before)-1 {
		t.Fatalf("got %d materials after refresh, want %d", len(after), len(before)-1)
	}
	if _, err := store.Get(ctx, "tpu"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("deactivated material still served: %v", err)
	}
}

func TestMaterial_DiscountFor(t *testing.T) {
	t.Parallel()

	m := catalog.Material{VolumeDiscounts: []catalog.DiscountTier{
		{MinimumQuantity: 10, DiscountPercent: 5},
		{MinimumQuantity: 25, DiscountPercent: 10},
	}}

	if tier := m.DiscountFor(5); tier.DiscountPercent != 0 {
		t.Fatalf("qty 5 got %+v, want no discount", tier)
	}
	if tier := m.DiscountFor(10); tier.DiscountPercent != 5 {
		t.Fatalf("qty 10 got %+v, want 5%%", tier)
	}
	if tier := m.DiscountFor(100); tier.DiscountPercent != 10 {
		t.Fatalf("qty 100 got %+v, want the highest qualifying tier", tier)
	}
}
