package quote

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fabworks/printquote/internal/db"
	"github.com/fabworks/printquote/internal/migrations"
	"github.com/fabworks/printquote/internal/pricing"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "history-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewHistoryStore(database)
}

func historyQuote(id string, createdAt time.Time) Quote {
	cfg := NewConfiguration()
	cfg.UploadID = "model.stl"
	cfg.MaterialID = "pla"

	return Quote{
		ID:            id,
		Configuration: cfg,
		Calculation: pricing.Calculation{
			Subtotal: 25.5,
			Total:    25.5,
			Currency: "USD",
			Breakdown: []pricing.Line{
				{Category: "Materials", Description: "PLA filament", Quantity: 1, UnitPrice: 2.5, Total: 2.5},
			},
		},
		Status:     StatusSaved,
		ValidUntil: createdAt.Add(24 * time.Hour),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestHistory_AppendAndGet(t *testing.T) {
	t.Parallel()

	store := newTestHistory(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	q := historyQuote("q-1", now)
	if err := store.Append(ctx, "session-a", q); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Get(ctx, "session-a", "q-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "q-1" || got.Status != StatusSaved {
		t.Fatalf("got %+v", got)
	}
	if got.Configuration.MaterialID != "pla" {
		t.Fatalf("configuration not round-tripped: %+v", got.Configuration)
	}
	if got.Calculation.Total != 25.5 || len(got.Calculation.Breakdown) != 1 {
		t.Fatalf("calculation not round-tripped: %+v", got.Calculation)
	}

	// History is session scoped: another session cannot read the quote.
	if _, err := store.Get(ctx, "session-b", "q-1"); err == nil {
		t.Fatal("expected not-found for a foreign session")
	}
}

func TestHistory_ListMostRecentFirst(t *testing.T) {
	t.Parallel()

	store := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"q-old", "q-mid", "q-new"} {
		q := historyQuote(id, base.Add(time.Duration(i)*time.Hour))
		if err := store.Append(ctx, "session-a", q); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	quotes, err := store.List(ctx, "session-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("got %d quotes, want 3", len(quotes))
	}
	if quotes[0].ID != "q-new" || quotes[2].ID != "q-old" {
		t.Fatalf("wrong order: %s, %s, %s", quotes[0].ID, quotes[1].ID, quotes[2].ID)
	}
}

func TestHistory_UpdateStatus(t *testing.T) {
	t.Parallel()

	store := newTestHistory(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, "session-a", historyQuote("q-1", now)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.UpdateStatus(ctx, "q-1", StatusOrdered); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := store.Get(ctx, "session-a", "q-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOrdered {
		t.Fatalf("status = %s, want ordered", got.Status)
	}

	err = store.UpdateStatus(ctx, "missing", StatusOrdered)
	lifecycleErr, ok := AsError(err)
	if !ok || lifecycleErr.Kind != KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestHistory_ExpireStale(t *testing.T) {
	t.Parallel()

	store := newTestHistory(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	stale := historyQuote("q-stale", now.Add(-48*time.Hour))
	fresh := historyQuote("q-fresh", now)
	ordered := historyQuote("q-ordered", now.Add(-48*time.Hour))
	ordered.Status = StatusOrdered

	for _, q := range []Quote{stale, fresh, ordered} {
		if err := store.Append(ctx, "session-a", q); err != nil {
			t.Fatalf("append %s: %v", q.ID, err)
		}
	}

	expired, err := store.ExpireStale(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d quotes, want 1", expired)
	}

	got, _ := store.Get(ctx, "session-a", "q-stale")
	if got.Status != StatusExpired {
		t.Fatalf("stale quote status = %s, want expired", got.Status)
	}
	got, _ = store.Get(ctx, "session-a", "q-fresh")
	if got.Status != StatusSaved {
		t.Fatalf("fresh quote status = %s, want saved", got.Status)
	}
	got, _ = store.Get(ctx, "session-a", "q-ordered")
	if got.Status != StatusOrdered {
		t.Fatalf("ordered quote status = %s, want ordered (terminal)", got.Status)
	}
}
