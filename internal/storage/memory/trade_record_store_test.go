package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

var ts0 = time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:    "trade1",
		RunID:      "run1",
		Instrument: "AAPL",
		EntryTime:  ts0,
		ExitTime:   ts0.Add(24 * time.Hour),
		PnL:        125.5,
		RMultiple:  1.25,
	}

	if err := store.InsertBulk(ctx, []*domain.TradeRecord{trade}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1", "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PnL != 125.5 || got.RMultiple != 1.25 {
		t.Errorf("Outcome mismatch: got %v/%v", got.PnL, got.RMultiple)
	}

	// Stored copy is isolated from the caller.
	trade.PnL = 0
	got, _ = store.GetByID(ctx, "run1", "trade1")
	if got.PnL != 125.5 {
		t.Errorf("store shares caller memory")
	}
}

func TestTradeRecordStore_SameTradeDifferentRuns(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run1", Instrument: "AAPL"},
		{TradeID: "t1", RunID: "run2", Instrument: "AAPL"},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "trade1", RunID: "run1"}
	if err := store.InsertBulk(ctx, []*domain.TradeRecord{trade}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.TradeRecord{trade})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_IntraBatchDuplicate(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run1"},
		{TradeID: "t2", RunID: "run1"},
		{TradeID: "t1", RunID: "run1"},
	}
	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Batch is atomic: nothing was stored.
	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 0 {
		t.Errorf("Expected empty store after failed batch, got %d", len(got))
	}
}

func TestTradeRecordStore_InvalidInput(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	for _, tr := range []*domain.TradeRecord{nil, {TradeID: "t1"}, {RunID: "run1"}} {
		if err := store.InsertBulk(ctx, []*domain.TradeRecord{tr}); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for %+v, got %v", tr, err)
		}
	}
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "run1", "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_GetByRunIDOrdering(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run1", Instrument: "MSFT", ExitTime: ts0.Add(2 * time.Hour)},
		{TradeID: "t2", RunID: "run1", Instrument: "NVDA", ExitTime: ts0.Add(time.Hour)},
		{TradeID: "t3", RunID: "run1", Instrument: "AAPL", ExitTime: ts0.Add(2 * time.Hour)},
		{TradeID: "t4", RunID: "run2", Instrument: "AAPL", ExitTime: ts0},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	want := []string{"t2", "t3", "t1"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d trades, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].TradeID != id {
			t.Errorf("trade[%d] = %s, want %s", i, got[i].TradeID, id)
		}
	}
}
