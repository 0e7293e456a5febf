package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"okx-trader/internal/order"
	"okx-trader/internal/risk"
	"okx-trader/pkg/exchanges/common"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "state", "bot.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestThrottleRoundTrip(t *testing.T) {
	s := openTestDB(t).Store()
	ctx := context.Background()

	if _, ok, err := s.LoadThrottle(ctx, "BTC-USDT-SWAP"); err != nil || ok {
		t.Fatalf("LoadThrottle on empty db = %v,%v", ok, err)
	}
	want := risk.ThrottleState{TradesToday: 3, LastTradeDate: "2024-06-01"}
	if err := s.SaveThrottle(ctx, "BTC-USDT-SWAP", want); err != nil {
		t.Fatalf("SaveThrottle: %v", err)
	}
	want.TradesToday = 4
	if err := s.SaveThrottle(ctx, "BTC-USDT-SWAP", want); err != nil {
		t.Fatalf("SaveThrottle upsert: %v", err)
	}
	got, ok, err := s.LoadThrottle(ctx, "BTC-USDT-SWAP")
	if err != nil || !ok || got != want {
		t.Fatalf("LoadThrottle=%+v,%v,%v, expected %+v", got, ok, err, want)
	}
}

func TestThrottleSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)

	first, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	th := risk.NewThrottle(2, first.Store(), "ETH-USDT-SWAP")
	if _, err := th.Record(ctx, now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := th.Record(ctx, now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	first.Close()

	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	restored := risk.NewThrottle(2, second.Store(), "ETH-USDT-SWAP")
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.Allow(now) {
		t.Fatalf("expected restored throttle to be exhausted")
	}
}

func TestOrderJournal(t *testing.T) {
	s := openTestDB(t).Store()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sl, tp := 49550.0, 50900.0

	entries := []order.Entry{
		{
			Intent:    order.Intent{ID: "a", Symbol: "BTC-USDT-SWAP", Side: common.SideBuy, Size: 0.009, StopLoss: &sl, TakeProfit: &tp, EntryPrice: 50000, ATR: 300, Strength: 0.8},
			Record:    common.OrderRecord{OrderID: "1001", ClientID: "a", Status: common.StatusNew},
			CreatedAt: base,
		},
		{
			Intent:    order.Intent{ID: "b", Symbol: "BTC-USDT-SWAP", Side: common.SideSell, Size: 0.009, ReduceOnly: true},
			Record:    common.OrderRecord{OrderID: "1002", ClientID: "b", Status: common.StatusFilled},
			CreatedAt: base.Add(time.Minute),
		},
	}
	for _, e := range entries {
		if err := s.RecordOrder(ctx, e); err != nil {
			t.Fatalf("RecordOrder: %v", err)
		}
	}
	if err := s.RecordOrder(ctx, entries[0]); err == nil {
		t.Fatalf("expected duplicate client id to be rejected")
	}

	got, err := s.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("RecentOrders: %v", err)
	}
	if len(got) != 2 || got[0].Intent.ID != "b" || got[1].Intent.ID != "a" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if !got[0].Intent.ReduceOnly || got[0].Intent.StopLoss != nil {
		t.Fatalf("close order fields lost: %+v", got[0].Intent)
	}
	a := got[1]
	if a.Intent.StopLoss == nil || *a.Intent.StopLoss != sl || *a.Intent.TakeProfit != tp || a.Record.OrderID != "1001" {
		t.Fatalf("open order fields lost: %+v", a)
	}
	if !a.CreatedAt.Equal(base) || a.Intent.Side != common.SideBuy {
		t.Fatalf("created=%v side=%s", a.CreatedAt, a.Intent.Side)
	}

	if got, _ := s.RecentOrders(ctx, 1); len(got) != 1 {
		t.Fatalf("limit not applied: %d", len(got))
	}
}
