package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"okx-trader/internal/market"
	"okx-trader/pkg/exchanges/common"
)

func TestSizePositionScalesWithStrength(t *testing.T) {
	s := NewSizer(0.05)
	got := s.SizePosition(10000, 50000, 0.8)
	if math.Abs(got-0.009) > 1e-12 {
		t.Fatalf("size=%v, expected 0.009", got)
	}
	if half := s.SizePosition(10000, 50000, 0); math.Abs(half-0.005) > 1e-12 {
		t.Fatalf("size at zero strength=%v, expected half allocation 0.005", half)
	}
	if full := s.SizePosition(10000, 50000, 3); math.Abs(full-0.01) > 1e-12 {
		t.Fatalf("size at clamped strength=%v, expected 0.01", full)
	}
	if s.SizePosition(10000, 0, 1) != 0 || s.SizePosition(0, 50000, 1) != 0 {
		t.Fatalf("expected zero size for non-positive price or balance")
	}
}

func TestSizeMonotonicInStrength(t *testing.T) {
	s := NewSizer(0.05)
	prev := -1.0
	for i := 0; i <= 10; i++ {
		v := s.SizePosition(10000, 50000, float64(i)/10)
		if v < prev {
			t.Fatalf("size decreased at strength %.1f: %v < %v", float64(i)/10, v, prev)
		}
		prev = v
	}
}

func TestStopsUseFixedRiskReward(t *testing.T) {
	s := NewSizer(0.05)
	if sl := s.StopLoss(50000, common.SideBuy, 300); sl != 49550 {
		t.Fatalf("long stop=%v, expected 49550", sl)
	}
	if tp := s.TakeProfit(50000, common.SideBuy, 300); tp != 50900 {
		t.Fatalf("long take-profit=%v, expected 50900", tp)
	}
	if sl := s.StopLoss(50000, common.SideSell, 300); sl != 50450 {
		t.Fatalf("short stop=%v, expected 50450", sl)
	}
	if tp := s.TakeProfit(50000, common.SideSell, 300); tp != 49100 {
		t.Fatalf("short take-profit=%v, expected 49100", tp)
	}
	for _, atr := range []float64{0.5, 12, 300, 1234.5} {
		entry := 50000.0
		sl := s.StopLoss(entry, common.SideBuy, atr)
		tp := s.TakeProfit(entry, common.SideBuy, atr)
		ratio := (tp - entry) / (entry - sl)
		if math.Abs(ratio-2) > 1e-9 {
			t.Fatalf("reward/risk=%v for atr %v, expected 2", ratio, atr)
		}
	}
}

func TestOpenIntentUsesBarCloseAndATR(t *testing.T) {
	s := NewSizer(0.05)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return ts }
	bar := market.Bar{Time: ts, Close: 50000}

	in, err := s.OpenIntent("BTC-USDT-SWAP", common.SideBuy, 10000, bar, 300, 0.8)
	if err != nil {
		t.Fatalf("OpenIntent returned error: %v", err)
	}
	if in.ID == "" || in.ReduceOnly || in.EntryPrice != 50000 || in.ATR != 300 {
		t.Fatalf("unexpected intent %+v", in)
	}
	if in.StopLoss == nil || *in.StopLoss != 49550 || in.TakeProfit == nil || *in.TakeProfit != 50900 {
		t.Fatalf("unexpected protective levels %+v", in)
	}
	if math.Abs(in.Size-0.009) > 1e-12 || !in.CreatedAt.Equal(ts) {
		t.Fatalf("size=%v created=%v", in.Size, in.CreatedAt)
	}

	if _, err := s.OpenIntent("X", common.SideBuy, 10000, bar, math.NaN(), 1); !errors.Is(err, ErrATRUnavailable) {
		t.Fatalf("expected ErrATRUnavailable, got %v", err)
	}
	if _, err := s.OpenIntent("X", common.SideBuy, 0, bar, 300, 1); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize, got %v", err)
	}
}

func TestCloseIntentFlattensPosition(t *testing.T) {
	s := NewSizer(0.05)
	in, err := s.CloseIntent("BTC-USDT-SWAP", &common.Position{Side: common.PositionLong, Contracts: 0.02, EntryPrice: 48000})
	if err != nil {
		t.Fatalf("CloseIntent returned error: %v", err)
	}
	if in.Side != common.SideSell || in.Size != 0.02 || !in.ReduceOnly {
		t.Fatalf("unexpected close intent %+v", in)
	}
	if in.StopLoss != nil || in.TakeProfit != nil {
		t.Fatalf("close intent should carry no protective levels")
	}
	if _, err := s.CloseIntent("X", nil); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize for absent position, got %v", err)
	}
}
