package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"okx-trader/internal/risk"
)

func TestMemoryStoreConcurrentKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("SYM-%d", i)
			_ = s.SaveThrottle(ctx, key, risk.ThrottleState{TradesToday: i, LastTradeDate: "2024-06-01"})
		}(i)
	}
	wg.Wait()

	if s.Len() != 40 {
		t.Fatalf("Len=%d, expected 40", s.Len())
	}
	st, ok, err := s.LoadThrottle(ctx, "SYM-17")
	if err != nil || !ok || st.TradesToday != 17 {
		t.Fatalf("LoadThrottle=%+v,%v,%v", st, ok, err)
	}
	if _, ok, _ := s.LoadThrottle(ctx, "missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
	if removed := s.Cleanup(-time.Second); removed != 40 || s.Len() != 0 {
		t.Fatalf("Cleanup removed %d, remaining %d", removed, s.Len())
	}
}
