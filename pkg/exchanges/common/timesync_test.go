package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTimeSyncOffset(t *testing.T) {
	local := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	server := local.Add(1500 * time.Millisecond)
	ts := NewTimeSync(func(context.Context) (time.Time, error) { return server, nil }, zerolog.Nop())
	ts.now = func() time.Time { return local }

	if err := ts.Sync(context.Background()); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if ts.Offset() != 1500*time.Millisecond {
		t.Fatalf("offset=%v, expected 1.5s", ts.Offset())
	}
	if !ts.Now().Equal(server) || !ts.LastSync().Equal(local) {
		t.Fatalf("Now=%v LastSync=%v", ts.Now(), ts.LastSync())
	}
}

func TestTimeSyncKeepsOffsetOnError(t *testing.T) {
	calls := 0
	ts := NewTimeSync(func(context.Context) (time.Time, error) {
		calls++
		if calls > 1 {
			return time.Time{}, errors.New("unreachable")
		}
		return time.Now().Add(time.Second), nil
	}, zerolog.Nop())

	if err := ts.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync returned error: %v", err)
	}
	before := ts.Offset()
	if err := ts.Sync(context.Background()); err == nil {
		t.Fatalf("expected error from second Sync")
	}
	if ts.Offset() != before {
		t.Fatalf("offset changed after failed sync")
	}
}
