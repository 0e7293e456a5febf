package common

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimeSync tracks the offset between local and exchange server clocks so
// signed requests carry a timestamp the venue accepts.
type TimeSync struct {
	getServerTime func(ctx context.Context) (time.Time, error)
	log           zerolog.Logger
	offset        time.Duration // server - local
	lastSync      time.Time
	syncInterval  time.Duration
	now           func() time.Time
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization manager.
func NewTimeSync(getServerTime func(ctx context.Context) (time.Time, error), log zerolog.Logger) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		log:           log,
		syncInterval:  30 * time.Minute,
		now:           time.Now,
	}
}

// Start performs an initial sync and then re-syncs periodically until ctx is done.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		ts.log.Warn().Err(err).Msg("initial time sync failed")
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					ts.log.Warn().Err(err).Msg("time sync failed")
				}
			}
		}
	}()
}

// Sync measures the server offset once, assuming symmetric latency.
func (ts *TimeSync) Sync(ctx context.Context) error {
	before := ts.now()
	server, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	after := ts.now()
	local := before.Add(after.Sub(before) / 2)

	ts.mu.Lock()
	ts.offset = server.Sub(local)
	ts.lastSync = after
	ts.mu.Unlock()

	ts.log.Debug().Dur("offset", ts.Offset()).Msg("time sync")
	return nil
}

// Now returns the current time adjusted by the server offset.
func (ts *TimeSync) Now() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.now().Add(ts.offset)
}

// Offset returns the last measured offset.
func (ts *TimeSync) Offset() time.Duration {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// LastSync returns when the offset was last measured.
func (ts *TimeSync) LastSync() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSync
}
