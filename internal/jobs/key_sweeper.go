// Package jobs contains background workers that run on a schedule.
// The key sweeper deletes expired install keys so the prefix-indexed lookup
// table stays small. Jobs are designed to be idempotent: re-running after a
// crash produces the same result as a clean run.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredKeyStore is the deletion the sweeper needs
type ExpiredKeyStore interface {
	DeleteExpiredKeys(ctx context.Context) (int64, error)
}

// KeySweeper periodically deletes expired access keys. Correctness does not
// depend on it: expired keys are rejected at validation time regardless.
// Sweeping only keeps the candidate set per display prefix from growing
// unboundedly, since every install mints a new short-lived key.
type KeySweeper struct {
	keys     ExpiredKeyStore
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewKeySweeper creates a KeySweeper that runs every interval
func NewKeySweeper(keys ExpiredKeyStore, interval time.Duration) *KeySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &KeySweeper{
		keys:     keys,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (j *KeySweeper) Start(ctx context.Context) {
	slog.Info("key sweeper started", "interval", j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.sweep(ctx)

		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-j.stopCh:
				slog.Info("key sweeper stopped")
				return
			case <-ctx.Done():
				slog.Info("key sweeper context cancelled")
				return
			}
		}
	}()
}

// Stop stops the sweep loop and waits for it to exit
func (j *KeySweeper) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

func (j *KeySweeper) sweep(ctx context.Context) {
	deleted, err := j.keys.DeleteExpiredKeys(ctx)
	if err != nil {
		slog.Error("failed to sweep expired keys", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("swept expired access keys", "deleted", deleted)
	}
}
