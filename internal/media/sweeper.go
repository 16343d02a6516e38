package media

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/metrics"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const sweepBatch = 500

// Sweeper finishes what interrupted attaches and failed deletes left behind: pending rows
// older than the pending TTL and deleted tombstones lose their file and their row.
type Sweeper struct {
	repo        RepositoryAPI
	storage     Storage
	pendingTTL  time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

func NewSweeper(repo RepositoryAPI, storage Storage, cfg internal.MediaConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	sw := &Sweeper{
		repo:        repo,
		storage:     storage,
		pendingTTL:  cfg.PendingTTL,
		concurrency: cfg.GCConcurrency,
		logger:      logger,
		now:         time.Now,
	}
	if sw.pendingTTL <= 0 {
		sw.pendingTTL = time.Hour
	}
	if sw.concurrency <= 0 {
		sw.concurrency = 4
	}
	return sw
}

// WithClock replaces the time source; tests use it to age pending rows.
func (sw *Sweeper) WithClock(now func() time.Time) *Sweeper {
	sw.now = now
	return sw
}

// Sweep runs one pass and returns how many rows were removed. A row whose file cannot be
// removed is kept for the next pass.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := sw.repo.Stale(ctx, sw.now().Add(-sw.pendingTTL), sweepBatch)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var swept atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sw.concurrency)

	for i := range rows {
		m := rows[i]
		g.Go(func() error {
			if err := sw.storage.Delete(gctx, m.StoragePath); err != nil {
				sw.logger.WarnContext(gctx, "sweeper: file removal failed", "media_id", m.ID, "path", m.StoragePath, "error", err)
				return nil
			}
			if err := sw.repo.Delete(gctx, m.ID); err != nil {
				return err
			}
			metrics.MediaSweptTotal.WithLabelValues(string(m.State)).Inc()
			swept.Add(1)
			return nil
		})
	}

	err = g.Wait()
	n := int(swept.Load())
	sw.logger.InfoContext(ctx, "media sweep finished", "candidates", len(rows), "swept", n)
	return n, err
}

// Schedule registers Sweep on a cron spec. The caller starts and stops the returned cron.
func (sw *Sweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := sw.Sweep(ctx); err != nil {
			sw.logger.ErrorContext(ctx, "media sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
