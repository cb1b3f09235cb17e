// Package jobs contains background workers that run alongside the API
// server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoisku/api/internal/config"
	"github.com/invoisku/api/internal/services/invoice"
)

// revalidateBatchSize bounds how many invoices one sweep picks up.
const revalidateBatchSize = 500

// Revalidator periodically re-runs compliance validation over invoices
// whose cached score has gone stale, so that catalog or profile changes
// eventually reach every stored document. It sweeps at midnight UTC and
// then on a fixed interval.
type Revalidator struct {
	invoices *invoice.Service
	logger   *slog.Logger

	interval time.Duration
	timeout  time.Duration
	workers  int

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRevalidator creates a revalidation job from the compliance config.
func NewRevalidator(invoices *invoice.Service, cfg config.ComplianceConfig, logger *slog.Logger) *Revalidator {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.RevalidateWorkers
	if workers < 1 {
		workers = 1
	}
	return &Revalidator{
		invoices: invoices,
		logger:   logger,
		interval: cfg.RevalidateInterval,
		timeout:  cfg.RevalidateTimeout,
		workers:  workers,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop. It is non-blocking.
func (r *Revalidator) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop signals the job to stop and waits for any in-flight sweep to
// finish. It is safe to call Stop multiple times.
func (r *Revalidator) Stop() {
	r.once.Do(func() {
		r.logger.Info("stopping revalidation job")
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *Revalidator) loop() {
	defer r.wg.Done()

	untilMidnight := durationUntilNextMidnightUTC()
	r.logger.Info("revalidation job: first sweep scheduled",
		"in", untilMidnight.Round(time.Second).String(),
	)

	select {
	case <-time.After(untilMidnight):
	case <-r.stopCh:
		r.logger.Info("revalidation job stopped before first sweep")
		return
	}

	r.runSweep()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runSweep()
		case <-r.stopCh:
			r.logger.Info("revalidation job stopped")
			return
		}
	}
}

func (r *Revalidator) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	revalidated, failed, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("revalidation sweep failed", "error", err)
		return
	}
	r.logger.Info("revalidation sweep completed",
		"revalidated", revalidated,
		"failed", failed,
	)
}

// RunOnce performs a single sweep: it picks up invoices whose validation
// predates the configured interval and re-validates them with a bounded
// worker pool. It returns how many invoices were revalidated and how
// many failed.
func (r *Revalidator) RunOnce(ctx context.Context) (revalidated, failed int, err error) {
	cutoff := time.Now().UTC().Add(-r.interval)
	ids, err := r.invoices.ListStaleIDs(ctx, cutoff, revalidateBatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	work := make(chan uuid.UUID)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				_, verr := r.invoices.Validate(ctx, id)
				mu.Lock()
				if verr != nil {
					failed++
					r.logger.Error("revalidating invoice", "id", id, "error", verr)
				} else {
					revalidated++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		select {
		case work <- id:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return revalidated, failed, ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	return revalidated, failed, nil
}

func durationUntilNextMidnightUTC() time.Duration {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return nextMidnight.Sub(now)
}
