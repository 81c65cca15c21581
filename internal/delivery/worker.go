package delivery

import (
	"context"
	"log"
	"time"

	"pastel/internal/ratelimit"
)

// Worker runs the delivery sweep on a fixed interval. Every RetryEvery-th
// tick it also retries failed capsules and prunes stale rate-limit
// counter rows.
type Worker struct {
	ID         string
	Engine     *Engine
	Limiter    *ratelimit.Limiter
	Interval   time.Duration
	RetryEvery int
}

func (w *Worker) Run(ctx context.Context) {
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}
	if w.RetryEvery <= 0 {
		w.RetryEvery = 10
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Engine.ProcessPending(ctx)

			tick++
			if tick%w.RetryEvery != 0 {
				continue
			}
			if res := w.Engine.RetryFailed(ctx); res.Failed > 0 {
				log.Printf("[delivery] worker %s: %d retries failed\n", w.ID, res.Failed)
			}
			if w.Limiter != nil {
				cutoff := time.Now().Add(-24 * time.Hour)
				if n, err := w.Limiter.PruneBefore(ctx, cutoff); err != nil {
					log.Printf("[delivery] worker %s: prune error: %v\n", w.ID, err)
				} else if n > 0 {
					log.Printf("[delivery] worker %s: pruned %d rate-limit rows\n", w.ID, n)
				}
			}
		}
	}
}
