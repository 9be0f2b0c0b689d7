package reader

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces batches of requests. Every batchSize calls to Wait, the
// caller blocks until at least delay has passed since the previous batch
// started.
type Throttle struct {
	limiter   *rate.Limiter
	batchSize int
	inBatch   int
}

func NewThrottle(batchSize int, delay time.Duration) *Throttle {
	if batchSize < 1 {
		batchSize = 1
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Throttle{
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: batchSize,
	}
}

// Wait must be called before each request.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.inBatch == 0 {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	t.inBatch++
	if t.inBatch == t.batchSize {
		t.inBatch = 0
	}
	return nil
}
