package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/metrics"
	"github.com/dewbox/contribution-service/internal/store"
)

// withinTx runs fn in a unit of work, retrying lock and serialization failures with
// exponential backoff. fn must be safe to run more than once.
func (s *Service) withinTx(ctx context.Context, operation string, fn func(tx store.TxRepository) error) error {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.UnitOfWorkDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}()

	delay := s.baseDelay
	for attempt := 1; ; attempt++ {
		err := s.repo.WithinTx(ctx, fn)
		if err == nil {
			outcome = "ok"
			return nil
		}
		if !store.IsContention(err) {
			return err
		}
		if attempt >= s.maxAttempts {
			outcome = "contention"
			s.logger.Error("unit of work gave up after contention", "operation", operation, "attempts", attempt, "error", err)
			return fmt.Errorf("%w: %w", ErrContentionExhausted, err)
		}

		metrics.ContentionRetries.WithLabelValues(operation).Inc()
		s.logger.Warn("unit of work hit contention; retrying", "operation", operation, "attempt", attempt, "backoff", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
