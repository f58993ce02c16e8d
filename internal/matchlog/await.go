package matchlog

import (
	"context"
	"time"

	"github.com/ernie/crewvoice/internal/domain"
)

// Await polls for the record of match id until its result is resolved, for at
// most attempts reads spaced by interval. It returns the last record read and
// whether it was resolved. If no record could be read at all, the last read
// error is returned.
func Await(ctx context.Context, p Provider, id int64, attempts int, interval time.Duration) (*domain.Match, bool, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var last *domain.Match
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return last, false, ctx.Err()
			case <-timer.C:
			}
		}
		m, err := p.Match(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		last = m
		if m.Resolved() {
			return m, true, nil
		}
	}
	if last == nil {
		return nil, false, lastErr
	}
	return last, false, nil
}
