package batch

import (
	"context"
	"time"
)

// rateWindow is the sliding window over which request timestamps count.
const rateWindow = time.Minute

// rateLimiter is a process-wide sliding-window limiter shared by every
// job the dispatcher runs.
type rateLimiter struct {
	ch     chan struct{} // single-holder mutex, selectable with ctx
	stamps []time.Time
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func newRateLimiter() *rateLimiter {
	r := &rateLimiter{
		ch:    make(chan struct{}, 1),
		now:   time.Now,
		sleep: sleepCtx,
	}
	r.ch <- struct{}{}
	return r
}

// Acquire blocks until a slot is free within the window. A limit of zero
// or less means no limiting.
func (r *rateLimiter) Acquire(ctx context.Context, limit int) error {
	if limit <= 0 {
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ch:
		}

		now := r.now()
		cutoff := now.Add(-rateWindow)
		kept := r.stamps[:0]
		for _, ts := range r.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		r.stamps = kept

		if len(r.stamps) < limit {
			r.stamps = append(r.stamps, now)
			r.ch <- struct{}{}
			return nil
		}

		wait := r.stamps[0].Add(rateWindow).Sub(now)
		r.ch <- struct{}{}

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
