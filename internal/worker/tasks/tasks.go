// Package tasks holds the built-in task kernels executed by the worker.
package tasks

import (
	"context"
	"math/rand"
	"time"
)

// pause sleeps a jittered interval between pacing/5 and pacing, honoring
// cancellation. A zero pacing is a no-op.
func pause(ctx context.Context, pacing time.Duration) error {
	if pacing <= 0 {
		return ctx.Err()
	}
	min := pacing / 5
	d := min + time.Duration(rand.Int63n(int64(pacing-min)+1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func intPtr(v int) *int {
	return &v
}
