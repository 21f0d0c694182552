package app

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	pubsub "go-messenger/internal/infrastructure/pubsub/port"
)

// Backoff bounds the wait between bridge restarts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	// Healthy is how long a run must last before the wait drops back to Initial.
	Healthy time.Duration
}

// DefaultBackoff doubles from one second up to thirty.
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second, Healthy: time.Minute}

// RunBridge keeps b running until ctx ends, restarting it after every failure.
// It returns the number of restarts.
func RunBridge(ctx context.Context, b pubsub.Bridge, bo Backoff) int {
	wait := bo.Initial
	restarts := 0
	for {
		started := time.Now()
		err := b.Run(ctx)
		if ctx.Err() != nil {
			return restarts
		}
		if err == nil {
			err = errors.New("bridge returned without error")
		}
		if time.Since(started) >= bo.Healthy {
			wait = bo.Initial
		}
		logx.Errorw("realtime bridge stopped, restarting",
			logx.Field("error", err.Error()),
			logx.Field("backoff", wait.String()))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return restarts
		case <-t.C:
		}
		restarts++
		if wait *= 2; wait > bo.Max {
			wait = bo.Max
		}
	}
}
