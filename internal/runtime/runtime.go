// Package runtime is the graph supervisor: it owns no tasks
// itself, but joins every completion channel the graph build returned and
// propagates cancellation, giving each task a bounded grace period to
// finish its cleanup after shutdown is requested.
package runtime

import (
	"context"
	"fmt"
	"time"

	"iocgo/internal/ioclog"
)

// DefaultGrace bounds how long tasks get to wind down after cancellation
// before Supervise gives up on them.
const DefaultGrace = 5 * time.Second

// Supervise blocks until every done channel has closed. If ctx is
// cancelled first, it keeps waiting up to grace for stragglers and
// reports any task still running after that as an error.
func Supervise(ctx context.Context, dones []<-chan struct{}, grace time.Duration) error {
	log := ioclog.For("runtime")
	if grace <= 0 {
		grace = DefaultGrace
	}

	all := make(chan struct{})
	go func() {
		defer close(all)
		for _, d := range dones {
			<-d
		}
	}()

	select {
	case <-all:
		log.Info("all tasks finished")
		return nil
	case <-ctx.Done():
		log.Info("shutdown requested, draining tasks")
	}

	select {
	case <-all:
		log.Info("all tasks finished")
		return nil
	case <-time.After(grace):
		stuck := 0
		for _, d := range dones {
			select {
			case <-d:
			default:
				stuck++
			}
		}
		return fmt.Errorf("%d task(s) still running after %s grace period", stuck, grace)
	}
}
