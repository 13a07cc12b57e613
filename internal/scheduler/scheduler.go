// Package scheduler runs periodic tasks.
package scheduler

import (
	"context"
	"time"

	"github.com/Korbielowski/AutoApply/internal/logger"
)

type Task func(ctx context.Context) error

// Every runs task now and then every interval until ctx is done. Runs never
// overlap: a tick that arrives during a run is skipped.
func Every(ctx context.Context, interval time.Duration, name string, log logger.Logger, task Task) {
	log = logger.OrNop(log).With(logger.Component("scheduler"), logger.String("task", name))
	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil && ctx.Err() == nil {
			log.Error("task failed", logger.Error(err))
			return
		}
		log.Debug("task finished", logger.Duration("took", time.Since(start)))
	}

	run()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
