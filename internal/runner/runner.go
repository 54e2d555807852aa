package runner

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Cycler runs one scaling cycle and reports how many actions were applied.
type Cycler interface {
	RunScalingCycle(ctx context.Context, namespace string) (int, error)
}

// Runner drives the engine at a fixed interval. Cycles run to completion and
// never overlap; the stop signal takes effect between cycles.
type Runner struct {
	engine    Cycler
	namespace string
	interval  time.Duration
	logger    logr.Logger
}

func New(engine Cycler, namespace string, interval time.Duration, logger logr.Logger) *Runner {
	return &Runner{
		engine:    engine,
		namespace: namespace,
		interval:  interval,
		logger:    logger,
	}
}

// Run executes cycles until the context is canceled. The first cycle starts
// immediately. A canceled context mid-cycle abandons the remaining
// deployments of that cycle and returns.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		applied, err := r.engine.RunScalingCycle(ctx, r.namespace)

		switch {
		case ctx.Err() != nil:
			r.logger.Info("stopping", "actionsApplied", applied)
			return nil
		case err != nil:
			r.logger.Error(err, "scaling cycle failed")
		default:
			r.logger.Info("scaling cycle finished", "actionsApplied", applied)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("stopping")
			return nil
		case <-ticker.C:
		}
	}
}
