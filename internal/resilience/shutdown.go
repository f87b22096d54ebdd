package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Coordinator owns the core's background tasks (the periodic dependency
// sweep and the metric purge) and drives the drain protocol on shutdown.
// Every scheduled task holds a cancellable handle so shutdown can stop all
// work deterministically before the process exits.
type Coordinator struct {
	core         *Core
	period       time.Duration
	drainTimeout time.Duration
	logger       zerolog.Logger

	cancel   context.CancelFunc
	tasks    *errgroup.Group
	stopOnce sync.Once
}

// NewCoordinator wires a coordinator for the given core. period is the
// dependency sweep interval; drainTimeout bounds the shutdown drain.
func NewCoordinator(core *Core, period, drainTimeout time.Duration, logger zerolog.Logger) *Coordinator {
	if period <= 0 {
		period = 30 * time.Second
	}
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Coordinator{
		core:         core,
		period:       period,
		drainTimeout: drainTimeout,
		logger:       logger,
	}
}

// Start runs the start-up dependency sweep synchronously, gates readiness on
// its outcome, then launches the periodic background tasks.
func (c *Coordinator) Start(ctx context.Context) {
	c.core.Monitor().CheckAll(ctx)
	if !c.core.MarkReady() {
		c.logger.Warn().Msg("start-up sweep found required dependencies unhealthy; service stays not_ready")
	}

	taskCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.tasks, taskCtx = errgroup.WithContext(taskCtx)

	c.tasks.Go(func() error {
		return c.sweepLoop(taskCtx)
	})
	if w := c.core.Window(); w != nil {
		c.tasks.Go(func() error {
			return c.purgeLoop(taskCtx, w)
		})
	}
}

func (c *Coordinator) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.core.Monitor().CheckAll(ctx)
			if c.core.ReadyState() == NotReady {
				c.core.MarkReady()
			}
		}
	}
}

func (c *Coordinator) purgeLoop(ctx context.Context, w *Window) error {
	period := w.Retention() / 4
	if period > time.Minute {
		period = time.Minute
	}
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Purge()
		}
	}
}

// Shutdown stops accepting work, cancels the background tasks and runs the
// provided drain function (typically http.Server.Shutdown) bounded by the
// drain timeout. It returns ErrShutdownTimeout when the drain does not
// finish in time; the caller must then terminate the process with a
// non-zero exit code.
func (c *Coordinator) Shutdown(ctx context.Context, drain func(context.Context) error) error {
	var err error
	c.stopOnce.Do(func() {
		c.core.BeginDrain()
		if c.cancel != nil {
			c.cancel()
			_ = c.tasks.Wait()
		}

		dctx, cancel := context.WithTimeout(ctx, c.drainTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			if drain == nil {
				done <- nil
				return
			}
			done <- drain(dctx)
		}()

		select {
		case drainErr := <-done:
			if drainErr != nil && dctx.Err() != nil {
				c.logger.Error().Dur("drain_timeout", c.drainTimeout).Msg("drain timed out; forcing termination")
				err = ErrShutdownTimeout
				return
			}
			c.core.MarkStopped()
			c.logger.Info().Msg("service_stopped")
			err = drainErr
		case <-dctx.Done():
			c.logger.Error().Dur("drain_timeout", c.drainTimeout).Msg("drain timed out; forcing termination")
			err = ErrShutdownTimeout
		}
	})
	return err
}
