package url2pdf

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Compile-time interface implementation check.
var _ Runner = (*Converter)(nil)

// Converter wires the scheduler, workspace and renderer together.
// Create with NewConverter, call Start, use Convert, and Shutdown when done.
type Converter struct {
	scheduler *Scheduler
	workspace *Workspace
	renderer  Renderer
	opts      options
}

// NewConverter creates a Converter that renders with renderer into
// per-job directories of workspace.
func NewConverter(renderer Renderer, workspace *Workspace, cfg SchedulerConfig, opts ...Option) (*Converter, error) {
	if renderer == nil {
		return nil, errors.New("url2pdf: nil renderer")
	}
	if workspace == nil {
		return nil, errors.New("url2pdf: nil workspace")
	}

	c := &Converter{
		workspace: workspace,
		renderer:  renderer,
		opts:      buildOptions(opts),
	}
	c.scheduler = NewScheduler(cfg, c, opts...)
	return c, nil
}

// Start launches the worker slots.
func (c *Converter) Start() {
	c.scheduler.Start()
}

// Stats reports scheduler load.
func (c *Converter) Stats() Stats {
	return c.scheduler.Stats()
}

// Scheduler exposes the underlying scheduler.
func (c *Converter) Scheduler() *Scheduler {
	return c.scheduler
}

// Convert submits req and waits for the result. On success the caller
// owns the artifact and must Release it after streaming.
func (c *Converter) Convert(ctx context.Context, req *Request) (*Artifact, error) {
	h, err := c.scheduler.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Run renders one job into a fresh artifact. It is called by the
// scheduler while the job holds a slot.
func (c *Converter) Run(ctx context.Context, job *Job) (*Artifact, error) {
	artifact, err := c.workspace.Acquire(job.Request.ID)
	if err != nil {
		return nil, err
	}
	job.setOutputPath(artifact.Path())

	if err := c.renderer.Render(ctx, job.Request.SourceURL.String(), artifact.Path()); err != nil {
		if relErr := artifact.Release(); relErr != nil {
			c.opts.logger.Warn("releasing artifact failed",
				zap.String("job_id", job.Request.ID),
				zap.Error(relErr),
			)
		}
		return nil, err
	}
	return artifact, nil
}

// Shutdown drains the scheduler and closes the renderer.
func (c *Converter) Shutdown(ctx context.Context) error {
	drainErr := c.scheduler.Shutdown(ctx)
	if err := c.renderer.Close(); err != nil {
		return errors.Join(drainErr, fmt.Errorf("closing renderer: %w", err))
	}
	return drainErr
}
