package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediaprep/internal/codec"
	"mediaprep/internal/logging"
	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// Task is one step execution request.
type Task struct {
	ItemID int64
	Step   plan.Step
	Input  codec.Input
}

// Pool bounds concurrent step executions with a slot semaphore and applies a
// per-submission timeout. Codec handles are shared across submissions and
// resolved lazily on first use.
type Pool struct {
	slots    chan struct{}
	registry *codec.Registry
	handles  *codec.Handles
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a pool with the given slot count and per-step timeout.
func New(size int, timeout time.Duration, registry *codec.Registry, handles *codec.Handles, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		slots:    make(chan struct{}, size),
		registry: registry,
		handles:  handles,
		timeout:  timeout,
		logger:   logger.With(logging.String(logging.FieldComponent, "workerpool")),
	}
}

// Size returns the configured slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// InFlight returns the number of occupied slots.
func (p *Pool) InFlight() int {
	return len(p.slots)
}

// Submit runs the task's adapter under a slot and the pool timeout, blocking
// until a slot frees. The slot is released on every return path, including
// adapter panics, which surface as codec errors rather than crashing the
// scheduler.
func (p *Pool) Submit(ctx context.Context, task Task) (out codec.Output, err error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return codec.Output{}, mapContextErr(ctx.Err(), string(task.Step.Name))
	}
	defer func() { <-p.slots }()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("adapter panic",
				logging.Int64(logging.FieldItemID, task.ItemID),
				logging.String(logging.FieldStep, string(task.Step.Name)),
				logging.Any("panic", r))
			out = codec.Output{}
			err = services.Wrap(services.ErrCodec, "workerpool", string(task.Step.Name), fmt.Sprintf("adapter panic: %v", r), nil)
		}
	}()

	adapter, err := p.registry.Lookup(task.Step.Name)
	if err != nil {
		return codec.Output{}, err
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	out, err = adapter(runCtx, task.Input, task.Step, p.handles)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil && services.ClassifyKind(err) == services.KindCodec {
			err = mapContextErr(ctxErr, string(task.Step.Name))
		}
		return codec.Output{}, err
	}

	p.logger.Debug("step finished",
		logging.Int64(logging.FieldItemID, task.ItemID),
		logging.String(logging.FieldStep, string(task.Step.Name)),
		logging.Duration("elapsed", time.Since(started)))
	return out, nil
}

func mapContextErr(err error, step string) error {
	switch err {
	case context.DeadlineExceeded:
		return services.Wrap(services.ErrTimeout, "workerpool", step, "step timed out", nil)
	case context.Canceled:
		return services.Wrap(services.ErrCancelled, "workerpool", step, "submission cancelled", nil)
	default:
		return services.Wrap(services.ErrCodec, "workerpool", step, fmt.Sprintf("context: %v", err), nil)
	}
}
