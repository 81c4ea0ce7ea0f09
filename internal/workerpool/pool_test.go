package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediaprep/internal/codec"
	"mediaprep/internal/plan"
	"mediaprep/internal/services"
	"mediaprep/internal/workerpool"
)

const stubStep plan.StepName = "stub-step"

func newStubRegistry(adapter codec.Adapter) *codec.Registry {
	registry := codec.NewRegistry()
	registry.Register(stubStep, adapter)
	return registry
}

func stubTask(id int64) workerpool.Task {
	return workerpool.Task{ItemID: id, Step: plan.Step{Name: stubStep}}
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	const slots = 2
	const tasks = 8

	var active, peak atomic.Int64
	adapter := func(ctx context.Context, in codec.Input, step plan.Step, h *codec.Handles) (codec.Output, error) {
		current := active.Add(1)
		defer active.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return codec.Output{Value: "done"}, nil
	}

	pool := workerpool.New(slots, 0, newStubRegistry(adapter), codec.NewHandles(""), nil)

	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := pool.Submit(context.Background(), stubTask(id)); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	if got := peak.Load(); got > slots {
		t.Fatalf("peak concurrency = %d, want <= %d", got, slots)
	}
}

func TestSubmitTimesOutSlowAdapter(t *testing.T) {
	adapter := func(ctx context.Context, in codec.Input, step plan.Step, h *codec.Handles) (codec.Output, error) {
		select {
		case <-ctx.Done():
			return codec.Output{}, services.Wrap(services.ErrCodec, "codec", string(step.Name), "interrupted", ctx.Err())
		case <-time.After(5 * time.Second):
			return codec.Output{Value: "too late"}, nil
		}
	}

	pool := workerpool.New(1, 25*time.Millisecond, newStubRegistry(adapter), codec.NewHandles(""), nil)

	_, err := pool.Submit(context.Background(), stubTask(1))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind := services.ClassifyKind(err); kind != services.KindTimeout {
		t.Fatalf("kind = %s, want timeout", kind)
	}
	if pool.InFlight() != 0 {
		t.Fatalf("in flight = %d after timeout, want 0", pool.InFlight())
	}
}

func TestSubmitCancelledWhileWaitingForSlot(t *testing.T) {
	release := make(chan struct{})
	adapter := func(ctx context.Context, in codec.Input, step plan.Step, h *codec.Handles) (codec.Output, error) {
		<-release
		return codec.Output{}, nil
	}

	pool := workerpool.New(1, 0, newStubRegistry(adapter), codec.NewHandles(""), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Submit(context.Background(), stubTask(1))
	}()

	// Give the first submission time to occupy the only slot.
	for pool.InFlight() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pool.Submit(ctx, stubTask(2))
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("error = %v, want cancelled class", err)
	}

	close(release)
	<-done
}

func TestSubmitRecoversAdapterPanic(t *testing.T) {
	const okStep plan.StepName = "ok-step"

	registry := newStubRegistry(func(ctx context.Context, in codec.Input, step plan.Step, h *codec.Handles) (codec.Output, error) {
		panic("adapter bug")
	})
	registry.Register(okStep, func(ctx context.Context, in codec.Input, step plan.Step, h *codec.Handles) (codec.Output, error) {
		return codec.Output{Value: "ok"}, nil
	})

	pool := workerpool.New(1, 0, registry, codec.NewHandles(""), nil)

	_, err := pool.Submit(context.Background(), stubTask(1))
	if !errors.Is(err, services.ErrCodec) {
		t.Fatalf("error = %v, want codec class", err)
	}

	// The slot must be released and reusable after a panic.
	if pool.InFlight() != 0 {
		t.Fatalf("in flight = %d after panic, want 0", pool.InFlight())
	}
	out, err := pool.Submit(context.Background(), workerpool.Task{ItemID: 2, Step: plan.Step{Name: okStep}})
	if err != nil || out.Value != "ok" {
		t.Fatalf("Submit after panic = %+v/%v", out, err)
	}
}

func TestSubmitUnknownStepFails(t *testing.T) {
	pool := workerpool.New(1, 0, codec.NewRegistry(), codec.NewHandles(""), nil)

	_, err := pool.Submit(context.Background(), workerpool.Task{ItemID: 1, Step: plan.Step{Name: "no-such-step"}})
	if !errors.Is(err, services.ErrCodec) {
		t.Fatalf("error = %v, want codec class", err)
	}
	if pool.InFlight() != 0 {
		t.Fatalf("in flight = %d, want 0", pool.InFlight())
	}
}
