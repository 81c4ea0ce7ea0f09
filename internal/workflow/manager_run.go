package workflow

import (
	"context"
	"errors"
	"time"

	"mediaprep/internal/logging"
)

// Start begins background processing. Items left in-flight by a previous run
// are made retry-eligible before the scheduler accepts new work.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.stop = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	reclaimed, err := m.store.ResetStuckProcessing(runCtx)
	if err != nil {
		m.logger.Warn("stale item recovery failed; stuck items may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stale_recovery_failed"))
	} else if reclaimed > 0 {
		m.logger.Info("reclaimed stale in-flight items",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "stale_recovery"))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight work to
// drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stop := m.stop
	m.running = false
	m.stop = nil
	m.mu.Unlock()

	stop()
	m.wg.Wait()
	m.bus.Close()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-m.results:
			m.handleResult(ctx, res)
			continue
		default:
		}

		if m.inFlightCount() >= m.pool.Size() {
			m.waitForEvent(ctx)
			continue
		}

		item, err := m.store.NextReady(ctx, time.Now().UTC(), m.inFlightIDs())
		if err != nil {
			m.handleFetchError(ctx, err)
			continue
		}
		if item == nil {
			m.waitForEvent(ctx)
			continue
		}

		m.dispatch(ctx, item)
	}
}

// waitForEvent blocks until a worker reports, the poll interval elapses, or
// shutdown begins.
func (m *Manager) waitForEvent(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case res := <-m.results:
		m.handleResult(ctx, res)
	case <-timer.C:
	}
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"))

	timer := time.NewTimer(m.errorRetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
