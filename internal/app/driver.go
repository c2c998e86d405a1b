package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunMonitorLoop drives monitoring cycles, one at a time, sleeping the
// configured interval in between. Cycle trouble other than
// cancellation is logged and the loop continues; cancellation stops
// the loop immediately.
func (a *Application) RunMonitorLoop(ctx context.Context) error {
	interval := a.appConfig.CycleInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := a.runOneCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Error("monitor cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Application) runOneCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	status, err := a.monitor.RunCycle(ctx)
	if err != nil {
		return err
	}

	// Change notifications already fired synchronously inside RunCycle,
	// so subscribers saw the status before it is durably recorded.
	a.display.Show(*status)
	a.store.RecordCycle(ctx, status)
	return nil
}
