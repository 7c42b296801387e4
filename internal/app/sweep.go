package app

import (
	"log/slog"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// startSweeper calls sweep on every tick until the returned stop
// function is called. A non-positive interval falls back to the
// default; time.NewTicker panics on zero.
func startSweeper(interval time.Duration, sweep func() int) (stop func()) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sweep(); n > 0 {
					slog.Info("swept expired sessions", slog.Int("count", n))
				}
			case <-stopCh:
				return
			}
		}
	}()

	return func() { close(stopCh) }
}
