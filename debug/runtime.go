package debug

// Periodic runtime stats logger enabled when config.Debug is true. Correlates
// goroutine count with heap and stack usage while captures and handoffs run.

import (
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// StartRuntimeLogger launches a goroutine that logs runtime stats every
// interval. It is lightweight; disable by running without the debug flag.
func StartRuntimeLogger(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for range t.C {
			metrics.Read(samples)
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			logger.Info("runtime-stats",
				slog.Uint64("goroutines", samples[0].Value.Uint64()),
				slog.Uint64("heap_alloc", ms.HeapAlloc),
				slog.Uint64("heap_inuse", ms.HeapInuse),
				slog.Uint64("stack_inuse", ms.StackInuse),
				slog.Uint64("num_gc", uint64(ms.NumGC)),
			)
		}
	}()
}
