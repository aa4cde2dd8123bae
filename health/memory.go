package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	// LimitBytes is the heap size considered full. If zero, the memory obtained
	// from the OS is used.
	LimitBytes uint64

	// WarningRatio of LimitBytes makes the check degraded. Default: 0.8
	WarningRatio float64

	// CriticalRatio of LimitBytes makes the check unhealthy. Default: 0.95
	CriticalRatio float64
}

// MemoryChecker reports heap usage. Image preprocessing holds decoded images
// and tensors in memory, so heap pressure is the first sign of overload.
type MemoryChecker struct {
	config MemoryCheckerConfig
	read   func(*runtime.MemStats)
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningRatio <= 0 || config.WarningRatio >= 1 {
		config.WarningRatio = 0.8
	}
	if config.CriticalRatio <= config.WarningRatio || config.CriticalRatio > 1 {
		config.CriticalRatio = 0.95
	}
	return &MemoryChecker{config: config, read: runtime.ReadMemStats}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check performs the memory health check.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	m.read(&stats)

	limit := m.config.LimitBytes
	if limit == 0 {
		limit = stats.Sys
	}
	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"limit_bytes":      limit,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}
	if limit == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	ratio := float64(stats.HeapAlloc) / float64(limit)
	details["usage_percent"] = ratio * 100

	switch {
	case ratio >= m.config.CriticalRatio:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= m.config.WarningRatio:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", ratio*100), nil).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}
