package connection

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Load-aware escalation thresholds. When the host is already saturated,
// waiting out the full failure-count threshold costs real request latency,
// so the breaker opens on the first retry exhaustion instead.
const (
	// memoryPressurePercent is the used-memory percentage above which the
	// host is considered under memory pressure.
	memoryPressurePercent = 90.0
)

// LoadSampler reports whether the host is under high load. A nil sampler in
// the Config means DefaultLoadSampler.
type LoadSampler func() bool

// DefaultLoadSampler samples the one-minute load average and memory usage.
// High load means load1 exceeds the CPU count or used memory exceeds 90%.
// Sampling errors are treated as "not under load".
func DefaultLoadSampler() bool {
	if avg, err := load.Avg(); err == nil {
		if avg.Load1 > float64(runtime.NumCPU()) {
			return true
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		if vm.UsedPercent > memoryPressurePercent {
			return true
		}
	}

	return false
}
