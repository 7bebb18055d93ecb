package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/prometheus/procfs"

	"github.com/slok/luabox/internal/log"
)

// procReader is the part of procfs used by the system stats tool.
type procReader interface {
	Stat() (procfs.Stat, error)
	Meminfo() (procfs.Meminfo, error)
	LoadAvg() (*procfs.LoadAvg, error)
}

// SystemStats returns read-only host CPU and memory usage.
type SystemStats struct {
	proc   procReader
	logger log.Logger
}

// NewSystemStats returns a new system_stats tool reading the default proc filesystem.
func NewSystemStats(logger log.Logger) (*SystemStats, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("could not open proc filesystem: %w", err)
	}
	return newSystemStats(fs, logger), nil
}

func newSystemStats(proc procReader, logger log.Logger) *SystemStats {
	if logger == nil {
		logger = log.Noop
	}
	return &SystemStats{
		proc:   proc,
		logger: logger.WithValues(log.Kv{"svc": "tools.SystemStats"}),
	}
}

func (s *SystemStats) Name() string        { return "system_stats" }
func (s *SystemStats) Description() string { return "Returns the host CPU and memory usage" }

// Call returns a table with the usage percentages and load averages. Values
// that can't be read are missing.
func (s *SystemStats) Call(ctx context.Context, _ []any) (any, error) {
	logger := s.logger.WithCtxValues(ctx)
	stats := map[string]any{}

	if st, err := s.proc.Stat(); err != nil {
		logger.Warningf("could not read cpu stats: %s", err)
	} else if pct, ok := cpuUsage(st.CPUTotal); ok {
		stats["cpu_usage_percent"] = pct
	}

	if mi, err := s.proc.Meminfo(); err != nil {
		logger.Warningf("could not read memory stats: %s", err)
	} else if pct, ok := memoryUsage(mi); ok {
		stats["memory_usage_percent"] = pct
	}

	if la, err := s.proc.LoadAvg(); err != nil {
		logger.Warningf("could not read load average: %s", err)
	} else {
		stats["load1"] = la.Load1
		stats["load5"] = la.Load5
		stats["load15"] = la.Load15
	}

	if len(stats) == 0 {
		return nil, fmt.Errorf("system stats are not available")
	}

	return stats, nil
}

// cpuUsage is the busy share since boot.
func cpuUsage(c procfs.CPUStat) (float64, bool) {
	idle := c.Idle + c.Iowait
	total := idle + c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	if total <= 0 {
		return 0, false
	}
	return round1(100 * (1 - idle/total)), true
}

func memoryUsage(mi procfs.Meminfo) (float64, bool) {
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return 0, false
	}
	free := mi.MemAvailable
	if free == nil {
		free = mi.MemFree
	}
	if free == nil {
		return 0, false
	}
	total := float64(*mi.MemTotal)
	return round1(100 * (total - float64(*free)) / total), true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
