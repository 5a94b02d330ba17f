package system

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of the process footprint, logged with run reports.
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	SystemMemUsed float64 `json:"system_mem_used_percent"`
	Goroutines    int     `json:"goroutines"`
}

// Snapshot samples the current process. Fields that cannot be read on this
// platform stay zero.
func Snapshot(ctx context.Context) (Stats, error) {
	s := Stats{Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return s, err
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		s.CPUPercent = cpu
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		s.RSSBytes = info.RSS
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.SystemMemUsed = vm.UsedPercent
	}
	return s, nil
}
