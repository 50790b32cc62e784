// Package system reports host and process resource usage for the CLI's
// stats output.
package system

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a best-effort picture of the host at capture time. Fields
// that could not be read stay zero.
type Snapshot struct {
	GoVersion    string
	LogicalCPUs  int
	Goroutines   int
	TotalMemMB   uint64
	AvailMemMB   uint64
	ProcessRSSMB uint64
}

// Capture reads host memory, CPU count and the current process RSS.
// Failures are absorbed: a stats report must never break the run.
func Capture() Snapshot {
	s := Snapshot{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	}

	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCPUs = n
	} else {
		s.LogicalCPUs = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemMB = vm.Total / 1024 / 1024
		s.AvailMemMB = vm.Available / 1024 / 1024
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			s.ProcessRSSMB = mi.RSS / 1024 / 1024
		}
	}

	return s
}

// Report formats the snapshot as a printable block.
func (s Snapshot) Report() string {
	return fmt.Sprintf(
		"--- [SYSTEM REPORT] ---\n"+
			"Go: %s\n"+
			"Logical CPUs: %d\n"+
			"Goroutines: %d\n"+
			"Host Memory: %d/%d MB available\n"+
			"Process RSS: %d MB\n"+
			"-----------------------\n",
		s.GoVersion, s.LogicalCPUs, s.Goroutines, s.AvailMemMB, s.TotalMemMB, s.ProcessRSSMB,
	)
}
