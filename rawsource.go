package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RawSource provides the raw OS data the samplers work from, so the
// sampling and accounting logic can be tested against fixture data
// without touching a real OS utility.
type RawSource interface {
	// RawCPUTimes returns one reading per core, index-ordered.
	RawCPUTimes() ([]CPUCoreReading, error)
	// RawMemoryStat returns total and raw free memory in bytes plus the
	// kernel-computed available figure (0 when the kernel reports none).
	RawMemoryStat() (total, free, available uint64, err error)
	// RawMemoryPages returns the raw vm_stat output text.
	RawMemoryPages(ctx context.Context) (string, error)
	// RawProcessList returns the raw ps output text, sorted by CPU
	// descending.
	RawProcessList(ctx context.Context) (string, error)
}

// osRawSource is the production implementation: gopsutil for counters,
// shelled-out commands (with a bounded timeout) for the rest.
type osRawSource struct {
	cmdTimeout time.Duration
}

func newOSRawSource(cmdTimeout time.Duration) *osRawSource {
	return &osRawSource{cmdTimeout: cmdTimeout}
}

func (o *osRawSource) RawCPUTimes() ([]CPUCoreReading, error) {
	times, err := cpu.Times(true)
	if err != nil {
		return nil, fmt.Errorf("reading cpu times: %w", err)
	}
	readings := make([]CPUCoreReading, len(times))
	for i, t := range times {
		readings[i] = CPUCoreReading{
			User:   toTicks(t.User),
			Nice:   toTicks(t.Nice),
			System: toTicks(t.System),
			Idle:   toTicks(t.Idle),
			Irq:    toTicks(t.Irq),
		}
	}
	return readings, nil
}

// gopsutil reports cumulative seconds; convert back to clock ticks so
// the sampler operates on integer counters.
func toTicks(seconds float64) uint64 {
	return uint64(seconds * 100)
}

func (o *osRawSource) RawMemoryStat() (uint64, uint64, uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reading memory stat: %w", err)
	}
	return vm.Total, vm.Free, vm.Available, nil
}

func (o *osRawSource) RawMemoryPages(ctx context.Context) (string, error) {
	return o.run(ctx, "vm_stat")
}

func (o *osRawSource) RawProcessList(ctx context.Context) (string, error) {
	// Same listing either way; only the sort flag syntax differs.
	if runtime.GOOS == "darwin" {
		return o.run(ctx, "ps", "aux", "-r")
	}
	return o.run(ctx, "ps", "aux", "--sort=-%cpu")
}

// run executes an external command under the configured timeout. An
// unbounded invocation could wedge a whole poll cycle.
func (o *osRawSource) run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cmdTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s timed out: %w", name, ctx.Err())
	}
	if err != nil {
		return "", fmt.Errorf("running %s: %w", name, err)
	}
	return string(out), nil
}
