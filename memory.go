package main

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// vm_stat page classes that are reclaimable without I/O. The kernel's
// raw free counter undercounts memory the VM can hand back immediately,
// which makes "used" look misleadingly high.
var reclaimablePageClasses = []string{
	"Pages free",
	"Pages inactive",
	"Pages purgeable",
	"Pages speculative",
}

// MemoryAccountant computes used/available memory with the accounting
// model appropriate for the host OS family: page-state classification on
// darwin, the kernel-computed available figure on linux, and a coarse
// total-minus-free fallback everywhere else or when the platform query
// fails.
type MemoryAccountant struct {
	src RawSource
	log *zap.Logger

	// goos is resolved on every Measure call; overridable in tests.
	goos func() string
}

func newMemoryAccountant(src RawSource, log *zap.Logger) *MemoryAccountant {
	return &MemoryAccountant{
		src:  src,
		log:  log,
		goos: func() string { return runtime.GOOS },
	}
}

// Measure returns the current MemoryInfo. A failing strategy query is
// swallowed and degrades to the fallback accounting; only the base
// total/free query is fatal for the poll.
func (a *MemoryAccountant) Measure(ctx context.Context) (MemoryInfo, error) {
	total, free, available, err := a.src.RawMemoryStat()
	if err != nil {
		return MemoryInfo{}, err
	}
	if total == 0 {
		return MemoryInfo{}, fmt.Errorf("memory total reported as zero")
	}

	var used uint64
	switch a.goos() {
	case "darwin":
		used, err = a.pageClassified(ctx, total)
		if err != nil {
			a.log.Warn("vm_stat accounting failed, using raw free fallback", zap.Error(err))
			used = rawFreeFallback(total, free)
		}
	case "linux":
		used = kernelAvailable(total, free, available)
	default:
		used = rawFreeFallback(total, free)
	}

	return MemoryInfo{
		Total:   total,
		Used:    used,
		Free:    total - used,
		Percent: int(math.Round(float64(used) / float64(total) * 100)),
	}, nil
}

// pageClassified derives used bytes from vm_stat page-state counts:
// available = (free + inactive + purgeable + speculative) * page size.
func (a *MemoryAccountant) pageClassified(ctx context.Context, total uint64) (uint64, error) {
	out, err := a.src.RawMemoryPages(ctx)
	if err != nil {
		return 0, err
	}
	pageSize, counts, err := parseVMStat(out)
	if err != nil {
		return 0, err
	}
	var pages uint64
	for _, class := range reclaimablePageClasses {
		pages += counts[class]
	}
	availBytes := pages * pageSize
	if availBytes > total {
		availBytes = total
	}
	return total - availBytes, nil
}

// kernelAvailable uses the kernel's own reclaim-aware available figure,
// degrading to the raw free counter when it is absent or implausible.
func kernelAvailable(total, free, available uint64) uint64 {
	if available == 0 || available > total {
		return rawFreeFallback(total, free)
	}
	return total - available
}

// rawFreeFallback systematically overstates "used" on platforms where
// reclaimable cache is counted as used; callers treat it as a
// lower-fidelity result, not an error.
func rawFreeFallback(total, free uint64) uint64 {
	if free > total {
		return 0
	}
	return total - free
}

// parseVMStat extracts the page size and per-class page counts from
// vm_stat output, which looks like:
//
//	Mach Virtual Memory Statistics: (page size of 16384 bytes)
//	Pages free:                      12345.
func parseVMStat(out string) (pageSize uint64, counts map[string]uint64, err error) {
	counts = make(map[string]uint64)
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "page size of") {
			fields := strings.Fields(line)
			for i, f := range fields {
				if f == "of" && i+1 < len(fields) {
					pageSize, _ = strconv.ParseUint(fields[i+1], 10, 64)
				}
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v := strings.TrimSuffix(strings.TrimSpace(value), ".")
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		counts[strings.TrimSpace(name)] = n
	}
	if pageSize == 0 {
		return 0, nil, fmt.Errorf("vm_stat output missing page size")
	}
	return pageSize, counts, nil
}
