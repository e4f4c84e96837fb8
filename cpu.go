package main

import (
	"fmt"
	"math"
	"sync"
)

// CPUSampler converts cumulative per-core time counters into point-in-time
// percentages. It owns the only cross-poll state in the agent: the most
// recent reading per core, kept for the process lifetime and never
// cleared.
type CPUSampler struct {
	src RawSource

	mu   sync.Mutex
	prev map[int]CPUCoreReading
}

func newCPUSampler(src RawSource) *CPUSampler {
	return &CPUSampler{src: src, prev: make(map[int]CPUCoreReading)}
}

// Sample reads current counters and returns one CPUUsage per core. The
// cache entry for a core is overwritten only after its usage has been
// computed, so a failed fetch never leaves a half-updated baseline.
func (s *CPUSampler) Sample() ([]CPUUsage, error) {
	readings, err := s.src.RawCPUTimes()
	if err != nil {
		return nil, fmt.Errorf("sampling cpu: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usage := make([]CPUUsage, len(readings))
	for core, cur := range readings {
		if prev, ok := s.prev[core]; ok {
			usage[core] = deltaUsage(core, prev, cur)
		} else {
			usage[core] = bootstrapUsage(core, cur)
		}
		s.prev[core] = cur
	}
	return usage, nil
}

// deltaUsage computes percentages from the counter delta between two
// consecutive readings. A non-positive total delta (counter reset or
// zero elapsed time) yields the idle fallback rather than an error.
func deltaUsage(core int, prev, cur CPUCoreReading) CPUUsage {
	totalDiff := int64(cur.Total()) - int64(prev.Total())
	if totalDiff <= 0 {
		return CPUUsage{Core: core, Usage: 0, User: 0, System: 0, Idle: 100}
	}
	idleDiff := int64(cur.Idle) - int64(prev.Idle)
	return CPUUsage{
		Core:   core,
		Usage:  roundPct(totalDiff-idleDiff, totalDiff),
		User:   roundPct(int64(cur.User)-int64(prev.User), totalDiff),
		System: roundPct(int64(cur.System)-int64(prev.System), totalDiff),
		Idle:   roundPct(idleDiff, totalDiff),
	}
}

// bootstrapUsage approximates usage from a single reading's own totals.
// The first sample for a core conflates time-since-boot with
// time-since-last-poll; that imprecision is accepted.
func bootstrapUsage(core int, cur CPUCoreReading) CPUUsage {
	total := int64(cur.Total())
	if total <= 0 {
		return CPUUsage{Core: core, Usage: 0, User: 0, System: 0, Idle: 100}
	}
	return CPUUsage{
		Core:   core,
		Usage:  roundPct(total-int64(cur.Idle), total),
		User:   roundPct(int64(cur.User), total),
		System: roundPct(int64(cur.System), total),
		Idle:   roundPct(int64(cur.Idle), total),
	}
}

// roundPct rounds part/whole to an integer percentage. Each component is
// rounded independently, so user+system+idle may drift from 100.
func roundPct(part, whole int64) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}
