package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HostFacts supplies host identity data for the aggregate. Split out so
// collector tests run without touching the real host.
type HostFacts interface {
	Hostname() (string, error)
	Uptime() (uint64, error)
	LoadAvg() ([3]float64, error)
	CPUModel() (string, error)
}

type osHostFacts struct{}

func (osHostFacts) Hostname() (string, error) { return os.Hostname() }

func (osHostFacts) Uptime() (uint64, error) { return host.Uptime() }

func (osHostFacts) LoadAvg() ([3]float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}

func (osHostFacts) CPUModel() (string, error) {
	info, err := cpu.Info()
	if err != nil {
		return "", err
	}
	if len(info) == 0 {
		return "", fmt.Errorf("no cpu info reported")
	}
	return info[0].ModelName, nil
}

// Collector composes the samplers and host facts into one SystemMetrics
// snapshot. Poll cycles are serialized: the sampler cache is a
// single-writer resource, and overlapping cycles would compute deltas
// against a baseline that is mid-update.
type Collector struct {
	mu      sync.Mutex
	sampler *CPUSampler
	memory  *MemoryAccountant
	procs   *ProcessTable
	facts   HostFacts
	log     *zap.Logger

	// model is invariant within one run; fetched once, retried until it
	// succeeds.
	model string
}

func newCollector(sampler *CPUSampler, memory *MemoryAccountant, procs *ProcessTable, facts HostFacts, log *zap.Logger) *Collector {
	return &Collector{
		sampler: sampler,
		memory:  memory,
		procs:   procs,
		facts:   facts,
		log:     log,
	}
}

// Snapshot runs one full poll cycle. The three sub-collectors have no
// data dependency on each other and run in parallel; a degraded process
// list never cancels the others. Whatever they return, including
// fallback values, is passed through verbatim.
func (c *Collector) Snapshot(ctx context.Context) (*SystemMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	pollsTotal.Inc()

	var (
		usage []CPUUsage
		mem   MemoryInfo
		procs []ProcessInfo
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		usage, err = c.sampler.Sample()
		return err
	})
	g.Go(func() error {
		var err error
		mem, err = c.memory.Measure(ctx)
		return err
	})
	g.Go(func() error {
		procs = c.procs.List(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		pollErrors.Inc()
		return nil, err
	}

	hostname, err := c.facts.Hostname()
	if err != nil {
		pollErrors.Inc()
		return nil, fmt.Errorf("reading hostname: %w", err)
	}
	uptime, err := c.facts.Uptime()
	if err != nil {
		pollErrors.Inc()
		return nil, fmt.Errorf("reading uptime: %w", err)
	}
	loadAvg, err := c.facts.LoadAvg()
	if err != nil {
		pollErrors.Inc()
		return nil, fmt.Errorf("reading load average: %w", err)
	}

	if c.model == "" {
		model, err := c.facts.CPUModel()
		if err != nil {
			c.log.Warn("cpu model unavailable", zap.Error(err))
		} else {
			c.model = model
		}
	}

	pollDuration.Observe(time.Since(start).Seconds())

	return &SystemMetrics{
		Hostname:     hostname,
		Platform:     runtime.GOOS,
		Arch:         runtime.GOARCH,
		Uptime:       uptime,
		LoadAvg:      loadAvg,
		CPUCount:     len(usage),
		CPUModel:     c.model,
		CPUUsage:     usage,
		Memory:       mem,
		Processes:    procs,
		ProcessCount: len(procs),
		Timestamp:    time.Now().UnixMilli(),
	}, nil
}
