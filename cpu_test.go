package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleBootstrap(t *testing.T) {
	src := &fakeSource{readings: [][]CPUCoreReading{
		{{User: 100, Nice: 0, System: 50, Idle: 850, Irq: 0}},
	}}
	s := newCPUSampler(src)

	usage, err := s.Sample()
	require.NoError(t, err)
	require.Len(t, usage, 1)

	// First-ever sample: percentages from the reading's own totals.
	assert.Equal(t, CPUUsage{Core: 0, Usage: 15, User: 10, System: 5, Idle: 85}, usage[0])
}

func TestSampleDelta(t *testing.T) {
	src := &fakeSource{readings: [][]CPUCoreReading{
		{{User: 100, System: 50, Idle: 850}},
		{{User: 150, System: 80, Idle: 900}},
	}}
	s := newCPUSampler(src)

	_, err := s.Sample()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	require.Len(t, usage, 1)

	// totalDiff=130, idleDiff=50 -> usage=round(80/130*100)=62.
	assert.Equal(t, 62, usage[0].Usage)
	assert.Equal(t, 38, usage[0].User)
	assert.Equal(t, 23, usage[0].System)
	assert.Equal(t, 38, usage[0].Idle)
}

func TestSampleIdenticalCounters(t *testing.T) {
	reading := []CPUCoreReading{{User: 100, System: 50, Idle: 850}}
	src := &fakeSource{readings: [][]CPUCoreReading{reading, reading}}
	s := newCPUSampler(src)

	_, err := s.Sample()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, CPUUsage{Core: 0, Usage: 0, User: 0, System: 0, Idle: 100}, usage[0])
}

func TestSampleCounterReset(t *testing.T) {
	src := &fakeSource{readings: [][]CPUCoreReading{
		{{User: 5000, System: 1000, Idle: 90000}},
		{{User: 10, System: 5, Idle: 100}},
	}}
	s := newCPUSampler(src)

	_, err := s.Sample()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, CPUUsage{Core: 0, Usage: 0, User: 0, System: 0, Idle: 100}, usage[0])
}

func TestSamplePerCoreIndependence(t *testing.T) {
	src := &fakeSource{readings: [][]CPUCoreReading{
		{
			{User: 100, System: 50, Idle: 850},
			{User: 500, System: 100, Idle: 400},
		},
		{
			{User: 100, System: 50, Idle: 850},  // core 0 unchanged
			{User: 600, System: 120, Idle: 480}, // core 1 busy
		},
	}}
	s := newCPUSampler(src)

	_, err := s.Sample()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	require.Len(t, usage, 2)

	assert.Equal(t, 0, usage[0].Usage)
	assert.Equal(t, 100, usage[0].Idle)

	// totalDiff=200, idleDiff=80 -> usage=60.
	assert.Equal(t, 1, usage[1].Core)
	assert.Equal(t, 60, usage[1].Usage)
}

func TestSampleFetchErrorLeavesCacheIntact(t *testing.T) {
	src := &fakeSource{cpuErr: errors.New("counters unreadable")}
	s := newCPUSampler(src)

	_, err := s.Sample()
	require.Error(t, err)

	// After the failure the cache is still empty, so the next
	// successful sample is a bootstrap, not a delta against garbage.
	src.mu.Lock()
	src.cpuErr = nil
	src.readings = [][]CPUCoreReading{{{User: 100, System: 50, Idle: 850}}}
	src.mu.Unlock()

	usage, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, 15, usage[0].Usage)
}

func TestSampleConcurrentPolls(t *testing.T) {
	src := &fakeSource{readings: [][]CPUCoreReading{
		{
			{User: 100, System: 50, Idle: 850},
			{User: 200, System: 80, Idle: 700},
		},
	}}
	s := newCPUSampler(src)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, err := s.Sample()
			if !assert.NoError(t, err) || !assert.Len(t, usage, 2) {
				return
			}
			for _, u := range usage {
				assert.GreaterOrEqual(t, u.Usage, 0)
				assert.LessOrEqual(t, u.Usage, 100)
				assert.GreaterOrEqual(t, u.Idle, 0)
				assert.LessOrEqual(t, u.Idle, 100)
			}
		}()
	}
	wg.Wait()
}
