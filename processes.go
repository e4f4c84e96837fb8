package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	defaultProcessLimit = 50
	commandMaxLen       = 80
	psMinFields         = 11
)

// ProcessTable obtains a bounded list of the top CPU-consuming processes
// from the OS process table. Sorting is delegated to ps itself.
type ProcessTable struct {
	src   RawSource
	log   *zap.Logger
	limit int
}

func newProcessTable(src RawSource, log *zap.Logger, limit int) *ProcessTable {
	if limit <= 0 {
		limit = defaultProcessLimit
	}
	return &ProcessTable{src: src, log: log, limit: limit}
}

// List returns up to limit processes sorted by CPU descending. An
// unavailable process table is degraded service, not an error: the
// caller gets an empty list and the rest of the snapshot proceeds.
func (t *ProcessTable) List(ctx context.Context) []ProcessInfo {
	out, err := t.src.RawProcessList(ctx)
	if err != nil {
		t.log.Warn("process listing failed", zap.Error(err))
		return []ProcessInfo{}
	}
	return t.parse(out)
}

// parse tokenizes ps output. The first line is the header; rows with
// fewer than 11 whitespace tokens are dropped as malformed. Field
// mapping is positional: user, pid, cpu%, mem%, vsz(KB), rss(KB), tty,
// stat, start, time, command...
func (t *ProcessTable) parse(out string) []ProcessInfo {
	procs := make([]ProcessInfo, 0, t.limit)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 2 {
		return procs
	}
	for _, line := range lines[1:] {
		if len(procs) == t.limit {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < psMinFields {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil || pid <= 0 {
			continue
		}
		cpuPct, _ := strconv.ParseFloat(fields[2], 64)
		memPct, _ := strconv.ParseFloat(fields[3], 64)
		vszKB, _ := strconv.ParseUint(fields[4], 10, 64)
		rssKB, _ := strconv.ParseUint(fields[5], 10, 64)
		procs = append(procs, ProcessInfo{
			Pid:     pid,
			User:    fields[0],
			CPU:     cpuPct,
			Mem:     memPct,
			Vsz:     humanize.IBytes(vszKB * 1024),
			Rss:     humanize.IBytes(rssKB * 1024),
			TTY:     fields[6],
			Stat:    fields[7],
			Start:   fields[8],
			Time:    fields[9],
			Command: truncate(strings.Join(fields[10:], " "), commandMaxLen),
		})
	}
	return procs
}

// truncate cuts s to max bytes. Commands lose information beyond that
// length.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
