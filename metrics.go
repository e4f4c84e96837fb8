package main

// CPUCoreReading is one core's cumulative time counters since boot, in
// clock ticks. Counters never decrease within a boot session.
type CPUCoreReading struct {
	User   uint64
	Nice   uint64
	System uint64
	Idle   uint64
	Irq    uint64
}

// Total sums all five counters.
func (r CPUCoreReading) Total() uint64 {
	return r.User + r.Nice + r.System + r.Idle + r.Irq
}

// CPUUsage is the point-in-time percentage rate for one core, derived
// from the delta between two consecutive readings.
type CPUUsage struct {
	Core   int `json:"core"`
	Usage  int `json:"usage"`
	User   int `json:"user"`
	System int `json:"system"`
	Idle   int `json:"idle"`
}

// MemoryInfo holds the memory accounting result in bytes.
// Free is defined as Total-Used, so Used+Free == Total by construction.
type MemoryInfo struct {
	Total   uint64 `json:"total"`
	Free    uint64 `json:"free"`
	Used    uint64 `json:"used"`
	Percent int    `json:"percent"`
}

// ProcessInfo is one row of the process table as reported by ps.
// Vsz and Rss are human-readable IEC strings; Command is truncated to 80
// characters.
type ProcessInfo struct {
	Pid     int     `json:"pid"`
	User    string  `json:"user"`
	CPU     float64 `json:"cpu"`
	Mem     float64 `json:"mem"`
	Vsz     string  `json:"vsz"`
	Rss     string  `json:"rss"`
	TTY     string  `json:"tty"`
	Stat    string  `json:"stat"`
	Start   string  `json:"start"`
	Time    string  `json:"time"`
	Command string  `json:"command"`
}

// SystemMetrics is the aggregate snapshot returned to polling clients.
// It is built fresh on every poll and never mutated afterwards; the only
// state carried across polls lives inside CPUSampler.
type SystemMetrics struct {
	Hostname     string        `json:"hostname"`
	Platform     string        `json:"platform"`
	Arch         string        `json:"arch"`
	Uptime       uint64        `json:"uptime"`
	LoadAvg      [3]float64    `json:"loadAvg"`
	CPUCount     int           `json:"cpuCount"`
	CPUModel     string        `json:"cpuModel"`
	CPUUsage     []CPUUsage    `json:"cpuUsage"`
	Memory       MemoryInfo    `json:"memory"`
	Processes    []ProcessInfo `json:"processes"`
	ProcessCount int           `json:"processCount"`
	Timestamp    int64         `json:"timestamp"`
}
