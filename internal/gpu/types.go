package gpu

import (
	"strconv"
	"time"
)

// Reading is a numeric metric that the diagnostic tool may report as unsupported.
// Valid is false when the tool printed a sentinel such as "[N/A]".
type Reading struct {
	Value float64
	Valid bool
}

// Value returns a valid Reading holding v.
func Value(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Absent returns an invalid Reading.
func Absent() Reading {
	return Reading{}
}

// AtLeast reports whether the reading is present and >= threshold.
func (r Reading) AtLeast(threshold float64) bool {
	return r.Valid && r.Value >= threshold
}

// Format renders the reading with the given precision, or "N/A" if absent.
func (r Reading) Format(prec int) string {
	if !r.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(r.Value, 'f', prec, 64)
}

// GPUMetric contains one device's telemetry for one poll cycle.
type GPUMetric struct {
	Index         int
	Name          string
	UUID          string // empty when the UUID query was unavailable
	Utilization   Reading
	MemoryUsedMB  Reading
	MemoryTotalMB Reading
	TemperatureC  Reading
	PowerDrawW    Reading
	PowerLimitW   Reading
	Busy          bool // a compute process is running on the device
}

// MemoryPercent returns used/total as a percentage when both readings are present.
func (g GPUMetric) MemoryPercent() Reading {
	if !g.MemoryUsedMB.Valid || !g.MemoryTotalMB.Valid || g.MemoryTotalMB.Value <= 0 {
		return Absent()
	}
	return Value(g.MemoryUsedMB.Value / g.MemoryTotalMB.Value * 100)
}

// HostStatus is the outcome of polling one host.
type HostStatus int

const (
	StatusOK HostStatus = iota
	StatusUnreachable
	StatusCommandFailed
	StatusParseError
	StatusTimeout
)

// String returns a human-readable status string.
func (s HostStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnreachable:
		return "unreachable"
	case StatusCommandFailed:
		return "command failed"
	case StatusParseError:
		return "parse error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// HostSnapshot is one host's result for a poll cycle.
// ErrorDetail is set iff Status != StatusOK.
type HostSnapshot struct {
	Host        string
	GPUs        []GPUMetric
	Status      HostStatus
	ErrorDetail string
	Latency     time.Duration
}

// OK reports whether the host was polled successfully.
func (h HostSnapshot) OK() bool {
	return h.Status == StatusOK
}

// Failed builds a failed HostSnapshot. An empty detail falls back to the status text
// so the "detail present iff failed" invariant holds.
func Failed(host string, status HostStatus, detail string, latency time.Duration) HostSnapshot {
	if detail == "" {
		detail = status.String()
	}
	return HostSnapshot{
		Host:        host,
		Status:      status,
		ErrorDetail: detail,
		Latency:     latency,
	}
}

// Reason explains why a GPU is in the problem list.
type Reason int

const (
	ReasonWarning Reason = iota
	ReasonCritical
	ReasonHostError
)

// String returns a human-readable reason.
func (r Reason) String() string {
	switch r {
	case ReasonWarning:
		return "warning"
	case ReasonCritical:
		return "critical"
	case ReasonHostError:
		return "host error"
	default:
		return "unknown"
	}
}

// ProblemGPU is an entry in ClusterSnapshot.ProblemGPUs.
// GPU is nil for host-level placeholders (Reason == ReasonHostError).
type ProblemGPU struct {
	Host   string
	GPU    *GPUMetric
	Reason Reason
	Issues []string
	Detail string
}

// ClusterSnapshot is the complete result of one poll cycle.
// It replaces the previous snapshot wholesale; consumers must treat it as read-only.
type ClusterSnapshot struct {
	ClusterName string
	Cycle       uint64
	Hosts       []HostSnapshot
	GeneratedAt time.Time
	ProblemGPUs []ProblemGPU
}

// Host returns the snapshot for the named host.
func (c ClusterSnapshot) Host(name string) (HostSnapshot, bool) {
	for _, h := range c.Hosts {
		if h.Host == name {
			return h, true
		}
	}
	return HostSnapshot{}, false
}

// Counts returns total hosts, hosts polled OK, and total GPUs reported.
func (c ClusterSnapshot) Counts() (hosts, online, gpus int) {
	for _, h := range c.Hosts {
		hosts++
		if h.OK() {
			online++
			gpus += len(h.GPUs)
		}
	}
	return hosts, online, gpus
}
