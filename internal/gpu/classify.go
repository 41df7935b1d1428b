package gpu

import "fmt"

// Policy holds the warning and critical thresholds used to flag GPUs.
// Utilization values are percentages, temperatures are degrees Celsius.
type Policy struct {
	WarnUtil float64 `yaml:"warn_util" mapstructure:"warn_util"`
	CritUtil float64 `yaml:"crit_util" mapstructure:"crit_util"`
	WarnTemp float64 `yaml:"warn_temp" mapstructure:"warn_temp"`
	CritTemp float64 `yaml:"crit_temp" mapstructure:"crit_temp"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		WarnUtil: 75,
		CritUtil: 90,
		WarnTemp: 75,
		CritTemp: 85,
	}
}

// Validate checks that thresholds are in range and ordered.
func (p Policy) Validate() error {
	if p.WarnUtil < 0 || p.CritUtil > 100 {
		return fmt.Errorf("utilization thresholds must be within 0-100 (got warn=%g crit=%g)", p.WarnUtil, p.CritUtil)
	}
	if p.WarnUtil > p.CritUtil {
		return fmt.Errorf("warn_util (%g) must not exceed crit_util (%g)", p.WarnUtil, p.CritUtil)
	}
	if p.WarnTemp < 0 {
		return fmt.Errorf("warn_temp must not be negative (got %g)", p.WarnTemp)
	}
	if p.WarnTemp > p.CritTemp {
		return fmt.Errorf("warn_temp (%g) must not exceed crit_temp (%g)", p.WarnTemp, p.CritTemp)
	}
	return nil
}

// Severity grades a single GPU against the policy.
// Absent readings never trigger a flag.
func (p Policy) Severity(g GPUMetric) (Reason, []string, bool) {
	var issues []string
	critical := false

	if g.Utilization.AtLeast(p.WarnUtil) {
		issues = append(issues, fmt.Sprintf("High Util: %.1f%%", g.Utilization.Value))
		critical = critical || g.Utilization.AtLeast(p.CritUtil)
	}
	if g.TemperatureC.AtLeast(p.WarnTemp) {
		issues = append(issues, fmt.Sprintf("High Temp: %.1f°C", g.TemperatureC.Value))
		critical = critical || g.TemperatureC.AtLeast(p.CritTemp)
	}

	// A crit threshold below its warn threshold is rejected by Validate, but an
	// unvalidated policy can still hit crit without hitting warn.
	if !critical && (g.Utilization.AtLeast(p.CritUtil) || g.TemperatureC.AtLeast(p.CritTemp)) {
		critical = true
	}

	switch {
	case critical:
		return ReasonCritical, issues, true
	case len(issues) > 0:
		return ReasonWarning, issues, true
	default:
		return 0, nil, false
	}
}

// Classify returns the problem GPUs for a snapshot. It is a pure function of
// its inputs: no state carries over between cycles.
//
// Every GPU on an OK host is graded by the policy. A host in any other state
// contributes one placeholder entry (GPU == nil) carrying its ErrorDetail.
// Entries are ordered by natural host order, then GPU index.
func Classify(snap ClusterSnapshot, policy Policy) []ProblemGPU {
	hosts := make([]HostSnapshot, len(snap.Hosts))
	copy(hosts, snap.Hosts)
	SortHosts(hosts)

	var problems []ProblemGPU
	for _, h := range hosts {
		if !h.OK() {
			problems = append(problems, ProblemGPU{
				Host:   h.Host,
				Reason: ReasonHostError,
				Issues: []string{h.ErrorDetail},
				Detail: h.ErrorDetail,
			})
			continue
		}

		gpus := make([]GPUMetric, len(h.GPUs))
		copy(gpus, h.GPUs)
		SortGPUs(gpus)

		for i := range gpus {
			reason, issues, flagged := policy.Severity(gpus[i])
			if !flagged {
				continue
			}
			g := gpus[i]
			problems = append(problems, ProblemGPU{
				Host:   h.Host,
				GPU:    &g,
				Reason: reason,
				Issues: issues,
			})
		}
	}
	return problems
}

// CountByReason tallies problem entries per reason.
func CountByReason(problems []ProblemGPU) map[Reason]int {
	counts := make(map[Reason]int)
	for _, p := range problems {
		counts[p.Reason]++
	}
	return counts
}
