package gpu

import (
	"sort"
	"strconv"
	"strings"
)

// HostHealth is the rollup state of a host for display.
type HostHealth int

const (
	HealthOK HostHealth = iota
	HealthWarning
	HealthCritical
	HealthError
	HealthEmpty // polled OK but reported no GPUs
)

// HostSummary aggregates one host's GPUs for the overview table.
// Averages only include present readings; a field with no present readings is Absent.
type HostSummary struct {
	Host         string
	Health       HostHealth
	Total        int
	Busy         int
	AvailableIDs []int
	AvgUtil      Reading
	AvgMemPct    Reading
	AvgTemp      Reading
	TotalPower   Reading
	Names        []string
	ErrorDetail  string
}

// Summarize builds the overview row for a host.
func Summarize(h HostSnapshot, policy Policy) HostSummary {
	s := HostSummary{Host: h.Host}

	if !h.OK() {
		s.Health = HealthError
		s.ErrorDetail = h.ErrorDetail
		return s
	}
	if len(h.GPUs) == 0 {
		s.Health = HealthEmpty
		return s
	}

	var util, mem, temp, power mean
	names := make(map[string]bool)

	for _, g := range h.GPUs {
		s.Total++
		if g.Busy {
			s.Busy++
		} else {
			s.AvailableIDs = append(s.AvailableIDs, g.Index)
		}

		util.add(g.Utilization)
		mem.add(g.MemoryPercent())
		temp.add(g.TemperatureC)
		power.add(g.PowerDrawW)

		if g.Name != "" {
			names[g.Name] = true
		}

		if reason, _, flagged := policy.Severity(g); flagged {
			switch {
			case reason == ReasonCritical:
				s.Health = HealthCritical
			case s.Health != HealthCritical:
				s.Health = HealthWarning
			}
		}
	}

	sort.Ints(s.AvailableIDs)
	s.AvgUtil = util.avg()
	s.AvgMemPct = mem.avg()
	s.AvgTemp = temp.avg()
	s.TotalPower = power.sum()

	for name := range names {
		s.Names = append(s.Names, name)
	}
	sort.Strings(s.Names)

	return s
}

// FormatIDRanges renders device indices as compact ranges, e.g. "0-2, 4, 6-7".
// Returns "None" for an empty list.
func FormatIDRanges(ids []int) string {
	if len(ids) == 0 {
		return "None"
	}

	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, strconv.Itoa(start)+"-"+strconv.Itoa(prev))
		}
	}

	for _, id := range sorted[1:] {
		if id == prev {
			continue
		}
		if id != prev+1 {
			flush()
			start = id
		}
		prev = id
	}
	flush()

	return strings.Join(parts, ", ")
}

type mean struct {
	total float64
	n     int
}

func (m *mean) add(r Reading) {
	if r.Valid {
		m.total += r.Value
		m.n++
	}
}

func (m mean) avg() Reading {
	if m.n == 0 {
		return Absent()
	}
	return Value(m.total / float64(m.n))
}

func (m mean) sum() Reading {
	if m.n == 0 {
		return Absent()
	}
	return Value(m.total)
}
