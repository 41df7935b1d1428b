// Package parsers turns nvidia-smi output into gpu.GPUMetric records.
// Parsing is pure: text in, typed records out, no knowledge of hosts or rendering.
package parsers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/gpu"
)

// Separator splits the sections of the batched query output.
const Separator = "---"

// FieldCount is the number of comma-separated fields in a metrics row.
const FieldCount = 8

// maxQuoted caps how much of a bad row or field a ParseError repeats.
const maxQuoted = 60

// metricsQuery lists fields in the order ParseGPUs expects them.
const metricsQuery = "nvidia-smi --query-gpu=index,name,utilization.gpu,memory.used,memory.total,temperature.gpu,power.draw,power.limit --format=csv,noheader,nounits"

// QueryCommand returns the remote command that produces the batched report.
// Sections are separated by "---" lines:
// 0. per-GPU metrics (index, name, util, mem used, mem total, temp, power draw, power limit)
// 1. index, uuid pairs
// 2. UUIDs of GPUs with running compute processes
//
// The exit status is that of the metrics query, so a missing nvidia-smi or a
// driver failure surfaces as a non-zero exit. Sections 1 and 2 are best effort.
// The script runs under sh so hosts with a csh or fish login shell parse it too;
// it must not contain single quotes.
func QueryCommand() string {
	script := metricsQuery + ` && { echo "` + Separator + `"; nvidia-smi --query-gpu=index,uuid --format=csv,noheader 2>/dev/null; echo "` + Separator + `"; nvidia-smi --query-compute-apps=gpu_uuid --format=csv,noheader 2>/dev/null; true; }`
	return "sh -c '" + script + "'"
}

// ParseErrorKind categorizes parse failures.
type ParseErrorKind int

const (
	// MalformedRow means a row did not have FieldCount fields.
	MalformedRow ParseErrorKind = iota
	// InvalidValue means a field was neither a number nor a not-supported sentinel,
	// or the parsed values broke an invariant.
	InvalidValue
)

// String returns a human-readable kind.
func (k ParseErrorKind) String() string {
	switch k {
	case MalformedRow:
		return "malformed row"
	case InvalidValue:
		return "invalid value"
	default:
		return "parse error"
	}
}

// ParseError describes why a report could not be parsed.
type ParseError struct {
	Kind ParseErrorKind
	Line int // 1-based line number within the metrics section
	Row  string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nvidia-smi %s at line %d: %s (%q)", e.Kind, e.Line, e.Msg, e.Row)
}

// IsSentinel reports whether a field is nvidia-smi's way of saying a metric
// is unavailable on this device.
func IsSentinel(field string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(field), "[]")) {
	case "", "n/a", "not supported", "unknown error", "unknown", "gpu is lost", "insufficient permissions":
		return true
	}
	return false
}

// ParseGPUs parses the metrics section: one row per GPU, fields in the order
// index, name, utilization, memory used, memory total, temperature, power draw,
// power limit.
//
// Empty input is valid and yields an empty slice. Row order is preserved and
// duplicate or non-sequential indices are accepted.
func ParseGPUs(output string) ([]gpu.GPUMetric, error) {
	gpus := []gpu.GPUMetric{}

	for i, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		metric, err := parseRow(line)
		if err != nil {
			err.Line = i + 1
			err.Row = clip(line)
			return nil, err
		}
		gpus = append(gpus, metric)
	}

	return gpus, nil
}

func parseRow(line string) (gpu.GPUMetric, *ParseError) {
	fields := strings.Split(line, ",")
	if len(fields) != FieldCount {
		return gpu.GPUMetric{}, &ParseError{
			Kind: MalformedRow,
			Msg:  fmt.Sprintf("expected %d fields, got %d", FieldCount, len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return gpu.GPUMetric{}, &ParseError{Kind: InvalidValue, Msg: fmt.Sprintf("bad GPU index '%s'", clip(fields[0]))}
	}

	m := gpu.GPUMetric{
		Index: index,
		Name:  fields[1],
	}

	readings := []struct {
		name string
		dst  *gpu.Reading
	}{
		{"utilization", &m.Utilization},
		{"memory used", &m.MemoryUsedMB},
		{"memory total", &m.MemoryTotalMB},
		{"temperature", &m.TemperatureC},
		{"power draw", &m.PowerDrawW},
		{"power limit", &m.PowerLimitW},
	}
	for i, r := range readings {
		value, perr := parseReading(fields[i+2])
		if perr != nil {
			perr.Msg = fmt.Sprintf("bad %s: %s", r.name, perr.Msg)
			return gpu.GPUMetric{}, perr
		}
		*r.dst = value
	}

	if m.Utilization.Valid && (m.Utilization.Value < 0 || m.Utilization.Value > 100) {
		return gpu.GPUMetric{}, &ParseError{Kind: InvalidValue, Msg: fmt.Sprintf("utilization %g outside 0-100", m.Utilization.Value)}
	}
	if m.MemoryUsedMB.Valid && m.MemoryTotalMB.Valid && m.MemoryUsedMB.Value > m.MemoryTotalMB.Value {
		return gpu.GPUMetric{}, &ParseError{
			Kind: InvalidValue,
			Msg:  fmt.Sprintf("memory used %g exceeds total %g", m.MemoryUsedMB.Value, m.MemoryTotalMB.Value),
		}
	}

	return m, nil
}

// clip shortens s to maxQuoted runes.
func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxQuoted {
		return s
	}
	return string(r[:maxQuoted]) + "..."
}

func parseReading(field string) (gpu.Reading, *ParseError) {
	if IsSentinel(field) {
		return gpu.Absent(), nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return gpu.Reading{}, &ParseError{Kind: InvalidValue, Msg: fmt.Sprintf("'%s' is not a number", clip(field))}
	}
	return gpu.Value(v), nil
}

// ParseUUIDs parses "index, uuid" rows. Rows that don't fit are skipped.
func ParseUUIDs(output string) map[int]string {
	uuids := make(map[int]string)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		if uuid := strings.TrimSpace(fields[1]); uuid != "" {
			uuids[index] = uuid
		}
	}
	return uuids
}

// ParseComputeApps parses the gpu_uuid column of --query-compute-apps into a set.
func ParseComputeApps(output string) map[string]bool {
	busy := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || IsSentinel(line) || strings.Contains(strings.ToLower(line), "no running") {
			continue
		}
		busy[line] = true
	}
	return busy
}

// ParseReport parses the full batched output of QueryCommand.
// Only the metrics section is required; the UUID and compute-app sections
// annotate GPUMetric.UUID and GPUMetric.Busy when present.
func ParseReport(output string) ([]gpu.GPUMetric, error) {
	sections := splitSections(output)

	gpus, err := ParseGPUs(sections[0])
	if err != nil {
		return nil, err
	}

	if len(sections) < 2 {
		return gpus, nil
	}

	uuids := ParseUUIDs(sections[1])
	var busy map[string]bool
	if len(sections) >= 3 {
		busy = ParseComputeApps(sections[2])
	}

	for i := range gpus {
		uuid, ok := uuids[gpus[i].Index]
		if !ok {
			continue
		}
		gpus[i].UUID = uuid
		gpus[i].Busy = busy[uuid]
	}

	return gpus, nil
}

// splitSections splits on lines consisting solely of the separator.
func splitSections(output string) []string {
	sections := []string{""}
	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == Separator {
			sections[len(sections)-1] = b.String()
			b.Reset()
			sections = append(sections, "")
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	sections[len(sections)-1] = b.String()
	return sections
}
