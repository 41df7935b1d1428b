package gpu

import (
	"sort"
	"strings"
)

// NaturalLess compares host names case-insensitively, treating runs of digits
// as integers so "h2" sorts before "h10". Names that compare equal under that
// rule fall back to a plain byte comparison to keep the order total.
func NaturalLess(a, b string) bool {
	if c := naturalCompare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c < 0
	}
	return a < b
}

// SortHosts orders host snapshots in natural host order.
func SortHosts(hosts []HostSnapshot) {
	sort.SliceStable(hosts, func(i, j int) bool {
		return NaturalLess(hosts[i].Host, hosts[j].Host)
	})
}

// SortGPUs orders GPUs by device index.
func SortGPUs(gpus []GPUMetric) {
	sort.SliceStable(gpus, func(i, j int) bool {
		return gpus[i].Index < gpus[j].Index
	})
}

func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			if c := compareDigits(a[si:i], b[sj:j]); c != 0 {
				return c
			}
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(a)-i < len(b)-j:
		return -1
	case len(a)-i > len(b)-j:
		return 1
	}
	return 0
}

// compareDigits compares two digit runs numerically without parsing,
// so arbitrarily long runs can't overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
