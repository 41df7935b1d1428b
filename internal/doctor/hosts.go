package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/gpumon/internal/remote"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// ProbeCommand lists GPUs without the full metrics query.
const ProbeCommand = "nvidia-smi -L"

// NewHostChecks returns one probe per host. entries resolve ssh_config
// aliases for the report and may be nil.
func NewHostChecks(hosts []string, runner remote.Runner, timeout time.Duration, entries []sshutil.SSHHostEntry) []Check {
	checks := make([]Check, 0, len(hosts))
	for _, h := range hosts {
		check := &HostCheck{Host: h, Runner: runner, Timeout: timeout}
		if entry, ok := sshutil.FindHost(entries, h); ok {
			check.Alias = &entry
		}
		checks = append(checks, check)
	}
	return checks
}

// HostCheck runs ProbeCommand on one host.
type HostCheck struct {
	Host    string
	Runner  remote.Runner
	Timeout time.Duration
	Alias   *sshutil.SSHHostEntry
}

func (c *HostCheck) Name() string     { return c.Host }
func (c *HostCheck) Category() string { return CategoryHosts }

func (c *HostCheck) Run(ctx context.Context) CheckResult {
	start := time.Now()
	out, err := c.Runner.Run(ctx, c.Host, ProbeCommand, c.Timeout)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    err.Error(),
			Suggestion: probeSuggestion(err),
		}
	}

	n := CountGPUs(out)
	if n == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Reachable, but nvidia-smi listed no GPUs",
			Suggestion: "Check the NVIDIA driver on the host: nvidia-smi",
		}
	}

	msg := fmt.Sprintf("%d GPU%s in %s", n, pluralize(n), elapsed)
	if c.Alias != nil {
		msg += " (" + c.Alias.Description() + ")"
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: msg,
	}
}

// CountGPUs counts the "GPU n: ..." lines printed by nvidia-smi -L.
func CountGPUs(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			n++
		}
	}
	return n
}

func probeSuggestion(err error) string {
	var runErr *remote.RunError
	if !stderrors.As(err, &runErr) {
		return ""
	}

	switch runErr.Kind {
	case remote.AuthFailed:
		return "Check your key is authorized on the host: ssh " + runErr.Host
	case remote.ConnectionFailed:
		return "Check the host name and network: ssh " + runErr.Host
	case remote.Timeout:
		return "The host is slow or unreachable; try a larger --timeout"
	case remote.NonZeroExit:
		return "nvidia-smi failed on the host; is the NVIDIA driver installed?"
	case remote.LocalToolMissing:
		return "Install OpenSSH, or use --transport native"
	default:
		return ""
	}
}
