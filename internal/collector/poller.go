// Package collector polls hosts for GPU telemetry and assembles the
// per-cycle cluster snapshot.
package collector

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/gpu/parsers"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/remote"
)

// DefaultTimeout is the per-host command timeout.
const DefaultTimeout = 25 * time.Second

// snippetLen caps how much raw output a parse error detail carries.
const snippetLen = 120

// Poller turns one remote query into one HostSnapshot.
type Poller struct {
	Runner  remote.Runner
	Timeout time.Duration
	Command string
	Log     logger.Logger
}

// NewPoller returns a Poller that runs the nvidia-smi batch query.
func NewPoller(runner remote.Runner, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		Runner:  runner,
		Timeout: timeout,
		Command: parsers.QueryCommand(),
		Log:     logger.Default(),
	}
}

// Poll queries host and never fails: every outcome is a HostSnapshot,
// with problems expressed through Status and ErrorDetail.
func (p *Poller) Poll(ctx context.Context, host string) (snap gpu.HostSnapshot) {
	start := time.Now()
	log := p.logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error("poll %s panicked: %v", host, r)
			snap = gpu.Failed(host, gpu.StatusCommandFailed, fmt.Sprintf("internal error: %v", r), time.Since(start))
		}
	}()

	out, err := p.Runner.Run(ctx, host, p.Command, p.Timeout)
	latency := time.Since(start)
	if err != nil {
		status := statusForError(err)
		log.Debug("poll %s: %s after %s: %v", host, status, latency.Round(time.Millisecond), err)
		return gpu.Failed(host, status, err.Error(), latency)
	}

	gpus, err := parsers.ParseReport(out)
	if err != nil {
		log.Debug("poll %s: parse error: %v", host, err)
		return gpu.Failed(host, gpu.StatusParseError, fmt.Sprintf("%v; output: %q", err, snippet(out)), latency)
	}

	gpu.SortGPUs(gpus)
	log.Debug("poll %s: %d GPUs in %s", host, len(gpus), latency.Round(time.Millisecond))

	return gpu.HostSnapshot{
		Host:    host,
		GPUs:    gpus,
		Status:  gpu.StatusOK,
		Latency: latency,
	}
}

func (p *Poller) logger() logger.Logger {
	if p.Log == nil {
		return logger.Noop()
	}
	return p.Log
}

// statusForError maps a runner failure onto a host status.
func statusForError(err error) gpu.HostStatus {
	var runErr *remote.RunError
	if !stderrors.As(err, &runErr) {
		return gpu.StatusCommandFailed
	}
	switch runErr.Kind {
	case remote.ConnectionFailed, remote.AuthFailed:
		return gpu.StatusUnreachable
	case remote.Timeout:
		return gpu.StatusTimeout
	default:
		return gpu.StatusCommandFailed
	}
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
