package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/logger"
)

// DefaultGrace is how long past the per-host timeout the aggregator waits
// before giving up on a runner that ignores cancellation.
const DefaultGrace = 5 * time.Second

// Aggregator fans one Poll out per host and builds the ClusterSnapshot.
type Aggregator struct {
	Poller *Poller
	Policy gpu.Policy

	// MaxParallel caps concurrent polls. Zero or negative means one per host.
	MaxParallel int

	Grace time.Duration
	Now   func() time.Time
	Log   logger.Logger
}

// NewAggregator returns an Aggregator with the default policy and grace.
func NewAggregator(poller *Poller) *Aggregator {
	return &Aggregator{
		Poller: poller,
		Policy: gpu.DefaultPolicy(),
		Grace:  DefaultGrace,
		Now:    time.Now,
		Log:    logger.Default(),
	}
}

// Aggregate polls every distinct host once. The snapshot has exactly one
// entry per distinct host, in natural host order, whatever the outcome.
// Duplicate host-specs are polled once; the first occurrence wins.
func (a *Aggregator) Aggregate(ctx context.Context, clusterName string, hosts []string) gpu.ClusterSnapshot {
	hosts = UniqueHosts(hosts)
	results := make([]gpu.HostSnapshot, len(hosts))

	g := new(errgroup.Group)
	if a.MaxParallel > 0 {
		g.SetLimit(a.MaxParallel)
	}

	for i, host := range hosts {
		g.Go(func() error {
			results[i] = a.pollGuarded(ctx, host)
			return nil
		})
	}
	_ = g.Wait()

	gpu.SortHosts(results)

	snap := gpu.ClusterSnapshot{
		ClusterName: clusterName,
		Hosts:       results,
		GeneratedAt: a.now(),
	}
	snap.ProblemGPUs = gpu.Classify(snap, a.Policy)

	_, online, total := snap.Counts()
	a.logger().Debug("cluster %s: %d/%d hosts online, %d GPUs, %d problems",
		clusterName, online, len(results), total, len(snap.ProblemGPUs))

	return snap
}

// pollGuarded bounds a single poll by timeout+grace even if the runner
// never returns. The abandoned goroutine writes into a buffered channel
// and exits whenever the runner finally does.
func (a *Aggregator) pollGuarded(ctx context.Context, host string) gpu.HostSnapshot {
	limit := a.Poller.Timeout + a.Grace
	start := time.Now()

	done := make(chan gpu.HostSnapshot, 1)
	go func() {
		done <- a.Poller.Poll(ctx, host)
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case snap := <-done:
		return snap
	case <-timer.C:
		a.logger().Warn("poll %s did not return within %s, abandoning it", host, limit)
		return gpu.Failed(host, gpu.StatusTimeout,
			fmt.Sprintf("timed out after %s", a.Poller.Timeout), time.Since(start))
	}
}

func (a *Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Aggregator) logger() logger.Logger {
	if a.Log == nil {
		return logger.Noop()
	}
	return a.Log
}

// UniqueHosts trims host-specs and drops blanks and repeats, keeping the
// first occurrence.
func UniqueHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
