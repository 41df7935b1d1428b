package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/logger"
	remotetest "github.com/rileyhilliard/gpumon/internal/remote/testing"
)

const oneIdleGPU = "0, NVIDIA H100, 3, 100, 81559, 35, 70.2, 700.00\n"
const oneHotGPU = "0, NVIDIA H100, 96, 80000, 81559, 88, 690.0, 700.00\n"

func newTestAggregator(runner *remotetest.FakeRunner, timeout time.Duration) *Aggregator {
	p := NewPoller(runner, timeout)
	p.Log = logger.Noop()
	a := NewAggregator(p)
	a.Log = logger.Noop()
	return a
}

func hostNames(snap gpu.ClusterSnapshot) []string {
	names := make([]string, len(snap.Hosts))
	for i, h := range snap.Hosts {
		names[i] = h.Host
	}
	return names
}

func TestAggregate_NaturalOrderAndCardinality(t *testing.T) {
	runner := remotetest.NewFakeRunner().
		SetOutput("h10", oneIdleGPU).
		SetOutput("h2", oneIdleGPU).
		SetOutput("h1", oneIdleGPU)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := newTestAggregator(runner, time.Second)
	a.Now = func() time.Time { return fixed }

	snap := a.Aggregate(context.Background(), "research", []string{"h10", "h2", "h1"})

	assert.Equal(t, "research", snap.ClusterName)
	assert.Equal(t, []string{"h1", "h2", "h10"}, hostNames(snap))
	assert.Equal(t, fixed, snap.GeneratedAt)
	assert.Empty(t, snap.ProblemGPUs)
}

func TestAggregate_FailedHostStillPresent(t *testing.T) {
	runner := remotetest.NewFakeRunner().
		SetOutput("gpu1", oneIdleGPU).
		SetOutput("gpu3", oneIdleGPU)
	// gpu2 has no response: the fake reports it unresolvable.

	snap := newTestAggregator(runner, time.Second).Aggregate(context.Background(), "c", []string{"gpu1", "gpu2", "gpu3"})

	require.Len(t, snap.Hosts, 3)
	h2, ok := snap.Host("gpu2")
	require.True(t, ok)
	assert.Equal(t, gpu.StatusUnreachable, h2.Status)
	assert.Contains(t, h2.ErrorDetail, "Could not resolve hostname")

	require.Len(t, snap.ProblemGPUs, 1)
	assert.Equal(t, gpu.ReasonHostError, snap.ProblemGPUs[0].Reason)
	assert.Equal(t, "gpu2", snap.ProblemGPUs[0].Host)
}

func TestAggregate_TimeoutIsolatedToOneHost(t *testing.T) {
	runner := remotetest.NewFakeRunner().
		SetOutput("fast1", oneIdleGPU).
		SetOutput("fast2", oneHotGPU).
		SetResponse("slow", remotetest.Response{Stdout: oneIdleGPU, Delay: 5 * time.Second})

	start := time.Now()
	snap := newTestAggregator(runner, 100*time.Millisecond).Aggregate(context.Background(), "c", []string{"slow", "fast1", "fast2"})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	require.Len(t, snap.Hosts, 3)

	slow, _ := snap.Host("slow")
	assert.Equal(t, gpu.StatusTimeout, slow.Status)

	fast1, _ := snap.Host("fast1")
	assert.Equal(t, gpu.StatusOK, fast1.Status)

	reasons := gpu.CountByReason(snap.ProblemGPUs)
	assert.Equal(t, 1, reasons[gpu.ReasonCritical])
	assert.Equal(t, 1, reasons[gpu.ReasonHostError])
}

func TestAggregate_RunnerIgnoringContext(t *testing.T) {
	runner := remotetest.NewFakeRunner().
		SetOutput("ok", oneIdleGPU).
		SetResponse("stuck", remotetest.Response{Delay: 3 * time.Second, IgnoreContext: true})

	a := newTestAggregator(runner, 50*time.Millisecond)
	a.Grace = 50 * time.Millisecond

	start := time.Now()
	snap := a.Aggregate(context.Background(), "c", []string{"ok", "stuck"})

	assert.Less(t, time.Since(start), time.Second)
	stuck, ok := snap.Host("stuck")
	require.True(t, ok)
	assert.Equal(t, gpu.StatusTimeout, stuck.Status)
	assert.Equal(t, "timed out after 50ms", stuck.ErrorDetail)
}

func TestAggregate_DedupesHosts(t *testing.T) {
	runner := remotetest.NewFakeRunner().SetOutput("gpu1", oneIdleGPU).SetOutput("gpu2", oneIdleGPU)

	snap := newTestAggregator(runner, time.Second).Aggregate(context.Background(), "c", []string{"gpu1", "gpu2", " gpu1 ", ""})

	assert.Equal(t, []string{"gpu1", "gpu2"}, hostNames(snap))
	assert.Equal(t, 1, runner.CallCount("gpu1"))
}

func TestAggregate_MaxParallel(t *testing.T) {
	runner := remotetest.NewFakeRunner()
	hosts := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	for _, h := range hosts {
		runner.SetResponse(h, remotetest.Response{Stdout: oneIdleGPU, Delay: 20 * time.Millisecond})
	}

	a := newTestAggregator(runner, time.Second)
	a.MaxParallel = 2
	snap := a.Aggregate(context.Background(), "c", hosts)

	assert.Len(t, snap.Hosts, len(hosts))
	assert.LessOrEqual(t, runner.MaxConcurrent(), 2)
}

func TestAggregate_Concurrent(t *testing.T) {
	runner := remotetest.NewFakeRunner()
	hosts := []string{"n1", "n2", "n3", "n4"}
	for _, h := range hosts {
		runner.SetResponse(h, remotetest.Response{Stdout: oneIdleGPU, Delay: 200 * time.Millisecond})
	}

	start := time.Now()
	newTestAggregator(runner, time.Second).Aggregate(context.Background(), "c", hosts)
	assert.Less(t, time.Since(start), 600*time.Millisecond)
}

func TestAggregate_NoHosts(t *testing.T) {
	snap := newTestAggregator(remotetest.NewFakeRunner(), time.Second).Aggregate(context.Background(), "empty", nil)
	assert.Empty(t, snap.Hosts)
	assert.Empty(t, snap.ProblemGPUs)
}

func TestAggregate_UsesPolicy(t *testing.T) {
	runner := remotetest.NewFakeRunner().SetOutput("gpu1", oneHotGPU)
	a := newTestAggregator(runner, time.Second)
	a.Policy = gpu.Policy{WarnUtil: 97, CritUtil: 99, WarnTemp: 95, CritTemp: 99}

	snap := a.Aggregate(context.Background(), "c", []string{"gpu1"})
	assert.Empty(t, snap.ProblemGPUs)
}

func TestUniqueHosts(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueHosts([]string{"a", "b", "a", " ", "c", "b"}))
	assert.Empty(t, UniqueHosts(nil))
}
