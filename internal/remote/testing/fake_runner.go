// Package testing provides a scripted remote.Runner for tests.
package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/gpumon/internal/remote"
)

// Response is the canned result for one host.
type Response struct {
	Stdout string
	Err    error

	// Delay holds the call before responding. Like the real runners, the
	// call gives up with a Timeout error once the timeout passed to Run or
	// ctx ends, unless IgnoreContext is set.
	Delay         time.Duration
	IgnoreContext bool

	// Panic makes Run panic with this value.
	Panic interface{}
}

// Call records one Run invocation.
type Call struct {
	Host    string
	Command string
	Timeout time.Duration
}

// FakeRunner answers Run from per-host canned responses.
// Hosts without a response get a ConnectionFailed error.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	inFlight  int
	maxFlight int
}

// NewFakeRunner returns a FakeRunner with no responses.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]Response)}
}

// SetResponse sets the response for host.
func (f *FakeRunner) SetResponse(host string, r Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[host] = r
	return f
}

// SetOutput is shorthand for a successful response.
func (f *FakeRunner) SetOutput(host, stdout string) *FakeRunner {
	return f.SetResponse(host, Response{Stdout: stdout})
}

// SetError is shorthand for a failing response.
func (f *FakeRunner) SetError(host string, err error) *FakeRunner {
	return f.SetResponse(host, Response{Err: err})
}

// Run implements remote.Runner.
func (f *FakeRunner) Run(ctx context.Context, host, command string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Host: host, Command: command, Timeout: timeout})
	resp, ok := f.responses[host]
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if !ok {
		return "", &remote.RunError{Kind: remote.ConnectionFailed, Host: host, ExitCode: -1, Stderr: "ssh: Could not resolve hostname " + host}
	}

	if resp.Delay > 0 {
		if resp.IgnoreContext {
			time.Sleep(resp.Delay)
		} else {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			timer := time.NewTimer(resp.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return "", &remote.RunError{Kind: remote.Timeout, Host: host, ExitCode: -1, Err: fmt.Errorf("timed out after %s", timeout)}
			case <-timer.C:
			}
		}
	}

	if resp.Panic != nil {
		panic(resp.Panic)
	}

	return resp.Stdout, resp.Err
}

// Calls returns a copy of the recorded calls in invocation order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times host was polled.
func (f *FakeRunner) CallCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Host == host {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the highest number of simultaneous Run calls seen.
func (f *FakeRunner) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

var _ remote.Runner = (*FakeRunner)(nil)
