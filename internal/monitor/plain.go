package monitor

import (
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/gpumon/internal/gpu"
)

// PlainRenderer writes one full report per snapshot to Out. It is used for
// --once and whenever stdout is not a terminal.
type PlainRenderer struct {
	Out     io.Writer
	Options ReportOptions

	mu  sync.Mutex
	err error
}

// NewPlainRenderer creates a renderer that writes to out.
func NewPlainRenderer(out io.Writer, opts ReportOptions) *PlainRenderer {
	return &PlainRenderer{Out: out, Options: opts}
}

// Render writes the report for snap. Write errors are remembered and
// returned by Err; later calls become no-ops.
func (r *PlainRenderer) Render(snap gpu.ClusterSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}

	stamp := snap.GeneratedAt.Format("2006-01-02 15:04:05")
	_, err := fmt.Fprintf(r.Out, "%s  %s\n%s\n\n", stamp, snapshotStats(snap), RenderReport(snap, r.Options))
	r.err = err
}

// Err returns the first write error.
func (r *PlainRenderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
