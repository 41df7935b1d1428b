// Package monitor renders cluster snapshots for the terminal.
//
// Two front ends share the same table builders:
//
//	Model          - Bubble Tea dashboard fed by the refresh scheduler
//	PlainRenderer  - writes one report per cycle for --once or piped output
//
// # Architecture
//
// The dashboard follows The Elm Architecture. It never polls hosts itself:
// the scheduler runs in its own goroutine and hands every completed
// gpu.ClusterSnapshot to the running program with tea.Program.Send, wrapped
// in a SnapshotMsg. A FatalMsg carries a terminal scheduler error (for
// example a missing ssh binary) and stops the program.
//
// # Layout
//
//	Header    - cluster title, host/GPU counts, cycle number, last update
//	Summary   - one row per host: glyph, busy/total, available IDs, averages
//	Problems  - GPUs over threshold and failed hosts, or "All clear"
//	Details   - every GPU on every online host (toggle with "a")
//	Footer    - key hints
//
// Everything below the header scrolls inside a viewport.
package monitor
