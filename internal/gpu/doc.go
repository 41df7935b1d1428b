// Package gpu holds the fleet telemetry data model and the pure functions
// that operate on it.
//
// A poll cycle produces one ClusterSnapshot. Each configured host contributes
// exactly one HostSnapshot, whether the host answered or not: failures are
// carried as a HostStatus plus ErrorDetail, never as a missing entry.
// Snapshots are built once and handed downstream by value; nothing in this
// package mutates a snapshot after construction.
//
// # Key Components
//
//	GPUMetric        - one device row from nvidia-smi
//	HostSnapshot     - one host's result for a cycle
//	ClusterSnapshot  - every host for a cycle, in natural host order
//	Policy           - warning/critical thresholds
//	Classify         - flags problem GPUs for a snapshot
//	Summarize        - per-host rollups (busy/total, averages, ID ranges)
//	NaturalLess      - "h2" < "h10" host ordering
package gpu
