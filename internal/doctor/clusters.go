package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
)

// NewClusterChecks returns one check per cluster file in store, or a single
// warning check when there are none.
func NewClusterChecks(store *config.Store) []Check {
	names, err := store.List()
	if err != nil {
		return []Check{&staticCheck{
			name:     "clusters",
			category: CategoryClusters,
			result:   failureResult("clusters", err),
		}}
	}
	if len(names) == 0 {
		return []Check{&staticCheck{
			name:     "clusters",
			category: CategoryClusters,
			result: CheckResult{
				Name:       "clusters",
				Status:     StatusWarn,
				Message:    "No cluster files in " + store.Dir,
				Suggestion: "Create one with: gpumon add-cluster <name> --host <host>",
			},
		}}
	}

	checks := make([]Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, &ClusterFileCheck{Store: store, Cluster: name})
	}
	return checks
}

// ClusterFileCheck verifies a cluster file loads and validates.
type ClusterFileCheck struct {
	Store   *config.Store
	Cluster string
}

func (c *ClusterFileCheck) Name() string     { return "cluster:" + c.Cluster }
func (c *ClusterFileCheck) Category() string { return CategoryClusters }

func (c *ClusterFileCheck) Run(context.Context) CheckResult {
	cfg, err := c.Store.Load(c.Cluster)
	if err != nil {
		return failureResult(c.Name(), err)
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %d host%s, every %s", cfg.Title(), len(cfg.Hosts), pluralize(len(cfg.Hosts)), cfg.Interval),
	}
}

// staticCheck reports a result computed while building the check list.
type staticCheck struct {
	name     string
	category string
	result   CheckResult
}

func (c *staticCheck) Name() string                    { return c.name }
func (c *staticCheck) Category() string                { return c.category }
func (c *staticCheck) Run(context.Context) CheckResult { return c.result }

// failureResult turns an error into a failing result, keeping the
// suggestion of a structured error.
func failureResult(name string, err error) CheckResult {
	result := CheckResult{
		Name:    name,
		Status:  StatusFail,
		Message: errors.Summary(err),
	}
	if structured, ok := errors.As(err); ok {
		result.Suggestion = structured.Suggestion
	}
	return result
}
