package config

import (
	"time"

	"github.com/rileyhilliard/gpumon/internal/gpu"
)

// Transport selects how commands reach the hosts.
type Transport string

const (
	// TransportExec shells out to the system ssh client.
	TransportExec Transport = "exec"
	// TransportNative uses the built-in SSH client.
	TransportNative Transport = "native"
)

// Defaults applied when a cluster file leaves a field out.
const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 25 * time.Second
)

// Cluster is one cluster file: a display name, the hosts to poll and
// optional per-cluster overrides.
type Cluster struct {
	// Name is the file stem, e.g. "research" for research.yaml. Not stored in the file.
	Name string `yaml:"-" mapstructure:"-"`

	// DisplayName is shown in the dashboard title. Defaults to Name.
	DisplayName string `yaml:"cluster_name" mapstructure:"cluster_name"`

	// Hosts are SSH host-specs: alias, hostname, user@hostname or host:port.
	Hosts []string `yaml:"hosts" mapstructure:"hosts"`

	// User is the SSH user for host-specs without an explicit user@.
	User string `yaml:"user,omitempty" mapstructure:"user"`

	Interval    time.Duration `yaml:"interval,omitempty" mapstructure:"interval"`
	Timeout     time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	MaxParallel int           `yaml:"max_parallel,omitempty" mapstructure:"max_parallel"`
	Transport   Transport     `yaml:"transport,omitempty" mapstructure:"transport"`
	Thresholds  gpu.Policy    `yaml:"thresholds" mapstructure:"thresholds"`
}

// Title returns the name shown to the user.
func (c *Cluster) Title() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// DefaultCluster returns a cluster with every optional field at its default.
func DefaultCluster(name string) *Cluster {
	return &Cluster{
		Name:        name,
		DisplayName: name,
		Hosts:       []string{},
		Interval:    DefaultInterval,
		Timeout:     DefaultTimeout,
		Transport:   TransportExec,
		Thresholds:  gpu.DefaultPolicy(),
	}
}
