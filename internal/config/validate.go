package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/errors"
)

// ValidateName rejects names that can't safely be used as a file stem.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New(errors.ErrConfig, "Cluster name can't be empty", "Pick a name like 'research' or 'a100-pool'")
	case strings.ContainsAny(name, `/\`):
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid cluster name '%s': can't contain slashes", name),
			"The name becomes a file name in the config directory")
	case strings.HasPrefix(name, "."):
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid cluster name '%s': can't start with a dot", name),
			"The name becomes a file name in the config directory")
	}
	return nil
}

// Validate checks a loaded cluster and returns the first problem found.
func Validate(c *Cluster) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := validateHosts(c.Hosts); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("interval must be positive, got %s", c.Interval),
			"Use e.g. interval: 5s")
	}
	if c.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("timeout must be positive, got %s", c.Timeout),
			"Use e.g. timeout: 25s")
	}
	if c.MaxParallel < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("max_parallel can't be negative, got %d", c.MaxParallel),
			"Use 0 to poll every host at once")
	}
	if err := ValidateTransport(c.Transport); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return errors.New(errors.ErrConfig, err.Error(),
			"Thresholds are percentages and °C, with warn <= crit")
	}
	return nil
}

// ValidateTransport accepts "exec", "native" or empty (exec).
func ValidateTransport(t Transport) error {
	switch t {
	case "", TransportExec, TransportNative:
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown transport '%s'", t),
		"Use 'exec' (system ssh) or 'native' (built-in client)")
}

func validateHosts(hosts []string) error {
	if len(hosts) == 0 {
		return errors.New(errors.ErrConfig, "No hosts defined", "Add at least one host to the cluster")
	}
	seen := make(map[string]bool, len(hosts))
	for i, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			return errors.New(errors.ErrConfig, fmt.Sprintf("Host #%d is empty", i+1), "Remove the blank entry")
		}
		if strings.ContainsAny(h, " \t") {
			return errors.New(errors.ErrConfig, fmt.Sprintf("Host '%s' contains whitespace", h), "Use one host-spec per entry")
		}
		if seen[h] {
			return errors.New(errors.ErrConfig, fmt.Sprintf("Host '%s' is listed twice", h), "Remove the duplicate")
		}
		seen[h] = true
	}
	return nil
}
