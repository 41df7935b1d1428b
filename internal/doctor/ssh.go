package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rileyhilliard/gpumon/internal/remote"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// NewSSHChecks returns the checks for the local SSH setup.
func NewSSHChecks() []Check {
	return []Check{
		&SSHBinaryCheck{},
		&SSHConfigCheck{},
		&SSHKeyCheck{},
		&SSHAgentCheck{},
	}
}

// SSHBinaryCheck verifies the ssh client used by the exec transport is on PATH.
type SSHBinaryCheck struct {
	lookPath func(string) (string, error)
}

func (c *SSHBinaryCheck) Name() string     { return "ssh_binary" }
func (c *SSHBinaryCheck) Category() string { return CategorySSH }

func (c *SSHBinaryCheck) Run(context.Context) CheckResult {
	lookPath := c.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := lookPath(remote.SSHBinary)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "ssh client not found on PATH",
			Suggestion: "Install OpenSSH, or monitor with --transport native",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "ssh client found: " + path,
	}
}

// SSHConfigCheck verifies ~/.ssh/config parses.
type SSHConfigCheck struct {
	Path string // defaults to ~/.ssh/config
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return CategorySSH }

func (c *SSHConfigCheck) Run(context.Context) CheckResult {
	path := c.configPath()

	entries, err := sshutil.ParseSSHConfigFile(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Couldn't parse %s: %v", path, err),
			Suggestion: "Fix the syntax error; both ssh and the native transport read this file",
		}
	}
	if entries == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No SSH host aliases configured (hosts are used as given)",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH config parsed: %d host alias%s", len(entries), esPlural(len(entries))),
	}
}

func (c *SSHConfigCheck) configPath() string {
	if c.Path != "" {
		return c.Path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ssh", "config")
}

// SSHKeyCheck looks for a default private key and checks its permissions.
type SSHKeyCheck struct {
	KeyFiles []string // defaults to sshutil.DefaultKeyFiles
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return CategorySSH }

func (c *SSHKeyCheck) Run(context.Context) CheckResult {
	keys := c.KeyFiles
	if keys == nil {
		keys = sshutil.DefaultKeyFiles()
	}

	for _, key := range keys {
		info, err := os.Stat(key)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o077 != 0 {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusWarn,
				Message:    fmt.Sprintf("Insecure permissions on %s", filepath.Base(key)),
				Suggestion: "Fix: chmod 600 " + key,
			}
		}
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "SSH key found: " + filepath.Base(key),
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No default SSH key found",
		Suggestion: "Keys named in ~/.ssh/config or loaded in the agent still work; otherwise run: ssh-keygen -t ed25519",
	}
}

// SSHAgentCheck verifies the SSH agent is reachable and holds keys.
type SSHAgentCheck struct {
	keyCount func() (int, error)
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(context.Context) CheckResult {
	keyCount := c.keyCount
	if keyCount == nil {
		keyCount = sshutil.AgentKeyCount
	}

	n, err := keyCount()
	switch {
	case err != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not reachable: " + err.Error(),
			Suggestion: "Start one with: eval $(ssh-agent) && ssh-add",
		}
	case n == 0:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	default:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("SSH agent running with %d key%s loaded", n, pluralize(n)),
		}
	}
}

func esPlural(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}
