// Package remote runs a shell command on a remote host over SSH and
// reports failures as a small closed set of kinds.
package remote

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
)

// Runner executes a command on a host and returns its stdout.
// Implementations must return within roughly timeout and report failures as *RunError.
type Runner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (string, error)
}

// ErrorKind classifies why a remote command produced no usable output.
type ErrorKind int

const (
	// ConnectionFailed covers DNS, refused and unreachable hosts, and ssh-level
	// failures that aren't about credentials.
	ConnectionFailed ErrorKind = iota
	// AuthFailed means the host answered but rejected us.
	AuthFailed
	// Timeout means the command didn't finish before the deadline.
	Timeout
	// NonZeroExit means the remote command ran and exited non-zero.
	NonZeroExit
	// LocalToolMissing means the local ssh client binary isn't available.
	LocalToolMissing
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection failed"
	case AuthFailed:
		return "auth failed"
	case Timeout:
		return "timeout"
	case NonZeroExit:
		return "non-zero exit"
	case LocalToolMissing:
		return "local tool missing"
	default:
		return "unknown"
	}
}

// RunError is returned by Runner implementations.
type RunError struct {
	Kind     ErrorKind
	Host     string
	ExitCode int    // set for NonZeroExit, -1 otherwise
	Stderr   string // raw stderr, possibly empty
	Err      error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case NonZeroExit:
		if line := errors.FirstLine(e.Stderr); line != "" {
			return fmt.Sprintf("exit %d: %s", e.ExitCode, line)
		}
		return fmt.Sprintf("exit %d", e.ExitCode)
	case Timeout:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "timed out"
	}

	if line := errors.FirstLine(e.Stderr); line != "" {
		return line
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// SSHBinary is the client looked up on PATH by SSHRunner and CheckLocalTool.
const SSHBinary = "ssh"

// CheckLocalTool verifies the ssh client is on PATH.
func CheckLocalTool() error {
	if _, err := exec.LookPath(SSHBinary); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"The ssh client isn't installed or isn't on PATH",
			"Install OpenSSH (e.g. apt install openssh-client) or use --transport native")
	}
	return nil
}

// HasExplicitUser reports whether a host-spec already carries "user@".
func HasExplicitUser(host string) bool {
	return strings.Contains(host, "@")
}

func timeoutError(host string, timeout time.Duration) *RunError {
	return &RunError{
		Kind:     Timeout,
		Host:     host,
		ExitCode: -1,
		Err:      fmt.Errorf("timed out after %s", timeout),
	}
}
