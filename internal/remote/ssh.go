package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/gpumon/internal/logger"
)

// sshExitCode is what the OpenSSH client exits with for its own failures.
const sshExitCode = 255

// waitDelay bounds how long Run waits for ssh to release its pipes after
// the process was killed.
const waitDelay = 2 * time.Second

// SSHRunner runs commands through the system ssh client in batch mode.
// Authentication, agents and multiplexing are whatever the user's ssh
// configuration provides.
type SSHRunner struct {
	// User is passed as -l when the host-spec has no explicit user.
	User string

	// ConnectTimeout is passed as -o ConnectTimeout. Zero means 10s.
	ConnectTimeout time.Duration

	// Binary overrides the ssh executable. Mostly for tests.
	Binary string

	Log logger.Logger
}

// NewSSHRunner returns an SSHRunner using the ssh on PATH.
func NewSSHRunner(user string) *SSHRunner {
	return &SSHRunner{User: user, ConnectTimeout: 10 * time.Second}
}

// Args returns the ssh arguments used for host and command.
func (r *SSHRunner) Args(host, command string) []string {
	connectTimeout := r.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	secs := int(connectTimeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}

	args := []string{
		"-T",
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(secs),
	}
	if r.User != "" && !HasExplicitUser(host) {
		args = append(args, "-l", r.User)
	}
	return append(args, host, command)
}

// Run executes command on host, killing ssh once timeout elapses.
func (r *SSHRunner) Run(ctx context.Context, host, command string, timeout time.Duration) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = SSHBinary
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, r.Args(host, command)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	log := r.Log
	if log == nil {
		log = logger.Default()
	}
	log.Debug("ssh %s", strings.Join(cmd.Args[1:len(cmd.Args)-1], " "))

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return "", &RunError{Kind: LocalToolMissing, Host: host, ExitCode: -1, Err: err}
	}
	if ctx.Err() != nil {
		return "", ctxError(ctx, host, timeout)
	}

	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		// Fork/exec failures other than a missing binary.
		return "", &RunError{Kind: LocalToolMissing, Host: host, ExitCode: -1, Err: fmt.Errorf("starting ssh: %w", err)}
	}

	code := exitErr.ExitCode()
	errText := stderr.String()
	if code == sshExitCode {
		return "", &RunError{Kind: ClassifyStderr(errText), Host: host, ExitCode: -1, Stderr: errText, Err: err}
	}
	return "", &RunError{Kind: NonZeroExit, Host: host, ExitCode: code, Stderr: errText, Err: err}
}

// authMarkers are OpenSSH client messages that mean the host rejected us.
var authMarkers = []string{
	"permission denied",
	"too many authentication failures",
	"host key verification failed",
	"no matching host key type",
	"remote host identification has changed",
}

// ClassifyStderr maps the stderr of an ssh exit 255 to AuthFailed or ConnectionFailed.
func ClassifyStderr(stderr string) ErrorKind {
	lower := strings.ToLower(stderr)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return AuthFailed
		}
	}
	return ConnectionFailed
}
