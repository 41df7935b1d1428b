package remote

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// NativeRunner runs commands over an in-process SSH client. Every call
// dials, runs one session and closes the connection.
type NativeRunner struct {
	// User is used when the host-spec has no explicit user.
	User string

	ConnectTimeout time.Duration

	// InsecureIgnoreHostKey skips known_hosts verification.
	InsecureIgnoreHostKey bool

	Log logger.Logger

	// dial is swapped out in tests.
	dial func(ctx context.Context, host string, opts sshutil.Options) (*sshutil.Client, error)
}

// NewNativeRunner returns a NativeRunner that verifies host keys.
func NewNativeRunner(user string) *NativeRunner {
	return &NativeRunner{User: user, ConnectTimeout: 10 * time.Second}
}

// Run dials host, executes command and closes the connection.
func (r *NativeRunner) Run(ctx context.Context, host, command string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := r.dial
	if dial == nil {
		dial = sshutil.Dial
	}

	log := r.Log
	if log == nil {
		log = logger.Default()
	}
	log.Debug("native ssh dial %s", host)

	client, err := dial(ctx, host, sshutil.Options{
		User:                  r.User,
		ConnectTimeout:        r.ConnectTimeout,
		InsecureIgnoreHostKey: r.InsecureIgnoreHostKey,
	})
	if err != nil {
		return "", classifyDialError(ctx, host, timeout, err)
	}
	defer client.Close()

	stdout, stderr, code, err := client.Exec(ctx, command)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctxError(ctx, host, timeout)
		}
		return "", &RunError{Kind: ConnectionFailed, Host: host, ExitCode: -1, Err: err}
	}
	if code != 0 {
		return "", &RunError{Kind: NonZeroExit, Host: host, ExitCode: code, Stderr: string(stderr)}
	}
	return string(stdout), nil
}

func classifyDialError(ctx context.Context, host string, timeout time.Duration, err error) *RunError {
	if ctx.Err() != nil {
		return ctxError(ctx, host, timeout)
	}

	kind := ConnectionFailed
	var dialErr *sshutil.DialError
	if stderrors.As(err, &dialErr) && dialErr.Phase == sshutil.PhaseAuth {
		kind = AuthFailed
	}
	return &RunError{Kind: kind, Host: host, ExitCode: -1, Err: err}
}

func ctxError(ctx context.Context, host string, timeout time.Duration) *RunError {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutError(host, timeout)
	}
	return &RunError{Kind: Timeout, Host: host, ExitCode: -1, Err: ctx.Err()}
}
