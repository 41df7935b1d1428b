package remote

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		stderr string
		want   ErrorKind
	}{
		{"alice@gpu1: Permission denied (publickey).", AuthFailed},
		{"Received disconnect from 10.0.0.1 port 22:2: Too many authentication failures", AuthFailed},
		{"Host key verification failed.", AuthFailed},
		{"@@@ WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED! @@@", AuthFailed},
		{"ssh: Could not resolve hostname gpu9: Name or service not known", ConnectionFailed},
		{"ssh: connect to host 10.0.0.1 port 22: Connection refused", ConnectionFailed},
		{"ssh: connect to host 10.0.0.1 port 22: Connection timed out", ConnectionFailed},
		{"", ConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStderr(tt.stderr))
		})
	}
}

func TestSSHRunnerArgs(t *testing.T) {
	tests := []struct {
		name string
		user string
		host string
		want []string
	}{
		{
			name: "no override",
			host: "gpu1",
			want: []string{"-T", "-o", "BatchMode=yes", "-o", "ConnectTimeout=10", "gpu1", "cmd"},
		},
		{
			name: "override applied",
			user: "ml",
			host: "gpu1",
			want: []string{"-T", "-o", "BatchMode=yes", "-o", "ConnectTimeout=10", "-l", "ml", "gpu1", "cmd"},
		},
		{
			name: "explicit user wins",
			user: "ml",
			host: "alice@gpu1",
			want: []string{"-T", "-o", "BatchMode=yes", "-o", "ConnectTimeout=10", "alice@gpu1", "cmd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSSHRunner(tt.user)
			assert.Equal(t, tt.want, r.Args(tt.host, "cmd"))
		})
	}
}

func TestSSHRunnerArgs_ConnectTimeoutFloor(t *testing.T) {
	r := &SSHRunner{ConnectTimeout: 100 * time.Millisecond}
	assert.Contains(t, r.Args("h", "c"), "ConnectTimeout=1")
}

// fakeSSH writes a shell script standing in for the ssh binary.
func fakeSSH(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "ssh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestSSHRunnerRun(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		timeout  time.Duration
		wantOut  string
		wantKind ErrorKind
		wantErr  bool
		wantCode int
		wantMsg  string
	}{
		{
			name:    "success",
			script:  `echo "0, A100, 1, 2, 3, 4, 5, 6"`,
			timeout: 5 * time.Second,
			wantOut: "0, A100, 1, 2, 3, 4, 5, 6\n",
		},
		{
			name:     "auth failure",
			script:   `echo "alice@gpu1: Permission denied (publickey)." >&2; exit 255`,
			timeout:  5 * time.Second,
			wantErr:  true,
			wantKind: AuthFailed,
			wantCode: -1,
			wantMsg:  "alice@gpu1: Permission denied (publickey).",
		},
		{
			name:     "unresolvable",
			script:   `echo "ssh: Could not resolve hostname gpu9: Name or service not known" >&2; exit 255`,
			timeout:  5 * time.Second,
			wantErr:  true,
			wantKind: ConnectionFailed,
			wantCode: -1,
			wantMsg:  "ssh: Could not resolve hostname gpu9: Name or service not known",
		},
		{
			name:     "remote command failed",
			script:   `echo "bash: nvidia-smi: command not found" >&2; exit 127`,
			timeout:  5 * time.Second,
			wantErr:  true,
			wantKind: NonZeroExit,
			wantCode: 127,
			wantMsg:  "exit 127: bash: nvidia-smi: command not found",
		},
		{
			name:     "timeout",
			script:   `sleep 10`,
			timeout:  200 * time.Millisecond,
			wantErr:  true,
			wantKind: Timeout,
			wantCode: -1,
			wantMsg:  "timed out after 200ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SSHRunner{Binary: fakeSSH(t, tt.script)}

			start := time.Now()
			out, err := r.Run(context.Background(), "gpu1", "nvidia-smi", tt.timeout)
			assert.Less(t, time.Since(start), tt.timeout+waitDelay+time.Second)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOut, out)
				return
			}

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, tt.wantKind, runErr.Kind)
			assert.Equal(t, tt.wantCode, runErr.ExitCode)
			assert.Equal(t, "gpu1", runErr.Host)
			assert.Equal(t, tt.wantMsg, runErr.Error())
			assert.Empty(t, out)
		})
	}
}

func TestSSHRunnerRun_MissingBinary(t *testing.T) {
	r := &SSHRunner{Binary: "gpumon-definitely-not-a-real-ssh"}
	_, err := r.Run(context.Background(), "gpu1", "true", time.Second)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, LocalToolMissing, runErr.Kind)
}

func TestCheckLocalTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	err := CheckLocalTool()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
}

func TestRunErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *RunError
		want string
	}{
		{"stderr first line", &RunError{Kind: ConnectionFailed, Stderr: "line one\nline two"}, "line one"},
		{"falls back to cause", &RunError{Kind: ConnectionFailed, Err: stderrors.New("dial tcp: refused")}, "dial tcp: refused"},
		{"falls back to kind", &RunError{Kind: AuthFailed}, "auth failed"},
		{"exit without stderr", &RunError{Kind: NonZeroExit, ExitCode: 9}, "exit 9"},
		{"timeout", &RunError{Kind: Timeout}, "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassifyDialError(t *testing.T) {
	ctx := context.Background()

	auth := &sshutil.DialError{Host: "gpu1", Phase: sshutil.PhaseAuth, Err: stderrors.New("unable to authenticate")}
	assert.Equal(t, AuthFailed, classifyDialError(ctx, "gpu1", time.Second, auth).Kind)

	conn := &sshutil.DialError{Host: "gpu1", Phase: sshutil.PhaseConnect, Err: stderrors.New("connection refused")}
	assert.Equal(t, ConnectionFailed, classifyDialError(ctx, "gpu1", time.Second, conn).Kind)

	expired, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	<-expired.Done()
	got := classifyDialError(expired, "gpu1", 3*time.Second, conn)
	assert.Equal(t, Timeout, got.Kind)
	assert.Equal(t, "timed out after 3s", got.Error())
}

func TestNativeRunner_DialFailure(t *testing.T) {
	r := NewNativeRunner("ml")

	var gotOpts sshutil.Options
	r.dial = func(ctx context.Context, host string, opts sshutil.Options) (*sshutil.Client, error) {
		gotOpts = opts
		return nil, &sshutil.DialError{Host: host, Phase: sshutil.PhaseAuth, Err: stderrors.New("unable to authenticate")}
	}

	_, err := r.Run(context.Background(), "gpu1", "nvidia-smi", time.Second)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, AuthFailed, runErr.Kind)
	assert.Equal(t, "ml", gotOpts.User)
	assert.Equal(t, 10*time.Second, gotOpts.ConnectTimeout)
}

func TestHasExplicitUser(t *testing.T) {
	assert.True(t, HasExplicitUser("alice@gpu1"))
	assert.False(t, HasExplicitUser("gpu1"))
}
