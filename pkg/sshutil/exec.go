package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Exec runs cmd in a new session and returns its output and exit code.
// A non-zero exit is not an error. Exit code is -1 if the command couldn't
// be run at all.
//
// When ctx is done before the command finishes the connection is closed,
// since a session cannot be interrupted reliably, and ctx.Err() is returned.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		// The buffers may still be written to until Run returns.
		c.Client.Close()
		return nil, nil, -1, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, fmt.Errorf("failed to run command: %w", err)
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}
