package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// execResult is the outcome of one remote command.
type execResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run executes cmd as the login user and returns its trimmed stdout.
func (c *SSHClient) Run(ctx context.Context, cmd string) (string, error) {
	res, err := c.execute(ctx, cmd, false)
	return res.Stdout, err
}

// Sudo executes cmd with root privileges. When the login user is root the
// command runs directly.
func (c *SSHClient) Sudo(ctx context.Context, cmd string) (string, error) {
	res, err := c.execute(ctx, cmd, !c.config.IsRoot())
	return res.Stdout, err
}

func (c *SSHClient) execute(ctx context.Context, cmd string, useSudo bool) (execResult, error) {
	startTime := time.Now()

	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	log.Debug().
		Str("host", c.config.Name).
		Str("command", cmd).
		Bool("sudo", useSudo).
		Msg("executing command")

	sshClient, err := c.getClient()
	if err != nil {
		return execResult{ExitCode: -1}, err
	}

	sess, err := sshClient.NewSession()
	if err != nil {
		return execResult{ExitCode: -1}, &TransportError{
			Op:          "execute",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer sess.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	sess.Stdout = &stdoutBuf
	sess.Stderr = &stderrBuf

	finalCmd := cmd
	if useSudo {
		finalCmd = sudoCommand(cmd, c.config.SudoPassword != "")
		if c.config.SudoPassword != "" {
			sess.Stdin = strings.NewReader(c.config.SudoPassword + "\n")
		}
	}

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- sess.Run(finalCmd)
	}()

	var execErr error
	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		// The buffers are only safe to read once Run has returned.
		<-doneChan
		execErr = ctx.Err()
	case execErr = <-doneChan:
	}

	res := execResult{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		Duration: time.Since(startTime),
	}

	var exitErr *ssh.ExitError
	switch {
	case execErr == nil:
	case errors.As(execErr, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		res.ExitCode = -1
	}

	log.Debug().
		Str("host", c.config.Name).
		Str("command", cmd).
		Int("exit_code", res.ExitCode).
		Int("stdout_len", len(res.Stdout)).
		Int("stderr_len", len(res.Stderr)).
		Dur("duration", res.Duration).
		Err(execErr).
		Msg("command completed")

	if execErr != nil {
		if exitErr != nil {
			return res, &TransportError{
				Op:  "execute",
				Err: fmt.Errorf("command exited with code %d: %s", res.ExitCode, res.Stderr),
			}
		}
		return res, &TransportError{
			Op:          "execute",
			Err:         execErr,
			IsTemporary: true,
		}
	}

	return res, nil
}

// sudoCommand wraps cmd so compound shell commands run entirely under sudo.
func sudoCommand(cmd string, withPassword bool) string {
	if withPassword {
		return "sudo -S -p '' sh -c " + shellQuote(cmd)
	}
	return "sudo -n sh -c " + shellQuote(cmd)
}

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
