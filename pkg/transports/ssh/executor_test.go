package ssh

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutorRun(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")
	ctx := context.Background()

	tests := []struct {
		name           string
		command        string
		expectError    bool
		expectedStdout string
		expectedStderr string
		expectedExit   int
	}{
		{
			name:           "simple echo",
			command:        "echo test",
			expectedStdout: "test",
		},
		{
			name:           "stderr output",
			command:        "echo error >&2",
			expectedStderr: "error",
		},
		{
			name:           "exit with error",
			command:        "exit 1",
			expectError:    true,
			expectedStderr: "failed",
			expectedExit:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.execute(ctx, tt.command, false)

			if tt.expectError && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if res.Stdout != tt.expectedStdout {
				t.Errorf("expected stdout '%s', got '%s'", tt.expectedStdout, res.Stdout)
			}
			if res.Stderr != tt.expectedStderr {
				t.Errorf("expected stderr '%s', got '%s'", tt.expectedStderr, res.Stderr)
			}
			if res.ExitCode != tt.expectedExit {
				t.Errorf("expected exit code %d, got %d", tt.expectedExit, res.ExitCode)
			}

			out, runErr := client.Run(ctx, tt.command)
			if out != tt.expectedStdout || (runErr != nil) != tt.expectError {
				t.Errorf("Run() = %q, %v", out, runErr)
			}
		})
	}
}

func TestExecutorRunErrorIsTransportError(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	_, err := client.Run(context.Background(), "exit 1")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if transportErr.Op != "execute" || transportErr.Temporary() {
		t.Errorf("unexpected transport error: %+v", transportErr)
	}
}

func TestExecutorSudo(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		command  string
		want     string
	}{
		{
			name:    "root runs directly",
			user:    "root",
			command: "whoami",
			want:    "whoami",
		},
		{
			name:    "non-root uses non-interactive sudo",
			user:    "testuser",
			command: "whoami",
			want:    "sudo -n sh -c 'whoami'",
		},
		{
			name:     "password is read from stdin",
			user:     "testuser",
			password: "secret",
			command:  "cat /etc/shadow",
			want:     "sudo -S -p '' sh -c 'cat /etc/shadow'",
		},
		{
			name:    "single quotes are escaped",
			user:    "testuser",
			command: "echo 'hi' > /tmp/x",
			want:    `sudo -n sh -c 'echo '\''hi'\'' > /tmp/x'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestSSHServer(t)
			defer server.close()

			client := server.connect(t, tt.user)
			client.config.SudoPassword = tt.password

			if _, err := client.Sudo(context.Background(), tt.command); err != nil {
				t.Fatalf("sudo command failed: %v", err)
			}

			executed := server.executed()
			if len(executed) == 0 || executed[len(executed)-1] != tt.want {
				t.Errorf("expected command %q, got %v", tt.want, executed)
			}
		})
	}
}

func TestExecutorCancelWaitsForCommand(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := client.execute(ctx, "hang", false)
	if err == nil {
		t.Fatal("expected an error from a cancelled command")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if res.Stdout != "started" {
		t.Errorf("expected output written before cancellation, got %q", res.Stdout)
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
}

func TestExecutorCancelledContext(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	// The test server answers immediately, so either outcome is acceptable;
	// the call must simply return.
	if _, err := client.Run(ctx, "sleep 10"); err != nil {
		t.Logf("command cancelled as expected: %v", err)
	}
}
