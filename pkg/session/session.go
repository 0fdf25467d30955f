// Package session defines the remote session collaborator the engine drives.
//
// A Session is bound to exactly one host and is exclusively owned by the code
// processing that host. The engine never shares a Session across hosts and
// always closes it when the host's run list finishes, successfully or not.
package session

import (
	"context"
	"os"
)

// Session performs commands and file operations on one remote host.
//
// Paths are absolute remote paths. File operations that need elevated
// privileges are expected to acquire them internally.
type Session interface {
	// Host returns the computer name the session is bound to.
	Host() string

	// User returns the remote account in use.
	User() string

	// Run executes cmd and returns its trimmed standard output.
	Run(ctx context.Context, cmd string) (string, error)

	// Sudo executes cmd with elevated privileges.
	Sudo(ctx context.Context, cmd string) (string, error)

	// MkdirAll creates path and any missing parents. Existing directories are left alone.
	MkdirAll(ctx context.Context, path string, mode os.FileMode) error

	// WriteFile places data at path with mode. It reports whether anything
	// changed: identical content and mode leave the file untouched.
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) (bool, error)

	// Remove deletes path. A missing path is not an error.
	Remove(ctx context.Context, path string) error

	// Chmod sets the permission bits of path.
	Chmod(ctx context.Context, path string, mode os.FileMode) error

	// Chown sets owner and group of path by name. An empty owner or group is left unchanged.
	Chown(ctx context.Context, path, owner, group string) error

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Close releases the session.
	Close() error
}

// Target identifies the host a session is opened against.
type Target struct {
	// Name is the computer name from the environment.
	Name string

	// Address is the network address; defaults to Name.
	Address string

	// User is the remote account.
	User string
}

// Dialer opens a Session for a target.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, target Target) (Session, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context, target Target) (Session, error) {
	return f(ctx, target)
}
