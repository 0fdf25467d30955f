package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrCommandsUnsupported is returned by sessions that cannot execute commands.
var ErrCommandsUnsupported = errors.New("session does not support command execution")

// Local is a Session that places files under a local directory instead of a
// remote root. It is used to render packages for inspection. Ownership changes
// are recorded in the log only and commands are rejected.
type Local struct {
	root string
	host string
}

// NewLocal returns a Local session writing beneath root on behalf of host.
func NewLocal(root, host string) *Local {
	return &Local{root: root, host: host}
}

func (l *Local) path(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *Local) Host() string { return l.host }

func (l *Local) User() string { return "" }

func (l *Local) Run(ctx context.Context, cmd string) (string, error) {
	return "", fmt.Errorf("%s: %w", cmd, ErrCommandsUnsupported)
}

func (l *Local) Sudo(ctx context.Context, cmd string) (string, error) {
	return l.Run(ctx, cmd)
}

func (l *Local) MkdirAll(ctx context.Context, path string, mode os.FileMode) error {
	return os.MkdirAll(l.path(path), mode)
}

func (l *Local) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) (bool, error) {
	full := l.path(path)
	if info, err := os.Stat(full); err == nil && info.Mode().Perm() == mode.Perm() {
		if existing, err := os.ReadFile(full); err == nil && bytes.Equal(existing, data) {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(full, data, mode.Perm()); err != nil {
		return false, err
	}
	return true, os.Chmod(full, mode.Perm())
}

func (l *Local) Remove(ctx context.Context, path string) error {
	err := os.Remove(l.path(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Local) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	return os.Chmod(l.path(path), mode.Perm())
}

func (l *Local) Chown(ctx context.Context, path, owner, group string) error {
	log.Debug().Str("path", path).Str("owner", owner).Str("group", group).Msg("ownership not applied to local render")
	return nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.path(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Close() error { return nil }
