package ssh

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MkdirAll creates path and its parents on the remote host.
func (c *SSHClient) MkdirAll(ctx context.Context, p string, mode os.FileMode) error {
	if !c.config.IsRoot() {
		q := shellQuote(p)
		cmd := fmt.Sprintf("test -d %s || (mkdir -p %s && chmod %04o %s)", q, q, mode.Perm(), q)
		if _, err := c.Sudo(ctx, cmd); err != nil {
			return &TransportError{Op: "mkdir", Err: fmt.Errorf("%s: %w", p, err)}
		}
		return nil
	}

	client, err := c.getSFTP()
	if err != nil {
		return err
	}
	if info, err := client.Stat(p); err == nil && info.IsDir() {
		return nil
	}
	if err := client.MkdirAll(p); err != nil {
		return &TransportError{Op: "mkdir", Err: fmt.Errorf("%s: %w", p, err)}
	}
	if err := client.Chmod(p, mode.Perm()); err != nil {
		return &TransportError{Op: "mkdir", Err: fmt.Errorf("chmod %s: %w", p, err)}
	}
	return nil
}

// WriteFile places data at p with mode unless the remote file already has the
// same content and mode.
func (c *SSHClient) WriteFile(ctx context.Context, p string, data []byte, mode os.FileMode) (bool, error) {
	same, err := c.matches(ctx, p, data, mode)
	if err != nil {
		return false, err
	}
	if same {
		log.Debug().Str("host", c.config.Name).Str("path", p).Msg("remote file unchanged")
		return false, nil
	}

	if c.config.IsRoot() {
		if err := c.upload(ctx, p, data, mode); err != nil {
			return false, err
		}
	} else {
		// Stage in /tmp as the login user, then move into place with sudo.
		staged := path.Join("/tmp", ".frycook-"+uuid.NewString())
		if err := c.upload(ctx, staged, data, mode); err != nil {
			return false, err
		}
		cmd := fmt.Sprintf("install -m %04o %s %s && rm -f %s",
			mode.Perm(), shellQuote(staged), shellQuote(p), shellQuote(staged))
		if _, err := c.Sudo(ctx, cmd); err != nil {
			return false, &TransportError{Op: "write", Err: fmt.Errorf("%s: %w", p, err)}
		}
	}

	log.Info().Str("host", c.config.Name).Str("path", p).Int("bytes", len(data)).Msg("remote file written")
	return true, nil
}

// upload writes data to p over SFTP and sets mode.
func (c *SSHClient) upload(ctx context.Context, p string, data []byte, mode os.FileMode) error {
	client, err := c.getSFTP()
	if err != nil {
		return err
	}

	remoteFile, err := client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to create remote file %s: %w", p, err),
			IsTemporary: true,
		}
	}

	if _, err := copyWithContext(ctx, remoteFile, bytes.NewReader(data)); err != nil {
		remoteFile.Close()
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to copy %s: %w", p, err),
			IsTemporary: true,
		}
	}
	if err := remoteFile.Close(); err != nil {
		return &TransportError{Op: "write", Err: fmt.Errorf("close %s: %w", p, err)}
	}

	if err := client.Chmod(p, mode.Perm()); err != nil {
		return &TransportError{Op: "write", Err: fmt.Errorf("chmod %s: %w", p, err)}
	}
	return nil
}

// matches reports whether the remote file at p already holds data with mode.
func (c *SSHClient) matches(ctx context.Context, p string, data []byte, mode os.FileMode) (bool, error) {
	client, err := c.getSFTP()
	if err != nil {
		return false, err
	}

	info, err := client.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if !errors.Is(err, os.ErrPermission) {
			return false, &TransportError{Op: "stat", Err: fmt.Errorf("%s: %w", p, err)}
		}
		return c.matchesWithSudo(ctx, p, data, mode)
	}
	if info.IsDir() || info.Size() != int64(len(data)) || info.Mode().Perm() != mode.Perm() {
		return false, nil
	}

	f, err := client.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return c.matchesWithSudo(ctx, p, data, mode)
		}
		return false, &TransportError{Op: "read", Err: fmt.Errorf("%s: %w", p, err)}
	}
	defer f.Close()

	remoteSum, err := checksum(f)
	if err != nil {
		return false, &TransportError{Op: "read", Err: fmt.Errorf("%s: %w", p, err)}
	}
	return remoteSum == localChecksum(data), nil
}

// matchesWithSudo compares checksum and mode using remote commands, for files
// the login user cannot read.
func (c *SSHClient) matchesWithSudo(ctx context.Context, p string, data []byte, mode os.FileMode) (bool, error) {
	out, err := c.Sudo(ctx, fmt.Sprintf("stat -c %%a %s && sha256sum %s", shellQuote(p), shellQuote(p)))
	if err != nil {
		// Treat an unreadable remote as different; the write reports any real failure.
		return false, nil
	}

	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return false, nil
	}
	remoteMode, err := strconv.ParseUint(strings.TrimSpace(lines[0]), 8, 32)
	if err != nil || os.FileMode(remoteMode) != mode.Perm() {
		return false, nil
	}
	fields := strings.Fields(lines[1])
	return len(fields) > 0 && fields[0] == localChecksum(data), nil
}

// Remove deletes p. A missing file is not an error.
func (c *SSHClient) Remove(ctx context.Context, p string) error {
	if !c.config.IsRoot() {
		if _, err := c.Sudo(ctx, "rm -f "+shellQuote(p)); err != nil {
			return &TransportError{Op: "remove", Err: fmt.Errorf("%s: %w", p, err)}
		}
		return nil
	}

	client, err := c.getSFTP()
	if err != nil {
		return err
	}
	if err := client.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &TransportError{Op: "remove", Err: fmt.Errorf("%s: %w", p, err)}
	}
	log.Debug().Str("host", c.config.Name).Str("path", p).Msg("remote file removed")
	return nil
}

// Chmod sets file permissions on the remote host.
func (c *SSHClient) Chmod(ctx context.Context, p string, mode os.FileMode) error {
	log.Debug().Str("host", c.config.Name).Str("path", p).Str("mode", fmt.Sprintf("%04o", mode.Perm())).Msg("setting file permissions")

	if !c.config.IsRoot() {
		if _, err := c.Sudo(ctx, fmt.Sprintf("chmod %04o %s", mode.Perm(), shellQuote(p))); err != nil {
			return &TransportError{Op: "chmod", Err: fmt.Errorf("%s: %w", p, err)}
		}
		return nil
	}

	client, err := c.getSFTP()
	if err != nil {
		return err
	}
	if err := client.Chmod(p, mode.Perm()); err != nil {
		return &TransportError{Op: "chmod", Err: fmt.Errorf("failed to set permissions on %s: %w", p, err)}
	}
	return nil
}

// Chown sets file ownership by name on the remote host.
func (c *SSHClient) Chown(ctx context.Context, p, owner, group string) error {
	who := owner
	if group != "" {
		who += ":" + group
	}
	if who == "" {
		return nil
	}

	log.Debug().Str("host", c.config.Name).Str("path", p).Str("owner", who).Msg("setting file ownership")

	if _, err := c.Sudo(ctx, fmt.Sprintf("chown %s %s", shellQuote(who), shellQuote(p))); err != nil {
		return &TransportError{Op: "chown", Err: fmt.Errorf("failed to set ownership on %s: %w", p, err)}
	}
	return nil
}

// Exists reports whether p exists on the remote host.
func (c *SSHClient) Exists(ctx context.Context, p string) (bool, error) {
	client, err := c.getSFTP()
	if err != nil {
		return false, err
	}
	if _, err := client.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if errors.Is(err, os.ErrPermission) {
			_, err := c.Sudo(ctx, "test -e "+shellQuote(p))
			return err == nil, nil
		}
		return false, &TransportError{Op: "stat", Err: fmt.Errorf("%s: %w", p, err)}
	}
	return true, nil
}

func checksum(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

func localChecksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// copyWithContext copies data from src to dst while respecting context cancellation.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return written, err
		}
	}

	return written, nil
}
