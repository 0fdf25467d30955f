package ops

import (
	"context"
	"os"
	"strings"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session"
)

// DirOptions controls DirEnsure. Zero values leave the attribute alone.
type DirOptions struct {
	Mode  os.FileMode
	Owner string
	Group string
}

// DirEnsure creates path if missing and applies the requested mode and ownership.
func DirEnsure(ctx context.Context, s session.Session, path string, opts DirOptions) (Result, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return Result{}, errdefs.NewRemoteActionError("stat "+path, err)
	}

	r := unchanged("already_present")
	if !exists {
		mode := opts.Mode
		if mode == 0 {
			mode = 0o755
		}
		if err := s.MkdirAll(ctx, path, mode); err != nil {
			return Result{}, errdefs.NewRemoteActionError("mkdir "+path, err)
		}
		r = changed("created")
	}

	if opts.Mode != 0 {
		if err := s.Chmod(ctx, path, opts.Mode); err != nil {
			return Result{}, errdefs.NewRemoteActionError("chmod "+path, err)
		}
	}
	if opts.Owner != "" || opts.Group != "" {
		if err := s.Chown(ctx, path, opts.Owner, opts.Group); err != nil {
			return Result{}, errdefs.NewRemoteActionError("chown "+path, err)
		}
	}

	logResult(s, "dir_ensure", path, r)
	return r, nil
}

// FileLink points link at target with a symbolic link, replacing whatever
// link was there before.
func FileLink(ctx context.Context, s session.Session, target, link string) (Result, error) {
	current, err := Sudo(ctx, s, "readlink "+Quote(link)+" || true")
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(current) == target {
		return unchanged("already_linked"), nil
	}

	if _, err := Sudo(ctx, s, "ln -sfn "+Quote(target)+" "+Quote(link)); err != nil {
		return Result{}, err
	}
	r := changed("linked")
	logResult(s, "file_link", link, r)
	return r, nil
}
