package ops

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/jfarrimo/frycook/pkg/session"
)

// UserOptions controls account creation.
type UserOptions struct {
	Home   string
	Shell  string
	Groups []string
	System bool
}

// UserCheck reports whether the account exists.
func UserCheck(ctx context.Context, s session.Session, name string) (bool, error) {
	return test(ctx, s, "id -u "+Quote(name)+" >/dev/null 2>&1", false)
}

// UserEnsure creates the account if it does not exist.
func UserEnsure(ctx context.Context, s session.Session, name string, opts UserOptions) (Result, error) {
	exists, err := UserCheck(ctx, s, name)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return unchanged("already_present"), nil
	}

	args := []string{"useradd", "-m"}
	if opts.System {
		args = append(args, "-r")
	}
	if opts.Home != "" {
		args = append(args, "-d", Quote(opts.Home))
	}
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	args = append(args, "-s", Quote(shell))
	if len(opts.Groups) > 0 {
		args = append(args, "-G", Quote(strings.Join(opts.Groups, ",")))
	}
	args = append(args, Quote(name))

	if _, err := Sudo(ctx, s, strings.Join(args, " ")); err != nil {
		return Result{}, err
	}
	r := changed("created")
	logResult(s, "user_ensure", name, r)
	return r, nil
}

// UserHome returns the account's home directory.
func UserHome(ctx context.Context, s session.Session, name string) (string, error) {
	out, err := Run(ctx, s, "getent passwd "+Quote(name)+" | cut -d: -f6")
	if err != nil {
		return "", err
	}
	home := strings.TrimSpace(out)
	if home == "" {
		return "", fmt.Errorf("user %s has no home directory", name)
	}
	return home, nil
}

// SSHAuthorize appends key to the user's authorized_keys unless it is already
// present, creating ~/.ssh as needed.
func SSHAuthorize(ctx context.Context, s session.Session, user, key string) (Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, fmt.Errorf("empty ssh key for user %s", user)
	}

	home, err := UserHome(ctx, s, user)
	if err != nil {
		return Result{}, err
	}
	sshDir := path.Join(home, ".ssh")
	keyFile := path.Join(sshDir, "authorized_keys")

	if _, err := DirEnsure(ctx, s, sshDir, DirOptions{Mode: 0o700, Owner: user, Group: user}); err != nil {
		return Result{}, err
	}

	present, err := test(ctx, s, fmt.Sprintf("grep -qxF %s %s 2>/dev/null", Quote(key), Quote(keyFile)), true)
	if err != nil {
		return Result{}, err
	}
	if present {
		return unchanged("already_authorized"), nil
	}

	cmd := fmt.Sprintf("printf '%%s\\n' %s >> %s && chmod 600 %s && chown %s %s",
		Quote(key), Quote(keyFile), Quote(keyFile), Quote(user+":"+user), Quote(keyFile))
	if _, err := Sudo(ctx, s, cmd); err != nil {
		return Result{}, err
	}
	r := changed("authorized")
	logResult(s, "ssh_authorize", user, r)
	return r, nil
}
