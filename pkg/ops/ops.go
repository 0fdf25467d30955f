// Package ops provides idempotent remote helpers recipes compose: each checks
// live remote state first and acts only when the state differs.
package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

// Result describes what an operation did.
type Result struct {
	// Changed is true when remote state was modified.
	Changed bool

	// Action names what happened, e.g. "installed", "already_present", "skipped".
	Action string
}

func unchanged(action string) Result { return Result{Action: action} }

func changed(action string) Result { return Result{Changed: true, Action: action} }

// Run executes cmd as the session user, wrapping failures as remote action errors.
func Run(ctx context.Context, s session.Session, cmd string) (string, error) {
	out, err := s.Run(ctx, cmd)
	if err != nil {
		return out, errdefs.NewRemoteActionError(cmd, err)
	}
	return out, nil
}

// Sudo executes cmd with elevated privileges, wrapping failures as remote action errors.
func Sudo(ctx context.Context, s session.Session, cmd string) (string, error) {
	out, err := s.Sudo(ctx, cmd)
	if err != nil {
		return out, errdefs.NewRemoteActionError(cmd, err)
	}
	return out, nil
}

// test runs a shell predicate and reports whether it succeeded. The command
// itself never fails, so transport errors stay distinguishable from a false
// predicate.
func test(ctx context.Context, s session.Session, predicate string, sudo bool) (bool, error) {
	cmd := fmt.Sprintf("if %s; then echo yes; else echo no; fi", predicate)
	var (
		out string
		err error
	)
	if sudo {
		out, err = Sudo(ctx, s, cmd)
	} else {
		out, err = Run(ctx, s, cmd)
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "yes", nil
}

// Quote quotes a value for a POSIX shell.
func Quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func logResult(s session.Session, op, subject string, r Result) {
	log.Debug().
		Str("host", s.Host()).
		Str("op", op).
		Str("subject", subject).
		Bool("changed", r.Changed).
		Str("action", r.Action).
		Msg("operation completed")
}
