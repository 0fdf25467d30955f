package ops

import (
	"context"

	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

// ServiceRestart restarts a service. Restarting interrupts live traffic, so
// it is skipped unless rude is true.
func ServiceRestart(ctx context.Context, s session.Session, name string, rude bool) (Result, error) {
	return serviceAction(ctx, s, name, "restart", rude)
}

// ServiceReload reloads a service's configuration. Skipped unless rude is true.
func ServiceReload(ctx context.Context, s session.Session, name string, rude bool) (Result, error) {
	return serviceAction(ctx, s, name, "reload", rude)
}

// ServiceStart starts a service that is not running. Starting a stopped
// service disrupts nothing, so it is not gated.
func ServiceStart(ctx context.Context, s session.Session, name string) (Result, error) {
	running, err := ServiceRunning(ctx, s, name)
	if err != nil {
		return Result{}, err
	}
	if running {
		return unchanged("already_started"), nil
	}
	if _, err := Sudo(ctx, s, "service "+Quote(name)+" start"); err != nil {
		return Result{}, err
	}
	return changed("started"), nil
}

// ServiceRunning reports whether the service's status command succeeds.
func ServiceRunning(ctx context.Context, s session.Session, name string) (bool, error) {
	return test(ctx, s, "service "+Quote(name)+" status >/dev/null 2>&1", true)
}

func serviceAction(ctx context.Context, s session.Session, name, action string, rude bool) (Result, error) {
	if !rude {
		log.Warn().
			Str("host", s.Host()).
			Str("service", name).
			Str("action", action).
			Msg("skipping disruptive service action; rerun with --rude to apply")
		return unchanged("skipped"), nil
	}

	if _, err := Sudo(ctx, s, "service "+Quote(name)+" "+action); err != nil {
		return Result{}, err
	}
	r := changed(action + "ed")
	logResult(s, "service_"+action, name, r)
	return r, nil
}
