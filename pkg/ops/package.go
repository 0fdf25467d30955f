package ops

import (
	"context"
	"strings"

	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

const aptEnv = "DEBIAN_FRONTEND=noninteractive"

// PackageIndexUpdate refreshes the package index.
func PackageIndexUpdate(ctx context.Context, s session.Session) error {
	log.Info().Str("host", s.Host()).Msg("updating package index")
	_, err := Sudo(ctx, s, aptEnv+" apt-get update -q")
	return err
}

// PackageInstalled reports whether name is installed.
func PackageInstalled(ctx context.Context, s session.Session, name string) (bool, error) {
	out, err := Run(ctx, s, "dpkg-query -W -f='${Status}' "+Quote(name)+" 2>/dev/null || true")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "install ok installed"), nil
}

// PackageEnsure installs every named package that is not already installed,
// with a single install command.
func PackageEnsure(ctx context.Context, s session.Session, names ...string) (Result, error) {
	var missing []string
	for _, name := range names {
		installed, err := PackageInstalled(ctx, s, name)
		if err != nil {
			return Result{}, err
		}
		if !installed {
			missing = append(missing, name)
		}
	}

	subject := strings.Join(names, " ")
	if len(missing) == 0 {
		r := unchanged("already_present")
		logResult(s, "package_ensure", subject, r)
		return r, nil
	}

	quoted := make([]string, len(missing))
	for i, name := range missing {
		quoted[i] = Quote(name)
	}
	if _, err := Sudo(ctx, s, aptEnv+" apt-get install -y -q "+strings.Join(quoted, " ")); err != nil {
		return Result{}, err
	}

	r := changed("installed")
	log.Info().Str("host", s.Host()).Strs("packages", missing).Msg("packages installed")
	return r, nil
}

// PackageRemove removes name when it is installed.
func PackageRemove(ctx context.Context, s session.Session, name string) (Result, error) {
	installed, err := PackageInstalled(ctx, s, name)
	if err != nil {
		return Result{}, err
	}
	if !installed {
		return unchanged("already_absent"), nil
	}
	if _, err := Sudo(ctx, s, aptEnv+" apt-get remove -y -q "+Quote(name)); err != nil {
		return Result{}, err
	}
	return changed("removed"), nil
}
