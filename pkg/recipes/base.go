package recipes

import (
	"context"
	"fmt"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/ops"
)

// RootUser makes sure root exists and accepts the environment's key.
type RootUser struct{ engine.Base }

func (r *RootUser) PreApplyChecks(ctx context.Context, rc *engine.RunContext) error {
	if err := r.Base.PreApplyChecks(ctx, rc); err != nil {
		return err
	}
	return requireUser(rc, r.Name(), "root")
}

func (r *RootUser) Apply(ctx context.Context, rc *engine.RunContext) error {
	if _, err := ops.UserEnsure(ctx, rc.Session, "root", ops.UserOptions{}); err != nil {
		return err
	}
	key, err := userKey(rc, "root")
	if err != nil {
		return err
	}
	_, err = ops.SSHAuthorize(ctx, rc.Session, "root", key)
	return err
}

// Hosts writes /etc/hostname and /etc/hosts. The hosts file lists the other
// members of the computer's host_group.
type Hosts struct{ engine.Base }

func (r *Hosts) PreApplyMessage(rc *engine.RunContext) string {
	return restartNotice(r.OkToBeRude, "hostname")
}

func (r *Hosts) PreApplyChecks(ctx context.Context, rc *engine.RunContext) error {
	if err := r.Base.PreApplyChecks(ctx, rc); err != nil {
		return err
	}
	group, _ := rc.ComputerConfig()["host_group"].(string)
	if group == "" {
		return errdefs.NewRecipeError("computer %s has no host_group", rc.Computer).WithSubject(r.Name())
	}
	if !rc.Env.HasGroup(group) {
		return errdefs.NewRecipeError("host_group %s of computer %s is not defined", group, rc.Computer).WithSubject(r.Name())
	}
	return nil
}

func (r *Hosts) Apply(ctx context.Context, rc *engine.RunContext) error {
	group, _ := rc.ComputerConfig()["host_group"].(string)
	members, err := rc.Env.GroupComputers(group)
	if err != nil {
		return fmt.Errorf("group %s: %w", group, err)
	}

	sibs := make([]string, 0, len(members))
	for _, m := range members {
		if m != rc.Computer {
			sibs = append(sibs, m)
		}
	}

	err = rc.PushPackageFileSet(ctx, "hosts", map[string]interface{}{
		"host":      rc.Computer,
		"sibs":      sibs,
		"computers": rc.Env.Computers(),
	})
	if err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "hostname")
}

// Shorewall installs the shorewall firewall with the packaged rules.
type Shorewall struct{ engine.Base }

func (r *Shorewall) PreApplyMessage(rc *engine.RunContext) string {
	return restartNotice(r.OkToBeRude, "shorewall")
}

func (r *Shorewall) Apply(ctx context.Context, rc *engine.RunContext) error {
	if _, err := ops.PackageEnsure(ctx, rc.Session, "shorewall", "shorewall-doc"); err != nil {
		return err
	}
	if err := rc.PushPackageFileSet(ctx, "shorewall", nil); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "shorewall")
}

// SSH pushes the sshd configuration. The ssh package is always present on
// a host we can reach.
type SSH struct{ engine.Base }

func (r *SSH) PreApplyMessage(rc *engine.RunContext) string {
	return restartNotice(r.OkToBeRude, "ssh")
}

func (r *SSH) Apply(ctx context.Context, rc *engine.RunContext) error {
	if err := rc.PushPackageFileSet(ctx, "ssh", nil); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "ssh")
}

// Fail2ban bans hosts that repeatedly fail ssh authentication.
type Fail2ban struct{ engine.Base }

func (r *Fail2ban) Apply(ctx context.Context, rc *engine.RunContext) error {
	if _, err := ops.PackageEnsure(ctx, rc.Session, "fail2ban"); err != nil {
		return err
	}
	if err := rc.PushPackageFileSet(ctx, "fail2ban", nil); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "fail2ban")
}

// Postfix configures a send-only mail relay.
type Postfix struct{ engine.Base }

func (r *Postfix) Apply(ctx context.Context, rc *engine.RunContext) error {
	if _, err := ops.PackageEnsure(ctx, rc.Session, "postfix", "mailutils"); err != nil {
		return err
	}
	if err := rc.PushPackageFileSet(ctx, "postfix", map[string]interface{}{"name": rc.Computer}); err != nil {
		return err
	}
	if _, err := ops.Sudo(ctx, rc.Session, "/usr/bin/newaliases"); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "postfix")
}
