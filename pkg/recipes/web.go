package recipes

import (
	"context"
	"fmt"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/ops"
)

// Nginx serves every site from /srv/www instead of the distribution default.
type Nginx struct{ engine.Base }

func (r *Nginx) PreApplyMessage(rc *engine.RunContext) string {
	return restartNotice(r.OkToBeRude, "nginx")
}

func (r *Nginx) Apply(ctx context.Context, rc *engine.RunContext) error {
	if _, err := ops.PackageEnsure(ctx, rc.Session, "nginx-extras"); err != nil {
		return err
	}
	if _, err := ops.DirEnsure(ctx, rc.Session, "/srv/www", ops.DirOptions{Mode: 0o755}); err != nil {
		return err
	}
	if err := rc.PushPackageFileSet(ctx, "nginx", map[string]interface{}{"name": rc.Computer}); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "nginx")
}

const exampleUser = "example_com"

// ExampleCom hosts the example.com site from its own account.
type ExampleCom struct{ engine.Base }

func (r *ExampleCom) PreApplyChecks(ctx context.Context, rc *engine.RunContext) error {
	if err := r.Base.PreApplyChecks(ctx, rc); err != nil {
		return err
	}
	return requireUser(rc, r.Name(), exampleUser)
}

func (r *ExampleCom) Apply(ctx context.Context, rc *engine.RunContext) error {
	res, err := ops.UserEnsure(ctx, rc.Session, exampleUser, ops.UserOptions{})
	if err != nil {
		return err
	}
	if res.Changed {
		// Password logins stay disabled; the account is reached by key only.
		if _, err := ops.Sudo(ctx, rc.Session, "usermod -p \"$(openssl rand -base64 32)\" "+ops.Quote(exampleUser)); err != nil {
			return err
		}
	}

	key, err := userKey(rc, exampleUser)
	if err != nil {
		return err
	}
	if _, err := ops.SSHAuthorize(ctx, rc.Session, exampleUser, key); err != nil {
		return err
	}

	www := fmt.Sprintf("/home/%s/www", exampleUser)
	if _, err := ops.DirEnsure(ctx, rc.Session, www, ops.DirOptions{Mode: 0o755, Owner: exampleUser, Group: exampleUser}); err != nil {
		return err
	}
	if _, err := ops.FileLink(ctx, rc.Session, www, "/srv/www/"+exampleUser); err != nil {
		return err
	}

	if err := rc.PushPackageFileSet(ctx, "example_com", nil); err != nil {
		return err
	}
	if _, err := ops.FileLink(ctx, rc.Session, "/etc/nginx/sites-available/"+exampleUser, "/etc/nginx/sites-enabled/"+exampleUser); err != nil {
		return err
	}
	return restart(ctx, rc, r.OkToBeRude, "nginx")
}

func (r *ExampleCom) PostApplyMessage(rc *engine.RunContext) string {
	domain, _ := rc.ComputerConfig()["domain"].(string)
	if domain == "" {
		return ""
	}
	return fmt.Sprintf("example.com is served from %s.%s:/srv/www/%s", rc.Computer, domain, exampleUser)
}
