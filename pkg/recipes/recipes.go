// Package recipes holds the built-in sample recipes and cookbooks for a
// small Debian web fleet: a hardened base layer and an nginx web tier.
package recipes

import (
	"context"
	"fmt"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/ops"
)

// Built-in cookbooks.
var (
	// Base hardens and identifies a fresh host.
	Base = engine.Cookbook{
		Name:    "base",
		Recipes: []string{"root_user", "hosts", "shorewall", "ssh", "fail2ban", "postfix"},
	}

	// Web serves sites with nginx.
	Web = engine.Cookbook{
		Name:    "web",
		Recipes: []string{"nginx", "example_com"},
	}
)

// Factories maps every built-in recipe name to its factory.
var Factories = map[string]engine.RecipeFactory{
	"root_user": func(opts engine.Options) engine.Recipe {
		return &RootUser{Base: engine.NewBase("root_user", opts)}
	},
	"hosts": func(opts engine.Options) engine.Recipe {
		return &Hosts{Base: engine.NewBase("hosts", opts)}
	},
	"shorewall": func(opts engine.Options) engine.Recipe {
		return &Shorewall{Base: engine.NewBase("shorewall", opts)}
	},
	"ssh": func(opts engine.Options) engine.Recipe {
		return &SSH{Base: engine.NewBase("ssh", opts)}
	},
	"fail2ban": func(opts engine.Options) engine.Recipe {
		return &Fail2ban{Base: engine.NewBase("fail2ban", opts)}
	},
	"postfix": func(opts engine.Options) engine.Recipe {
		return &Postfix{Base: engine.NewBase("postfix", opts)}
	},
	"nginx": func(opts engine.Options) engine.Recipe {
		return &Nginx{Base: engine.NewBase("nginx", opts)}
	},
	"example_com": func(opts engine.Options) engine.Recipe {
		return &ExampleCom{Base: engine.NewBase("example_com", opts)}
	},
}

// Register adds every built-in recipe and cookbook to reg.
func Register(reg *engine.Registry) {
	for name, factory := range Factories {
		reg.RegisterRecipe(name, factory)
	}
	reg.RegisterCookbook(Base)
	reg.RegisterCookbook(Web)
}

// restart restarts service when the run allows rudeness.
func restart(ctx context.Context, rc *engine.RunContext, rude bool, service string) error {
	_, err := ops.ServiceRestart(ctx, rc.Session, service, rude)
	return err
}

// restartNotice is the pre-apply message of recipes that restart a service.
func restartNotice(rude bool, service string) string {
	if rude {
		return fmt.Sprintf("%s will be restarted", service)
	}
	return fmt.Sprintf("%s will not be restarted; rerun with --rude to pick up new configuration", service)
}

// requireUser checks that name is defined under users with an ssh_public_key.
func requireUser(rc *engine.RunContext, recipe, name string) error {
	if _, err := userKey(rc, name); err != nil {
		return errdefs.NewRecipeError("%s", err).WithSubject(recipe).WithStage("pre_apply_checks")
	}
	return nil
}

func userKey(rc *engine.RunContext, name string) (string, error) {
	user, ok := rc.Env.User(name)
	if !ok {
		return "", fmt.Errorf("%s user not defined in environment", name)
	}
	key, _ := user["ssh_public_key"].(string)
	if key == "" {
		return "", fmt.Errorf("%s user has no ssh_public_key", name)
	}
	return key, nil
}
