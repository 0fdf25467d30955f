package commands

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/recipes"
	"github.com/jfarrimo/frycook/pkg/script"
)

// workspace is everything a command needs before it touches a host.
type workspace struct {
	settings *environment.Settings
	env      *environment.Environment
	registry *engine.Registry
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".frycook", name)
	}
	return filepath.Join(home, ".frycook", name)
}

// loadWorkspace loads and validates both documents and builds the recipe
// registry: built-in recipes first, then scripts from recipe_dir.
func loadWorkspace() (*workspace, error) {
	settings, err := environment.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	if remoteUser != "" {
		settings.RemoteUser = remoteUser
	}

	env, err := environment.LoadEnvironment(environmentPath)
	if err != nil {
		return nil, err
	}
	if err := environment.ValidateEnvironment(env); err != nil {
		return nil, err
	}

	registry := engine.NewRegistry()
	recipes.Register(registry)
	if err := script.Register(registry, settings.RecipeDir); err != nil {
		return nil, err
	}

	log.Debug().
		Str("settings", settingsPath).
		Str("environment", environmentPath).
		Int("computers", len(env.ComputerNames())).
		Int("recipes", len(registry.RecipeNames())).
		Int("cookbooks", len(registry.CookbookNames())).
		Msg("Workspace loaded")

	return &workspace{settings: settings, env: env, registry: registry}, nil
}

func (w *workspace) options(rude, noPrompt bool, params map[string]string) engine.Options {
	return engine.Options{
		Settings:   w.settings,
		Env:        w.env,
		OkToBeRude: rude,
		NoPrompt:   noPrompt,
		Params:     params,
	}
}

// hosts resolves target tokens, optionally dropping repeated hosts.
func (w *workspace) hosts(targets []string, dedupe bool) ([]string, error) {
	hosts, err := engine.ResolveTargets(w.env, targets)
	if err != nil {
		return nil, err
	}
	if dedupe {
		hosts = engine.DedupeHosts(hosts)
	}
	return hosts, nil
}
