package engine

import (
	"context"
	"strings"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/errdefs"
)

// Options is the run-wide context every recipe is constructed with.
// Settings and Env are shared read-only by every instance in a run.
type Options struct {
	Settings *environment.Settings
	Env      *environment.Environment

	// OkToBeRude allows disruptive actions such as service restarts.
	// Recipes check it before disrupting anything.
	OkToBeRude bool

	// NoPrompt forbids interactive prompts.
	NoPrompt bool

	// Params are the named parameters given on the command line.
	Params map[string]string
}

// Recipe configures one subsystem of a host.
//
// The lifecycle invokes PreApplyMessage, PreApplyChecks, Apply and
// PostApplyMessage in that order. Cleanup is never chained to Apply; it is
// run on its own for one-time migration work.
type Recipe interface {
	// Name returns the registry name of the recipe.
	Name() string

	// PreApplyMessage returns text queued for display before applying.
	PreApplyMessage(rc *RunContext) string

	// PreApplyChecks verifies the host can take the recipe. Overrides must
	// call the embedded Base check first.
	PreApplyChecks(ctx context.Context, rc *RunContext) error

	// Apply performs the changes. It must converge: a second run against an
	// unchanged host changes nothing.
	Apply(ctx context.Context, rc *RunContext) error

	// PostApplyMessage returns text queued for display after applying.
	PostApplyMessage(rc *RunContext) string

	// Cleanup performs one-time migration actions.
	Cleanup(ctx context.Context, rc *RunContext) error
}

// Base provides the default implementation of every Recipe method except
// Apply's actual work. Concrete recipes embed it and override what they need.
type Base struct {
	Options
	name string
}

// NewBase returns a Base named name.
func NewBase(name string, opts Options) Base {
	return Base{Options: opts, name: name}
}

// Name returns the recipe name.
func (b *Base) Name() string { return b.name }

// PreApplyMessage returns no text.
func (b *Base) PreApplyMessage(rc *RunContext) string { return "" }

// PreApplyChecks fails when the host is not defined in the environment.
func (b *Base) PreApplyChecks(ctx context.Context, rc *RunContext) error {
	if rc == nil || !rc.Env.HasComputer(rc.Computer) {
		computer := ""
		if rc != nil {
			computer = rc.Computer
		}
		return errdefs.NewRecipeError("computer %q is not defined in the environment", computer).
			WithSubject(b.name).
			WithStage(string(PhasePreChecks))
	}
	return nil
}

// Apply does nothing.
func (b *Base) Apply(ctx context.Context, rc *RunContext) error { return nil }

// PostApplyMessage returns no text.
func (b *Base) PostApplyMessage(rc *RunContext) string { return "" }

// Cleanup does nothing.
func (b *Base) Cleanup(ctx context.Context, rc *RunContext) error { return nil }

// RequireRudeness fails unless the run allows disruptive actions. Recipes
// whose every run disrupts service call it from PreApplyChecks.
func (b *Base) RequireRudeness(action string) error {
	if b.OkToBeRude {
		return nil
	}
	return errdefs.NewRecipeError("%s needs --rude: %s", b.name, action).
		WithSubject(b.name).
		WithStage(string(PhasePreChecks))
}

// RecipeFactory builds a fresh Recipe for one work item on one host.
type RecipeFactory func(opts Options) Recipe

// Cookbook is an ordered list of recipes applied as a unit.
type Cookbook struct {
	// Name is the registry name of the cookbook.
	Name string

	// Recipes are the member recipe names, in application order.
	Recipes []string

	// PreMessage and PostMessage are the cookbook's own messages. They are
	// shown ahead of the member recipes' messages.
	PreMessage  string
	PostMessage string
}

// joinMessages concatenates non-empty message parts.
func joinMessages(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
