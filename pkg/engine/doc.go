// Package engine applies recipes and cookbooks to the hosts of an environment.
//
// # Overview
//
// A run goes through four steps, each usable on its own:
//
//  1. Targets - ResolveTargets expands computer and group names into hosts
//  2. Run list - BuildRunList assigns ordered work items to every host
//  3. Validation - Registry.Validate rejects unknown recipes and cookbooks
//  4. Apply - Runner.Run opens one session per host and drives each work
//     item through the Lifecycle
//
// Configuration, target and registry errors stop the run before any host is
// contacted. Errors while applying stop only the failing host; the runner
// moves on to the next host unless RunOptions.AbortOnError is set.
//
// # Recipes
//
// A Recipe configures one subsystem. Concrete recipes embed Base and override
// the phases they need:
//
//	type Hosts struct{ engine.Base }
//
//	func (h *Hosts) Apply(ctx context.Context, rc *engine.RunContext) error {
//	    return rc.PushPackageFileSet(ctx, "hosts", nil)
//	}
//
// The lifecycle runs pre_message, pre_apply_checks, apply and post_message
// strictly in that order. Messages are queued and printed once the run ends.
// Cleanup is a separate action and is never chained to apply.
//
// # Cookbooks
//
// A Cookbook is an ordered list of recipe names. Applying it applies each
// member in order with the same Options. Its messages are its own text
// followed by the members' text.
//
// # Rudeness
//
// Options.OkToBeRude is threaded into every recipe. Recipes that would
// interrupt live traffic check it and skip the disruptive step when it is
// false; the engine does not enforce it.
//
// # Sessions
//
// Each host gets its own session.Session, exclusively owned by the code
// processing that host and closed when its run list ends.
package engine
