package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Lifecycle drives recipes and cookbooks through their phases for one host
// at a time.
type Lifecycle struct {
	Registry *Registry
	Options  Options
	Messages *MessageQueue
}

// NewLifecycle creates a lifecycle that constructs recipes with opts.
func NewLifecycle(registry *Registry, opts Options, messages *MessageQueue) *Lifecycle {
	if messages == nil {
		messages = NewMessageQueue()
	}
	return &Lifecycle{
		Registry: registry,
		Options:  opts,
		Messages: messages,
	}
}

// Apply runs the full lifecycle of item on rc's host.
func (l *Lifecycle) Apply(ctx context.Context, rc *RunContext, item WorkItem) error {
	switch item.Kind {
	case KindRecipe:
		recipe, err := l.Registry.NewRecipe(item.Name, l.Options)
		if err != nil {
			return err
		}
		return l.ApplyRecipe(ctx, rc, recipe)
	case KindCookbook:
		return l.ApplyCookbook(ctx, rc, item.Name)
	default:
		return fmt.Errorf("invalid work item kind %q", item.Kind)
	}
}

// ApplyRecipe runs pre_message, pre_apply_checks, apply and post_message in
// order. The first failing phase ends the lifecycle.
func (l *Lifecycle) ApplyRecipe(ctx context.Context, rc *RunContext, recipe Recipe) error {
	name := recipe.Name()
	source := RecipeItem(name).String()

	l.Messages.Add(PhasePreMessage, rc.Computer, source, recipe.PreApplyMessage(rc))
	if err := l.checkAndApply(ctx, rc, recipe); err != nil {
		return err
	}
	l.Messages.Add(PhasePostMessage, rc.Computer, source, recipe.PostApplyMessage(rc))
	return nil
}

// ApplyCookbook applies each member recipe in declared order. The cookbook's
// messages are its own text followed by its members' text and are queued as
// one message per phase.
func (l *Lifecycle) ApplyCookbook(ctx context.Context, rc *RunContext, name string) error {
	cb, members, err := l.cookbook(name)
	if err != nil {
		return err
	}
	source := CookbookItem(name).String()

	pre := []string{cb.PreMessage}
	for _, r := range members {
		pre = append(pre, r.PreApplyMessage(rc))
	}
	l.Messages.Add(PhasePreMessage, rc.Computer, source, joinMessages(pre...))

	post := []string{cb.PostMessage}
	for _, r := range members {
		log.Debug().Str("host", rc.Computer).Str("cookbook", name).Str("recipe", r.Name()).Msg("Applying cookbook member")
		if err := l.checkAndApply(ctx, rc, r); err != nil {
			return fmt.Errorf("cookbook %s: %w", name, err)
		}
		post = append(post, r.PostApplyMessage(rc))
	}
	l.Messages.Add(PhasePostMessage, rc.Computer, source, joinMessages(post...))
	return nil
}

// QueueMessages queues item's messages without checking or applying anything.
func (l *Lifecycle) QueueMessages(rc *RunContext, item WorkItem) error {
	source := item.String()
	switch item.Kind {
	case KindRecipe:
		r, err := l.Registry.NewRecipe(item.Name, l.Options)
		if err != nil {
			return err
		}
		l.Messages.Add(PhasePreMessage, rc.Computer, source, r.PreApplyMessage(rc))
		l.Messages.Add(PhasePostMessage, rc.Computer, source, r.PostApplyMessage(rc))
	case KindCookbook:
		cb, members, err := l.cookbook(item.Name)
		if err != nil {
			return err
		}
		pre := []string{cb.PreMessage}
		post := []string{cb.PostMessage}
		for _, r := range members {
			pre = append(pre, r.PreApplyMessage(rc))
			post = append(post, r.PostApplyMessage(rc))
		}
		l.Messages.Add(PhasePreMessage, rc.Computer, source, joinMessages(pre...))
		l.Messages.Add(PhasePostMessage, rc.Computer, source, joinMessages(post...))
	default:
		return fmt.Errorf("invalid work item kind %q", item.Kind)
	}
	return nil
}

// Cleanup runs the named recipe's cleanup action on its own.
func (l *Lifecycle) Cleanup(ctx context.Context, rc *RunContext, name string) error {
	recipe, err := l.Registry.NewRecipe(name, l.Options)
	if err != nil {
		return err
	}

	log.Info().Str("host", rc.Computer).Str("recipe", name).Str("phase", string(PhaseCleanup)).Msg("Running cleanup")
	if err := recipe.Cleanup(ctx, rc); err != nil {
		return fmt.Errorf("recipe %s %s: %w", name, PhaseCleanup, err)
	}
	return nil
}

func (l *Lifecycle) checkAndApply(ctx context.Context, rc *RunContext, recipe Recipe) error {
	name := recipe.Name()
	logger := log.With().Str("host", rc.Computer).Str("recipe", name).Logger()

	logger.Debug().Str("phase", string(PhasePreChecks)).Msg("Running pre-apply checks")
	if err := recipe.PreApplyChecks(ctx, rc); err != nil {
		return fmt.Errorf("recipe %s %s: %w", name, PhasePreChecks, err)
	}

	logger.Info().Str("phase", string(PhaseApply)).Msg("Applying recipe")
	if err := recipe.Apply(ctx, rc); err != nil {
		return fmt.Errorf("recipe %s %s: %w", name, PhaseApply, err)
	}
	return nil
}

// cookbook looks up a cookbook and constructs all its members before any is
// applied, so an unknown member fails the cookbook up front.
func (l *Lifecycle) cookbook(name string) (Cookbook, []Recipe, error) {
	cb, err := l.Registry.Cookbook(name)
	if err != nil {
		return Cookbook{}, nil, err
	}
	members := make([]Recipe, 0, len(cb.Recipes))
	for _, member := range cb.Recipes {
		r, err := l.Registry.NewRecipe(member, l.Options)
		if err != nil {
			return Cookbook{}, nil, err
		}
		members = append(members, r)
	}
	return cb, members, nil
}
