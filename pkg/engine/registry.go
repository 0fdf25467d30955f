package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/rs/zerolog/log"
)

// Registry maps recipe and cookbook names to their definitions.
type Registry struct {
	mu        sync.RWMutex
	recipes   map[string]RecipeFactory
	cookbooks map[string]Cookbook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		recipes:   make(map[string]RecipeFactory),
		cookbooks: make(map[string]Cookbook),
	}
}

// RegisterRecipe adds a recipe factory. A later registration under the same
// name replaces the earlier one.
func (r *Registry) RegisterRecipe(name string, factory RecipeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[name]; ok {
		log.Info().Str("recipe", name).Msg("Recipe definition overridden")
	}
	r.recipes[name] = factory
}

// RegisterCookbook adds a cookbook. A later registration under the same name
// replaces the earlier one.
func (r *Registry) RegisterCookbook(cb Cookbook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cookbooks[cb.Name]; ok {
		log.Info().Str("cookbook", cb.Name).Msg("Cookbook definition overridden")
	}
	cb.Recipes = append([]string(nil), cb.Recipes...)
	r.cookbooks[cb.Name] = cb
}

// NewRecipe constructs the named recipe.
func (r *Registry) NewRecipe(name string, opts Options) (Recipe, error) {
	r.mu.RLock()
	factory, ok := r.recipes[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errdefs.NewUnknownComponentError(string(KindRecipe), name)
	}
	return factory(opts), nil
}

// Cookbook returns the named cookbook.
func (r *Registry) Cookbook(name string) (Cookbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.cookbooks[name]
	if !ok {
		return Cookbook{}, errdefs.NewUnknownComponentError(string(KindCookbook), name)
	}
	cb.Recipes = append([]string(nil), cb.Recipes...)
	return cb, nil
}

// HasRecipe reports whether name is a registered recipe.
func (r *Registry) HasRecipe(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.recipes[name]
	return ok
}

// RecipeNames returns every registered recipe name, sorted.
func (r *Registry) RecipeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.recipes))
	for n := range r.recipes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CookbookNames returns every registered cookbook name, sorted.
func (r *Registry) CookbookNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cookbooks))
	for n := range r.cookbooks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every work item in the run list, and every member of
// every referenced cookbook, is registered.
func (r *Registry) Validate(rl *RunList) error {
	for _, name := range rl.Cookbooks {
		if err := r.validateCookbook(name); err != nil {
			return err
		}
	}
	for _, name := range rl.Recipes {
		if !r.HasRecipe(name) {
			return errdefs.NewUnknownComponentError(string(KindRecipe), name)
		}
	}
	return nil
}

// ValidateItem checks a single work item.
func (r *Registry) ValidateItem(item WorkItem) error {
	switch item.Kind {
	case KindCookbook:
		return r.validateCookbook(item.Name)
	case KindRecipe:
		if !r.HasRecipe(item.Name) {
			return errdefs.NewUnknownComponentError(string(KindRecipe), item.Name)
		}
		return nil
	default:
		return fmt.Errorf("invalid work item kind %q", item.Kind)
	}
}

func (r *Registry) validateCookbook(name string) error {
	cb, err := r.Cookbook(name)
	if err != nil {
		return err
	}
	for _, member := range cb.Recipes {
		if !r.HasRecipe(member) {
			return errdefs.NewUnknownComponentError(string(KindRecipe), member).
				WithStage("cookbook " + name)
		}
	}
	return nil
}
