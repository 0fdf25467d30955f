package engine

import (
	"sort"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/errdefs"
)

// BuildRunList assigns work items to each host.
//
// With sel.All every host receives its declared components verbatim, in
// declared order, and the name sets collect every name referenced across
// hosts. Otherwise every host receives the same list: the requested
// cookbooks followed by the requested recipes. Work items are never
// deduplicated within a host.
func BuildRunList(env *environment.Environment, hosts []string, sel Selection) (*RunList, error) {
	rl := &RunList{
		Hosts: append([]string(nil), hosts...),
		Items: make(map[string][]WorkItem, len(hosts)),
	}

	if sel.All {
		recipes := map[string]bool{}
		cookbooks := map[string]bool{}

		for _, host := range hosts {
			components, err := env.Components(host)
			if err != nil {
				return nil, errdefs.NewConfigLoadError("environment", err).WithSubject("computers." + host)
			}
			items := make([]WorkItem, 0, len(components))
			for _, c := range components {
				items = append(items, c)
				if c.Kind == KindCookbook {
					cookbooks[c.Name] = true
				} else {
					recipes[c.Name] = true
				}
			}
			rl.Items[host] = items
		}

		rl.Recipes = setNames(recipes)
		rl.Cookbooks = setNames(cookbooks)
		return rl, nil
	}

	items := make([]WorkItem, 0, len(sel.Cookbooks)+len(sel.Recipes))
	for _, name := range sel.Cookbooks {
		items = append(items, CookbookItem(name))
	}
	for _, name := range sel.Recipes {
		items = append(items, RecipeItem(name))
	}
	for _, host := range hosts {
		rl.Items[host] = append([]WorkItem(nil), items...)
	}

	rl.Recipes = setNames(toSet(sel.Recipes))
	rl.Cookbooks = setNames(toSet(sel.Cookbooks))
	return rl, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func setNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
