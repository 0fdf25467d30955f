package engine

import (
	"time"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/fileset"
)

// WorkItem is one {kind, name} entry in a host's run list.
type WorkItem = environment.Component

// Recipe and cookbook work-item kinds.
const (
	KindRecipe   = environment.KindRecipe
	KindCookbook = environment.KindCookbook
)

// RecipeItem returns a recipe work item.
func RecipeItem(name string) WorkItem {
	return WorkItem{Kind: KindRecipe, Name: name}
}

// CookbookItem returns a cookbook work item.
func CookbookItem(name string) WorkItem {
	return WorkItem{Kind: KindCookbook, Name: name}
}

// RunList maps each target host to its ordered work items.
type RunList struct {
	// Hosts is the resolved host order. A host may appear more than once.
	Hosts []string `json:"hosts"`

	// Items holds each host's work items in execution order.
	Items map[string][]WorkItem `json:"items"`

	// Recipes is the set of recipe names referenced, sorted.
	Recipes []string `json:"recipes"`

	// Cookbooks is the set of cookbook names referenced, sorted.
	Cookbooks []string `json:"cookbooks"`
}

// For returns the work items for host.
func (r *RunList) For(host string) []WorkItem {
	return r.Items[host]
}

// Selection chooses how a run list is built.
type Selection struct {
	// All applies each computer's declared components.
	All bool

	// Cookbooks are applied to every host, in order, before Recipes.
	Cookbooks []string

	// Recipes are applied to every host, in order, after Cookbooks.
	Recipes []string
}

// Mode names the selection for display and the run journal.
func (s Selection) Mode() string {
	switch {
	case s.All:
		return "all"
	case len(s.Cookbooks) > 0 && len(s.Recipes) > 0:
		return "mixed"
	case len(s.Cookbooks) > 0:
		return "cookbooks"
	default:
		return "recipes"
	}
}

// Run is one invocation of the runner.
type Run struct {
	// ID is the unique identifier of the run.
	ID string `json:"id"`

	// Mode is the selection mode the run list was built with.
	Mode string `json:"mode"`

	// Targets are the target tokens as given by the caller.
	Targets []string `json:"targets"`

	// Status is the overall status of the run.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Hosts holds one result per processed host, in processing order.
	Hosts []*HostResult `json:"hosts"`
}

// Failed returns the results of hosts that did not complete.
func (r *Run) Failed() []*HostResult {
	var out []*HostResult
	for _, h := range r.Hosts {
		if h.Status == HostStatusFailed {
			out = append(out, h)
		}
	}
	return out
}

// HostResult is the outcome of one host's run list.
type HostResult struct {
	Host     string        `json:"host"`
	Status   HostStatus    `json:"status"`
	Items    []*ItemResult `json:"items"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ItemResult is the outcome of one work item on one host.
type ItemResult struct {
	Item     WorkItem      `json:"item"`
	Status   ItemStatus    `json:"status"`
	Files    fileset.Stats `json:"files"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ErrorText returns the item's error text, or "".
func (r *ItemResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
