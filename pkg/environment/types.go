package environment

import (
	"fmt"
	"sort"
)

// Section names that are always present in a loaded environment.
const (
	SectionUsers     = "users"
	SectionComputers = "computers"
	SectionGroups    = "groups"

	importsKey    = "imports"
	componentsKey = "components"
)

// ComponentKind distinguishes recipes from cookbooks in a computer's component list.
type ComponentKind string

const (
	// KindRecipe is a single-subsystem unit of configuration.
	KindRecipe ComponentKind = "recipe"

	// KindCookbook is an ordered list of recipes.
	KindCookbook ComponentKind = "cookbook"
)

// Component is one entry of a computer's declared component list.
type Component struct {
	Kind ComponentKind `json:"kind" yaml:"kind"`
	Name string        `json:"name" yaml:"name"`
}

// String returns "kind:name".
func (c Component) String() string {
	return string(c.Kind) + ":" + c.Name
}

// Environment is the merged metadata document describing users, computers and
// groups. It is immutable once loaded.
type Environment struct {
	doc map[string]interface{}
}

// New wraps a document as an Environment, adding any missing top-level section.
// The document is copied.
func New(doc map[string]interface{}) *Environment {
	cp := MergeMaps(nil, doc)
	for _, section := range []string{SectionUsers, SectionComputers, SectionGroups} {
		if _, ok := cp[section].(map[string]interface{}); !ok {
			cp[section] = map[string]interface{}{}
		}
	}
	return &Environment{doc: cp}
}

// Doc returns a deep copy of the whole document.
func (e *Environment) Doc() map[string]interface{} {
	return MergeMaps(nil, e.doc)
}

// Users returns the users section. The returned mapping must not be modified.
func (e *Environment) Users() map[string]interface{} {
	return e.section(SectionUsers)
}

// Computers returns the computers section. The returned mapping must not be modified.
func (e *Environment) Computers() map[string]interface{} {
	return e.section(SectionComputers)
}

// Groups returns the groups section. The returned mapping must not be modified.
func (e *Environment) Groups() map[string]interface{} {
	return e.section(SectionGroups)
}

func (e *Environment) section(name string) map[string]interface{} {
	m, _ := e.doc[name].(map[string]interface{})
	return m
}

// User returns the named user's entry.
func (e *Environment) User(name string) (map[string]interface{}, bool) {
	return entry(e.Users(), name)
}

// Computer returns the named computer's entry.
func (e *Environment) Computer(name string) (map[string]interface{}, bool) {
	return entry(e.Computers(), name)
}

// HasComputer reports whether name is a defined computer.
func (e *Environment) HasComputer(name string) bool {
	_, ok := e.Computers()[name]
	return ok
}

// HasGroup reports whether name is a defined group.
func (e *Environment) HasGroup(name string) bool {
	_, ok := e.Groups()[name]
	return ok
}

func entry(section map[string]interface{}, name string) (map[string]interface{}, bool) {
	v, ok := section[name]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		// A computer declared with no fields is still declared.
		return map[string]interface{}{}, true
	}
	return m, true
}

// GroupComputers returns the group's declared computer list in order.
func (e *Environment) GroupComputers(name string) ([]string, error) {
	g, ok := entry(e.Groups(), name)
	if !ok {
		return nil, fmt.Errorf("group %s not defined", name)
	}
	raw, ok := g[SectionComputers]
	if !ok {
		return nil, nil
	}
	return stringList(raw)
}

// Components returns the computer's declared component list in order. Entries
// may be written either as {kind: ..., name: ...} mappings or as two-element
// [kind, name] lists.
func (e *Environment) Components(computer string) ([]Component, error) {
	c, ok := e.Computer(computer)
	if !ok {
		return nil, fmt.Errorf("computer %s not defined", computer)
	}
	raw, ok := c[componentsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("computer %s: components must be a list", computer)
	}

	components := make([]Component, 0, len(list))
	for i, item := range list {
		comp, err := decodeComponent(item)
		if err != nil {
			return nil, fmt.Errorf("computer %s: component %d: %w", computer, i, err)
		}
		components = append(components, comp)
	}
	return components, nil
}

func decodeComponent(item interface{}) (Component, error) {
	var kind, name string
	switch v := item.(type) {
	case map[string]interface{}:
		kind, _ = v["kind"].(string)
		name, _ = v["name"].(string)
	case []interface{}:
		if len(v) != 2 {
			return Component{}, fmt.Errorf("expected [kind, name], got %d elements", len(v))
		}
		kind, _ = v[0].(string)
		name, _ = v[1].(string)
	default:
		return Component{}, fmt.Errorf("unsupported component entry %T", item)
	}

	switch ComponentKind(kind) {
	case KindRecipe, KindCookbook:
	default:
		return Component{}, fmt.Errorf("invalid component kind %q", kind)
	}
	if name == "" {
		return Component{}, fmt.Errorf("component name is required")
	}
	return Component{Kind: ComponentKind(kind), Name: name}, nil
}

// ComputerNames returns all computer names, sorted.
func (e *Environment) ComputerNames() []string {
	return sortedKeys(e.Computers())
}

// GroupNames returns all group names, sorted.
func (e *Environment) GroupNames() []string {
	return sortedKeys(e.Groups())
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringList(raw interface{}) ([]string, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
