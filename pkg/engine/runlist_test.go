package engine

import (
	"testing"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRunList_All(t *testing.T) {
	rl, err := BuildRunList(testEnv(), []string{"test1", "web1"}, Selection{All: true})
	require.NoError(t, err)

	assert.Equal(t, []WorkItem{CookbookItem("base"), RecipeItem("x")}, rl.For("test1"))
	assert.Equal(t, []WorkItem{RecipeItem("x")}, rl.For("web1"))
	assert.Equal(t, []string{"x"}, rl.Recipes)
	assert.Equal(t, []string{"base"}, rl.Cookbooks)
}

func TestBuildRunList_Explicit(t *testing.T) {
	sel := Selection{
		Cookbooks: []string{"web", "base"},
		Recipes:   []string{"hosts", "nginx", "hosts"},
	}
	rl, err := BuildRunList(testEnv(), []string{"test1", "web1"}, sel)
	require.NoError(t, err)

	want := []WorkItem{
		CookbookItem("web"),
		CookbookItem("base"),
		RecipeItem("hosts"),
		RecipeItem("nginx"),
		RecipeItem("hosts"),
	}
	assert.Equal(t, want, rl.For("test1"))
	assert.Equal(t, want, rl.For("web1"))
	assert.Equal(t, []string{"hosts", "nginx"}, rl.Recipes)
	assert.Equal(t, []string{"base", "web"}, rl.Cookbooks)
	assert.Equal(t, "mixed", sel.Mode())
}

func TestBuildRunList_GroupTarget(t *testing.T) {
	env := testEnv()

	hosts, err := ResolveTargets(env, []string{"grp"})
	require.NoError(t, err)
	rl, err := BuildRunList(env, hosts, Selection{Recipes: []string{"hosts"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"test1"}, rl.Hosts)
	assert.Equal(t, map[string][]WorkItem{"test1": {RecipeItem("hosts")}}, rl.Items)
}

func TestBuildRunList_MalformedComponents(t *testing.T) {
	env := environment.New(map[string]interface{}{
		"computers": map[string]interface{}{
			"bad": map[string]interface{}{
				"components": []interface{}{map[string]interface{}{"kind": "widget", "name": "x"}},
			},
		},
	})

	_, err := BuildRunList(env, []string{"bad"}, Selection{All: true})
	require.Error(t, err)
	assert.True(t, errdefs.IsConfigLoad(err))
}

func TestSelectionMode(t *testing.T) {
	assert.Equal(t, "all", Selection{All: true}.Mode())
	assert.Equal(t, "cookbooks", Selection{Cookbooks: []string{"base"}}.Mode())
	assert.Equal(t, "recipes", Selection{Recipes: []string{"x"}}.Mode())
}
