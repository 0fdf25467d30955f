package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(t *testing.T, reg *Registry) (*Lifecycle, Options) {
	t.Helper()
	opts := Options{Settings: testSettings(t, t.TempDir()), Env: testEnv()}
	return NewLifecycle(reg, opts, nil), opts
}

func TestLifecycle_PhaseOrder(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "x", func(r *recordingRecipe) {
		r.pre = "before x"
		r.post = "after x"
	})
	lc, opts := newLifecycle(t, reg)

	rc := NewRunContext("web1", sessiontest.New("web1"), opts)
	require.NoError(t, lc.Apply(context.Background(), rc, RecipeItem("x")))

	assert.Equal(t, []string{
		"web1/x:pre_message",
		"web1/x:base_check",
		"web1/x:pre_apply_checks",
		"web1/x:apply",
		"web1/x:post_message",
	}, rec.Calls())

	require.Len(t, lc.Messages.Pre(), 1)
	assert.Equal(t, Message{Host: "web1", Source: "recipe:x", Text: "before x"}, lc.Messages.Pre()[0])
	assert.Equal(t, "after x", lc.Messages.Post()[0].Text)
}

func TestLifecycle_BaseCheckRejectsUnknownComputer(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "x", nil)
	lc, opts := newLifecycle(t, reg)

	rc := NewRunContext("ghost", sessiontest.New("ghost"), opts)
	err := lc.Apply(context.Background(), rc, RecipeItem("x"))
	require.Error(t, err)
	assert.True(t, errdefs.IsRecipe(err))
	assert.Equal(t, []string{"ghost/x:pre_message"}, rec.Calls(), "nothing runs after a failed check")
}

func TestLifecycle_FailureStopsPhases(t *testing.T) {
	tests := []struct {
		name   string
		failAt Phase
		last   string
	}{
		{"checks", PhasePreChecks, "web1/x:pre_apply_checks"},
		{"apply", PhaseApply, "web1/x:apply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			reg := NewRegistry()
			register(reg, rec, "x", func(r *recordingRecipe) {
				r.failAt = tt.failAt
				r.post = "never shown"
			})
			lc, opts := newLifecycle(t, reg)

			err := lc.Apply(context.Background(), NewRunContext("web1", sessiontest.New("web1"), opts), RecipeItem("x"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), string(tt.failAt))

			calls := rec.Calls()
			assert.Equal(t, tt.last, calls[len(calls)-1])
			assert.Empty(t, lc.Messages.Post())
		})
	}
}

func TestLifecycle_Cookbook(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "a", func(r *recordingRecipe) { r.pre = "pre a"; r.post = "post a" })
	register(reg, rec, "b", func(r *recordingRecipe) { r.pre = "pre b" })
	reg.RegisterCookbook(Cookbook{Name: "ab", Recipes: []string{"a", "b"}, PreMessage: "cookbook ab"})
	lc, opts := newLifecycle(t, reg)

	rc := NewRunContext("web1", sessiontest.New("web1"), opts)
	require.NoError(t, lc.Apply(context.Background(), rc, CookbookItem("ab")))

	assert.Equal(t, []string{
		"web1/a:pre_message",
		"web1/b:pre_message",
		"web1/a:base_check",
		"web1/a:pre_apply_checks",
		"web1/a:apply",
		"web1/a:post_message",
		"web1/b:base_check",
		"web1/b:pre_apply_checks",
		"web1/b:apply",
		"web1/b:post_message",
	}, rec.Calls())

	pre := lc.Messages.Pre()
	require.Len(t, pre, 1)
	assert.Equal(t, "cookbook:ab", pre[0].Source)
	assert.Equal(t, "cookbook ab\npre a\npre b", pre[0].Text, "own message first, then members")
	assert.Equal(t, "post a", lc.Messages.Post()[0].Text)
}

func TestLifecycle_CookbookUnknownMember(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "a", nil)
	reg.RegisterCookbook(Cookbook{Name: "broken", Recipes: []string{"a", "missing"}})
	lc, opts := newLifecycle(t, reg)

	err := lc.Apply(context.Background(), NewRunContext("web1", sessiontest.New("web1"), opts), CookbookItem("broken"))
	require.Error(t, err)
	assert.True(t, errdefs.IsUnknownComponent(err))
	assert.Empty(t, rec.Calls(), "no member runs when one is unknown")
}

func TestLifecycle_QueueMessages(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "x", func(r *recordingRecipe) { r.pre = "pre x"; r.post = "post x" })
	lc, opts := newLifecycle(t, reg)

	require.NoError(t, lc.QueueMessages(NewRunContext("web1", nil, opts), RecipeItem("x")))
	assert.Equal(t, []string{"web1/x:pre_message", "web1/x:post_message"}, rec.Calls())

	var out bytes.Buffer
	require.NoError(t, lc.Messages.Print(&out))
	assert.Contains(t, out.String(), "[web1] recipe:x:\n    pre x\n")
	assert.Contains(t, out.String(), "Post-apply messages")
}

func TestLifecycle_Cleanup(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	register(reg, rec, "x", nil)
	lc, opts := newLifecycle(t, reg)

	require.NoError(t, lc.Cleanup(context.Background(), NewRunContext("web1", sessiontest.New("web1"), opts), "x"))
	assert.Equal(t, []string{"web1/x:cleanup"}, rec.Calls(), "cleanup is not chained to apply")
}

func TestBase_RequireRudeness(t *testing.T) {
	polite := NewBase("nginx", Options{})
	err := polite.RequireRudeness("restart nginx")
	require.Error(t, err)
	assert.True(t, errdefs.IsRecipe(err))

	rude := NewBase("nginx", Options{OkToBeRude: true})
	assert.NoError(t, rude.RequireRudeness("restart nginx"))
}
