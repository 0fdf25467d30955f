package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/stores"
)

type fixture struct {
	dir         string
	settings    string
	environment string
	journal     string
}

func newFixture(t *testing.T, journal bool) *fixture {
	t.Helper()
	setup, err := filepath.Abs("../../../examples/setup")
	require.NoError(t, err)

	dir := t.TempDir()
	f := &fixture{
		dir:         dir,
		settings:    filepath.Join(dir, "settings.yaml"),
		environment: filepath.Join(setup, "environment.yaml"),
	}

	lines := []string{
		"package_dir: " + filepath.Join(setup, "packages"),
		"recipe_dir: " + filepath.Join(setup, "recipes"),
		"module_dir: " + filepath.Join(dir, "modules"),
		"tmp_dir: " + dir,
	}
	if journal {
		f.journal = filepath.Join(dir, "journal.db")
		lines = append(lines, "journal_path: "+f.journal)
	}
	require.NoError(t, os.WriteFile(f.settings, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return f
}

func (f *fixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--settings", f.settings, "--environment", f.environment}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	f := newFixture(t, false)
	out, err := f.run(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestValidate_UnknownComponent(t *testing.T) {
	f := newFixture(t, false)
	f.environment = filepath.Join(f.dir, "environment.yaml")
	require.NoError(t, os.WriteFile(f.environment, []byte(`
users: {}
computers:
  db1:
    components:
      - {kind: recipe, name: postgres}
groups:
  db:
    computers: [db1]
`), 0o644))

	_, err := f.run(t, "", "validate")
	require.Error(t, err)
	assert.True(t, errdefs.IsUnknownComponent(err))
	assert.Contains(t, err.Error(), "postgres")
}

func TestValidate_UndefinedGroupMember(t *testing.T) {
	f := newFixture(t, false)
	f.environment = filepath.Join(f.dir, "environment.yaml")
	require.NoError(t, os.WriteFile(f.environment, []byte(`
users: {}
computers:
  db1:
    components:
      - {kind: recipe, name: hosts}
groups:
  db:
    computers: [db1, db2]
`), 0o644))

	_, err := f.run(t, "", "validate")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidTarget(err))
	assert.Contains(t, err.Error(), "db2")
	assert.Contains(t, err.Error(), "groups.db")

	_, err = f.run(t, "", "apply", "--no-prompt", "-r", "hosts", "db")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidTarget(err))
}

func TestValidate_MissingSettings(t *testing.T) {
	f := newFixture(t, false)
	f.settings = filepath.Join(f.dir, "missing.yaml")
	_, err := f.run(t, "", "validate")
	require.Error(t, err)
	assert.True(t, errdefs.IsConfigLoad(err))
}

func TestList(t *testing.T) {
	f := newFixture(t, false)
	out, err := f.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "root_user, hosts, shorewall, ssh, fail2ban, postfix")
	assert.Contains(t, out, "nginx, example_com")
	assert.Contains(t, out, "motd", "scripted recipes are listed")
}

func TestApply_DryRun(t *testing.T) {
	f := newFixture(t, false)
	out, err := f.run(t, "", "apply", "--dry-run", "-c", "base", "-r", "motd", "web", "web1")
	require.NoError(t, err)
	assert.Contains(t, out, "cookbook:base, recipe:motd")
	assert.Equal(t, 2, strings.Count(out, "web1"), "hosts are not deduplicated by default")

	out, err = f.run(t, "", "apply", "--dry-run", "--dedupe", "-c", "base", "web", "web1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "web1"))
}

func TestApply_MessagesOnly(t *testing.T) {
	f := newFixture(t, false)
	out, err := f.run(t, "", "apply", "--messages", "--all", "web2")
	require.NoError(t, err)
	assert.Contains(t, out, "Pre-apply messages")
	assert.Contains(t, out, "motd will be replaced")
	assert.Contains(t, out, "nginx will not be restarted")
	assert.Contains(t, out, "example.com is served from web2.example.com")
}

func TestApply_Errors(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"unknown target", []string{"--dry-run", "-r", "hosts", "nowhere"}, errdefs.IsInvalidTarget},
		{"unknown recipe", []string{"--dry-run", "-r", "postgres", "web1"}, errdefs.IsUnknownComponent},
		{"unknown cookbook", []string{"--dry-run", "-c", "db", "web1"}, errdefs.IsUnknownComponent},
		{"no selection", []string{"web1"}, nil},
		{"all with recipe", []string{"--all", "-r", "hosts", "web1"}, nil},
		{"no targets", []string{"--all"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(t, "", append([]string{"apply"}, tt.args...)...)
			require.Error(t, err)
			if tt.check != nil {
				assert.True(t, tt.check(err), "unexpected error: %v", err)
			}
		})
	}
}

func TestApply_Declined(t *testing.T) {
	f := newFixture(t, true)
	out, err := f.run(t, "n\n", "apply", "-r", "motd", "web1")
	require.NoError(t, err)
	assert.Contains(t, out, "Apply this run list? [y/N]")
	_, statErr := os.Stat(f.journal)
	assert.True(t, os.IsNotExist(statErr), "nothing was run")
}

func TestRender(t *testing.T) {
	f := newFixture(t, false)
	outDir := filepath.Join(f.dir, "rendered")

	out, err := f.run(t, "", "render", "postfix", "mail1", "--out", outDir, "--param", "admin_email=ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, outDir)

	aliases, err := os.ReadFile(filepath.Join(outDir, "etc", "aliases"))
	require.NoError(t, err)
	assert.Equal(t, "postmaster: root\nroot: ops@example.com\n", string(aliases))

	mainCf, err := os.ReadFile(filepath.Join(outDir, "etc", "postfix", "main.cf"))
	require.NoError(t, err)
	assert.Contains(t, string(mainCf), "myhostname = mail1.example.com")
}

func TestRender_DefaultDirAndUnknownComputer(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.run(t, "", "render", "nginx", "web1")
	require.NoError(t, err)
	conf, err := os.ReadFile(filepath.Join(f.dir, "modules", "web1", "nginx", "etc", "nginx", "nginx.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(conf), "# web1")

	_, err = f.run(t, "", "render", "nginx", "ghost")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidTarget(err))
}

func TestHistory(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	journal, err := stores.Open(ctx, f.journal)
	require.NoError(t, err)
	run := &engine.Run{
		ID:        "run-42",
		Mode:      "recipes",
		Targets:   []string{"web"},
		Status:    engine.RunStatusRunning,
		StartedAt: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, journal.StartRun(ctx, run))
	require.NoError(t, journal.RecordItem(ctx, run.ID, "web1", &engine.ItemResult{
		Item:   engine.RecipeItem("motd"),
		Status: engine.ItemStatusCompleted,
	}))
	run.Status = engine.RunStatusSucceeded
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, journal.FinishRun(ctx, run))
	require.NoError(t, journal.Close())

	out, err := f.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "succeeded")

	out, err = f.run(t, "", "history", "--run", "run-42")
	require.NoError(t, err)
	assert.Contains(t, out, "recipe:motd")

	_, err = f.run(t, "", "history", "--run", "run-7")
	assert.ErrorIs(t, err, stores.ErrRunNotFound)

	out, err = f.run(t, "", "history", "--prune", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 1 runs")
}

func TestHistory_NoJournal(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.run(t, "", "history")
	assert.ErrorContains(t, err, "no journal_path")
}

func TestLoadWorkspace_UserOverride(t *testing.T) {
	f := newFixture(t, false)
	settingsPath, environmentPath, remoteUser = f.settings, f.environment, "deploy"
	t.Cleanup(func() { remoteUser = "" })

	ws, err := loadWorkspace()
	require.NoError(t, err)
	assert.Equal(t, "deploy", ws.settings.RemoteUser)
	assert.True(t, ws.registry.HasRecipe("motd"))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tt.answer), &out, "Go?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Go? [y/N] ", out.String())
		})
	}
}
