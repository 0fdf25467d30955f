package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_Bindings(t *testing.T) {
	opts := Options{Env: testEnv(), Params: map[string]string{"release": "42"}}
	rc := NewRunContext("web1", nil, opts)

	b := rc.Bindings(nil)
	assert.Equal(t, "web1", b["name"])
	assert.Equal(t, "example.com", b["computer"].(map[string]interface{})["domain"])
	assert.Equal(t, map[string]interface{}{"release": "42"}, b["params"])

	b = rc.Bindings(map[string]interface{}{"name": "override", "extra": 1})
	assert.Equal(t, "override", b["name"])
	assert.Equal(t, 1, b["extra"])
}

func TestRunContext_PushFileAndTemplate(t *testing.T) {
	pkgs := t.TempDir()
	writePackageFile(t, pkgs, "motd/motd", "welcome\n")
	writePackageFile(t, pkgs, "motd/issue.tmplt", "{{ .name | upper }}\n")

	opts := Options{Settings: testSettings(t, pkgs), Env: testEnv()}
	sess := sessiontest.New("web1")
	rc := NewRunContext("web1", sess, opts)
	ctx := context.Background()

	require.NoError(t, rc.PushFile(ctx, "motd/motd", "/etc/motd"))
	require.NoError(t, rc.PushTemplate(ctx, "motd/issue.tmplt", "/etc/issue", nil))
	require.NoError(t, rc.PushFile(ctx, "motd/motd", "/etc/motd"))

	e, ok := sess.Get("/etc/issue")
	require.True(t, ok)
	assert.Equal(t, "WEB1\n", string(e.Data))

	files := rc.Files()
	assert.Equal(t, 2, files.Written)
	assert.Equal(t, 1, files.Unchanged)
	assert.Equal(t, 1, files.Rendered)
}

func TestRunContext_RequiresSession(t *testing.T) {
	opts := Options{Settings: testSettings(t, t.TempDir()), Env: testEnv()}
	rc := NewRunContext("web1", nil, opts)

	err := rc.PushPackageFileSet(context.Background(), "hosts", nil)
	require.Error(t, err)
	assert.True(t, errdefs.IsRecipe(err))
}

func TestRunContext_PushGitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	src := filepath.Join(t.TempDir(), "site")
	repo, err := git.PlainInit(src, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "public"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "public", "index.html"), []byte("<h1>hi</h1>\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("public/index.html")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "frycook", Email: "frycook@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sess := sessiontest.New("web1")
	sess.Put("/srv/site/stale.html", []byte("old"), 0o644)
	sess.Respond("find '/srv/site' -type f 2>/dev/null || true", "/srv/site/stale.html\n/srv/site/public/index.html\n")

	opts := Options{Settings: testSettings(t, t.TempDir()), Env: testEnv()}
	rc := NewRunContext("web1", sess, opts)
	require.NoError(t, rc.PushGitRepo(context.Background(), src, "/srv/site"))

	e, ok := sess.Get("/srv/site/public/index.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>hi</h1>\n", string(e.Data))

	_, ok = sess.Get("/srv/site/stale.html")
	assert.False(t, ok, "files missing from the repository are removed")
	for _, p := range sess.Paths() {
		assert.False(t, strings.Contains(p, "/.git"), "git metadata is not pushed: %s", p)
	}
	assert.Equal(t, 1, rc.Files().Deleted)
}
