package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/fileset"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

// RunContext is handed to every lifecycle call for one host. It owns the
// host's session for the duration of the host's run list.
type RunContext struct {
	// Computer is the host being configured.
	Computer string

	// Session is the open session to Computer. It is nil in messages-only mode.
	Session session.Session

	Settings *environment.Settings
	Env      *environment.Environment
	Params   map[string]string

	sync  *fileset.Synchronizer
	files fileset.Stats
}

// NewRunContext returns a RunContext for computer.
func NewRunContext(computer string, sess session.Session, opts Options) *RunContext {
	rc := &RunContext{
		Computer: computer,
		Session:  sess,
		Settings: opts.Settings,
		Env:      opts.Env,
		Params:   opts.Params,
	}
	if opts.Settings != nil {
		rc.sync = fileset.NewSynchronizer(opts.Settings.PackageDir, opts.Settings.IgnoreFile)
	}
	return rc
}

// ComputerConfig returns the computer's environment entry.
func (rc *RunContext) ComputerConfig() map[string]interface{} {
	c, _ := rc.Env.Computer(rc.Computer)
	return c
}

// Bindings returns the template binding environment for this host: the
// computer's entry under "computer", its name under "name" and the
// command-line parameters under "params". Keys in aux replace these.
func (rc *RunContext) Bindings(aux map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(rc.Params))
	for k, v := range rc.Params {
		params[k] = v
	}

	b := map[string]interface{}{
		"computer": rc.ComputerConfig(),
		"name":     rc.Computer,
		"params":   params,
	}
	for k, v := range aux {
		b[k] = v
	}
	return b
}

// Files returns the file counts accumulated by the push helpers.
func (rc *RunContext) Files() fileset.Stats {
	return rc.files
}

// PushPackageFileSet synchronizes the named package onto the host's root
// filesystem.
func (rc *RunContext) PushPackageFileSet(ctx context.Context, pkg string, aux map[string]interface{}) error {
	if err := rc.ready(); err != nil {
		return err
	}
	stats, err := rc.sync.Sync(ctx, rc.Session, pkg, "/", rc.Bindings(aux))
	rc.files.Add(stats)
	return err
}

// PushFile copies a file from the package root to remotePath.
func (rc *RunContext) PushFile(ctx context.Context, localPath, remotePath string) error {
	if err := rc.ready(); err != nil {
		return err
	}
	wrote, err := fileset.PushFile(ctx, rc.Session, rc.packagePath(localPath), remotePath)
	rc.count(wrote, err)
	return err
}

// PushTemplate renders a template from the package root to remotePath.
func (rc *RunContext) PushTemplate(ctx context.Context, templatePath, remotePath string, aux map[string]interface{}) error {
	if err := rc.ready(); err != nil {
		return err
	}
	wrote, err := fileset.PushTemplate(ctx, rc.Session, rc.packagePath(templatePath), remotePath, rc.Bindings(aux))
	if err == nil {
		rc.files.Rendered++
	}
	rc.count(wrote, err)
	return err
}

// PushGitRepo clones url into the local scratch directory and mirrors its
// working tree, without .git, onto remotePath. Remote files absent from the
// clone are removed.
func (rc *RunContext) PushGitRepo(ctx context.Context, url, remotePath string) error {
	if err := rc.ready(); err != nil {
		return err
	}

	name := strings.TrimSuffix(path.Base(strings.TrimRight(url, "/")), ".git")
	dir := filepath.Join(rc.Settings.TmpDir, "push_git_repo", name)
	if err := os.RemoveAll(dir); err != nil {
		return errdefs.NewFileSetError(dir, err).WithStage("clone")
	}

	log.Info().Str("host", rc.Computer).Str("repo", url).Str("dir", dir).Msg("Cloning repository")
	if _, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url}); err != nil {
		return errdefs.NewFileSetError(url, fmt.Errorf("clone: %w", err)).WithStage("clone")
	}

	stats, err := fileset.Mirror(ctx, rc.Session, dir, remotePath, func(rel string) bool {
		return rel == ".git" || strings.HasPrefix(rel, ".git/")
	})
	rc.files.Add(stats)
	return err
}

func (rc *RunContext) ready() error {
	if rc.Session == nil {
		return errdefs.NewRecipeError("host %s has no open session", rc.Computer)
	}
	if rc.sync == nil {
		return errdefs.NewRecipeError("host %s has no settings", rc.Computer)
	}
	return nil
}

func (rc *RunContext) packagePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rc.Settings.PackageDir, p)
}

func (rc *RunContext) count(wrote bool, err error) {
	switch {
	case err != nil:
	case wrote:
		rc.files.Written++
	default:
		rc.files.Unchanged++
	}
}
