// Package fileset pushes package trees onto a remote host.
//
// A package is a directory under the configured package root whose layout
// mirrors the target filesystem. Two reserved files control each directory:
// fck_metadata.txt sets ownership and permissions and fck_delete.txt names
// files to remove. Files ending in .tmplt are rendered before placement.
package fileset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

// Stats counts what a synchronization did.
type Stats struct {
	Written   int
	Unchanged int
	Deleted   int
	Skipped   int
	Rendered  int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Written += other.Written
	s.Unchanged += other.Unchanged
	s.Deleted += other.Deleted
	s.Skipped += other.Skipped
	s.Rendered += other.Rendered
}

// Synchronizer places package trees through a Session.
type Synchronizer struct {
	// PackageDir is the root holding one directory per package.
	PackageDir string

	// Ignore reports whether the slash-separated path relative to the package
	// root should be skipped. Nil ignores nothing.
	Ignore func(rel string) bool
}

// NewSynchronizer returns a Synchronizer for packageDir.
func NewSynchronizer(packageDir string, ignore func(rel string) bool) *Synchronizer {
	return &Synchronizer{PackageDir: packageDir, Ignore: ignore}
}

// Sync walks the package depth first and mirrors it under remoteRoot.
// It stops at the first failure; files already placed stay in place.
func (s *Synchronizer) Sync(ctx context.Context, sess session.Session, pkg, remoteRoot string, bindings map[string]interface{}) (Stats, error) {
	var stats Stats

	localRoot := filepath.Join(s.PackageDir, pkg)
	info, err := os.Stat(localRoot)
	if err != nil {
		return stats, errdefs.NewFileSetError(localRoot, err).WithStage("stat")
	}
	if !info.IsDir() {
		return stats, errdefs.NewFileSetError(localRoot, fmt.Errorf("package %q is not a directory", pkg)).WithStage("stat")
	}

	w := &walker{
		sess:     sess,
		ignore:   s.Ignore,
		bindings: bindings,
		stats:    &stats,
	}
	if err := w.dir(ctx, localRoot, ".", remoteRoot); err != nil {
		return stats, err
	}

	log.Info().
		Str("host", sess.Host()).
		Str("package", pkg).
		Int("written", stats.Written).
		Int("unchanged", stats.Unchanged).
		Int("deleted", stats.Deleted).
		Int("skipped", stats.Skipped).
		Msg("Package synchronized")

	return stats, nil
}

type walker struct {
	sess     session.Session
	ignore   func(rel string) bool
	bindings map[string]interface{}
	stats    *Stats
}

func (w *walker) dir(ctx context.Context, localDir, rel, remoteDir string) error {
	if err := ctx.Err(); err != nil {
		return errdefs.NewFileSetError(remoteDir, err)
	}

	info, err := os.Stat(localDir)
	if err != nil {
		return errdefs.NewFileSetError(localDir, err).WithStage("stat")
	}
	if err := w.sess.MkdirAll(ctx, remoteDir, info.Mode().Perm()); err != nil {
		return errdefs.NewFileSetError(remoteDir, err).WithStage("mkdir")
	}

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return errdefs.NewFileSetError(localDir, err).WithStage("read")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var metadata []MetadataEntry
	var deletions []string
	for _, e := range entries {
		switch e.Name() {
		case MetadataFile:
			metadata, err = parseManifest(filepath.Join(localDir, e.Name()), ParseMetadata)
		case DeleteFile:
			deletions, err = parseManifest(filepath.Join(localDir, e.Name()), ParseDeletions)
		}
		if err != nil {
			return err
		}
	}

	for _, name := range deletions {
		target := path.Join(remoteDir, name)
		if err := w.sess.Remove(ctx, target); err != nil {
			return errdefs.NewFileSetError(target, err).WithStage("delete")
		}
		w.stats.Deleted++
		log.Debug().Str("host", w.sess.Host()).Str("path", target).Msg("Removed")
	}

	// Manifest modes also apply at write time so re-runs compare equal.
	modes := map[string]os.FileMode{}
	for _, m := range metadata {
		if m.HasMode && m.Path != "." {
			modes[OutputName(m.Path)] = m.Mode
		}
	}

	var subdirs []os.DirEntry
	for _, e := range entries {
		name := e.Name()
		if name == MetadataFile || name == DeleteFile {
			continue
		}
		relName := path.Join(rel, name)
		if w.ignore != nil && w.ignore(relName) {
			w.stats.Skipped++
			continue
		}
		if e.IsDir() {
			subdirs = append(subdirs, e)
			continue
		}
		mode, ok := modes[OutputName(name)]
		if !ok {
			info, err := e.Info()
			if err != nil {
				return errdefs.NewFileSetError(filepath.Join(localDir, name), err).WithStage("stat")
			}
			mode = info.Mode().Perm()
		}
		if err := w.file(ctx, filepath.Join(localDir, name), path.Join(remoteDir, name), mode); err != nil {
			return err
		}
	}

	for _, e := range subdirs {
		name := e.Name()
		if err := w.dir(ctx, filepath.Join(localDir, name), path.Join(rel, name), path.Join(remoteDir, name)); err != nil {
			return err
		}
	}

	return w.applyMetadata(ctx, remoteDir, metadata)
}

func (w *walker) file(ctx context.Context, localPath, remotePath string, mode os.FileMode) error {
	var data []byte
	var err error
	if IsTemplate(localPath) {
		data, err = RenderFile(localPath, w.bindings)
		if err != nil {
			return errdefs.NewFileSetError(localPath, err).WithStage("render")
		}
		remotePath = OutputName(remotePath)
		w.stats.Rendered++
	} else {
		data, err = os.ReadFile(localPath)
		if err != nil {
			return errdefs.NewFileSetError(localPath, err).WithStage("read")
		}
	}

	wrote, err := w.sess.WriteFile(ctx, remotePath, data, mode)
	if err != nil {
		return errdefs.NewFileSetError(remotePath, err).WithStage("write")
	}
	if wrote {
		w.stats.Written++
		log.Debug().Str("host", w.sess.Host()).Str("path", remotePath).Msg("Placed")
	} else {
		w.stats.Unchanged++
	}
	return nil
}

func (w *walker) applyMetadata(ctx context.Context, remoteDir string, entries []MetadataEntry) error {
	for _, m := range entries {
		target := remoteDir
		if m.Path != "." {
			target = path.Join(remoteDir, OutputName(m.Path))
		}
		if m.Owner != "" || m.Group != "" {
			if err := w.sess.Chown(ctx, target, m.Owner, m.Group); err != nil {
				return errdefs.NewFileSetError(target, err).WithStage("chown")
			}
		}
		if m.HasMode {
			if err := w.sess.Chmod(ctx, target, m.Mode); err != nil {
				return errdefs.NewFileSetError(target, err).WithStage("chmod")
			}
		}
	}
	return nil
}

func parseManifest[T any](file string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(file)
	if err != nil {
		return zero, errdefs.NewFileSetError(file, err).WithStage("read")
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, errdefs.NewFileSetError(file, err).WithStage("manifest")
	}
	return v, nil
}

// PushFile copies one local file to remotePath, keeping its permission bits.
func PushFile(ctx context.Context, sess session.Session, localPath, remotePath string) (bool, error) {
	return pushOne(ctx, sess, localPath, remotePath, nil, false)
}

// PushTemplate renders one local template to remotePath, keeping its permission bits.
func PushTemplate(ctx context.Context, sess session.Session, localPath, remotePath string, bindings map[string]interface{}) (bool, error) {
	return pushOne(ctx, sess, localPath, remotePath, bindings, true)
}

func pushOne(ctx context.Context, sess session.Session, localPath, remotePath string, bindings map[string]interface{}, render bool) (bool, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return false, errdefs.NewFileSetError(localPath, err).WithStage("stat")
	}

	var data []byte
	if render {
		data, err = RenderFile(localPath, bindings)
	} else {
		data, err = os.ReadFile(localPath)
	}
	if err != nil {
		return false, errdefs.NewFileSetError(localPath, err).WithStage("read")
	}

	if err := sess.MkdirAll(ctx, path.Dir(remotePath), 0o755); err != nil {
		return false, errdefs.NewFileSetError(path.Dir(remotePath), err).WithStage("mkdir")
	}
	wrote, err := sess.WriteFile(ctx, remotePath, data, info.Mode().Perm())
	if err != nil {
		return false, errdefs.NewFileSetError(remotePath, err).WithStage("write")
	}
	return wrote, nil
}

// Mirror copies localDir onto remoteDir verbatim and removes remote files
// that have no local counterpart. Paths for which skip returns true are
// neither copied nor removed.
func Mirror(ctx context.Context, sess session.Session, localDir, remoteDir string, skip func(rel string) bool) (Stats, error) {
	var stats Stats
	keep := map[string]bool{}

	err := filepath.WalkDir(localDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return errdefs.NewFileSetError(p, err).WithStage("read")
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return errdefs.NewFileSetError(p, err)
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && skip != nil && skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		remote := path.Join(remoteDir, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return errdefs.NewFileSetError(p, err).WithStage("stat")
			}
			if err := sess.MkdirAll(ctx, remote, info.Mode().Perm()); err != nil {
				return errdefs.NewFileSetError(remote, err).WithStage("mkdir")
			}
			return nil
		}

		keep[remote] = true
		wrote, err := pushOne(ctx, sess, p, remote, nil, false)
		if err != nil {
			return err
		}
		if wrote {
			stats.Written++
		} else {
			stats.Unchanged++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	listing, err := sess.Sudo(ctx, "find "+quote(remoteDir)+" -type f 2>/dev/null || true")
	if err != nil {
		return stats, errdefs.NewFileSetError(remoteDir, err).WithStage("list")
	}
	for _, remote := range strings.Split(listing, "\n") {
		remote = strings.TrimSpace(remote)
		if remote == "" || keep[remote] {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(remote, remoteDir), "/")
		if skip != nil && skip(rel) {
			continue
		}
		if err := sess.Remove(ctx, remote); err != nil {
			return stats, errdefs.NewFileSetError(remote, err).WithStage("delete")
		}
		stats.Deleted++
	}
	return stats, nil
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}
