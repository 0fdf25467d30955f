package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jfarrimo/frycook/pkg/environment"
)

func testEnv() *environment.Environment {
	return environment.New(map[string]interface{}{
		"users": map[string]interface{}{
			"root": map[string]interface{}{"email": "root@example.com"},
		},
		"computers": map[string]interface{}{
			"test1": map[string]interface{}{
				"address": "10.0.0.1",
				"components": []interface{}{
					map[string]interface{}{"kind": "cookbook", "name": "base"},
					map[string]interface{}{"kind": "recipe", "name": "x"},
				},
			},
			"web1": map[string]interface{}{
				"domain":     "example.com",
				"components": []interface{}{[]interface{}{"recipe", "x"}},
			},
			"a": nil,
		},
		"groups": map[string]interface{}{
			"grp": map[string]interface{}{"computers": []interface{}{"test1"}},
			"a":   map[string]interface{}{"computers": []interface{}{"web1"}},
			"web": map[string]interface{}{"computers": []interface{}{"web1", "test1"}},
		},
	})
}

func testSettings(t *testing.T, packageDir string) *environment.Settings {
	t.Helper()
	s, err := environment.NewSettings(map[string]interface{}{
		"package_dir":  packageDir,
		"tmp_dir":      t.TempDir(),
		"file_ignores": `~$`,
	})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	return s
}

func writePackageFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// recorder collects lifecycle calls across recipe instances.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var errApply = errors.New("apply failed")

// recordingRecipe records each lifecycle call as "<host>/<name>:<phase>".
type recordingRecipe struct {
	Base
	rec    *recorder
	pre    string
	post   string
	failAt Phase
	apply  func(ctx context.Context, rc *RunContext) error
}

func (r *recordingRecipe) mark(rc *RunContext, call string) {
	r.rec.add(rc.Computer + "/" + r.Name() + ":" + call)
}

func (r *recordingRecipe) PreApplyMessage(rc *RunContext) string {
	r.mark(rc, string(PhasePreMessage))
	return r.pre
}

func (r *recordingRecipe) PreApplyChecks(ctx context.Context, rc *RunContext) error {
	if err := r.Base.PreApplyChecks(ctx, rc); err != nil {
		return err
	}
	r.mark(rc, "base_check")
	r.mark(rc, string(PhasePreChecks))
	if r.failAt == PhasePreChecks {
		return errors.New("check failed")
	}
	return nil
}

func (r *recordingRecipe) Apply(ctx context.Context, rc *RunContext) error {
	r.mark(rc, string(PhaseApply))
	if r.failAt == PhaseApply {
		return errApply
	}
	if r.apply != nil {
		return r.apply(ctx, rc)
	}
	return nil
}

func (r *recordingRecipe) PostApplyMessage(rc *RunContext) string {
	r.mark(rc, string(PhasePostMessage))
	return r.post
}

func (r *recordingRecipe) Cleanup(ctx context.Context, rc *RunContext) error {
	r.mark(rc, string(PhaseCleanup))
	return nil
}

// register adds a recording recipe to reg.
func register(reg *Registry, rec *recorder, name string, configure func(r *recordingRecipe)) {
	reg.RegisterRecipe(name, func(opts Options) Recipe {
		r := &recordingRecipe{Base: NewBase(name, opts), rec: rec}
		if configure != nil {
			configure(r)
		}
		return r
	})
}
