package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Ext is the file extension of recipe scripts.
const Ext = ".star"

// Hook function names a recipe script may define.
const (
	FuncPreApplyMessage  = "pre_apply_message"
	FuncPreApplyChecks   = "pre_apply_checks"
	FuncApply            = "apply"
	FuncPostApplyMessage = "post_apply_message"
	FuncCleanup          = "cleanup"
)

// Globals that turn a script into a cookbook definition.
const (
	globalCookbook    = "COOKBOOK"
	globalPreMessage  = "PRE_APPLY_MESSAGE"
	globalPostMessage = "POST_APPLY_MESSAGE"
)

var hooks = []string{FuncPreApplyMessage, FuncPreApplyChecks, FuncApply, FuncPostApplyMessage, FuncCleanup}

// Script is an executed recipe file. Its top-level functions are frozen after
// loading and may be called for any number of hosts.
type Script struct {
	// Name is the file name without extension; it is the registry name.
	Name string

	// Path is the file the script was loaded from.
	Path string

	globals starlark.StringDict
}

// Load executes the script at path and checks its hooks.
func Load(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), Ext)
	globals, err := starlark.ExecFile(newThread(name), path, src, starlark.StringDict{
		"struct": starlarkstruct.Default,
	})
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, err)
	}

	for _, hook := range hooks {
		if v, ok := globals[hook]; ok {
			if _, callable := v.(starlark.Callable); !callable {
				return nil, errdefs.NewConfigLoadError(path, fmt.Errorf("%s must be a function, got %s", hook, v.Type()))
			}
		}
	}

	return &Script{Name: name, Path: path, globals: globals}, nil
}

// LoadDir loads every script in dir, in file name order. An empty dir loads nothing.
func LoadDir(dir string) ([]*Script, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, errdefs.NewConfigLoadError(dir, err)
	}

	scripts := make([]*Script, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// Register loads dir and adds each script to reg as a recipe, or as a
// cookbook when it declares COOKBOOK. Scripts replace built-in definitions of
// the same name.
func Register(reg *engine.Registry, dir string) error {
	scripts, err := LoadDir(dir)
	if err != nil {
		return err
	}

	for _, s := range scripts {
		if s.IsCookbook() {
			cb, err := s.Cookbook()
			if err != nil {
				return err
			}
			reg.RegisterCookbook(cb)
			log.Debug().Str("cookbook", s.Name).Strs("recipes", cb.Recipes).Msg("Registered scripted cookbook")
			continue
		}
		reg.RegisterRecipe(s.Name, s.Factory())
		log.Debug().Str("recipe", s.Name).Str("path", s.Path).Msg("Registered scripted recipe")
	}
	return nil
}

// IsCookbook reports whether the script declares a cookbook.
func (s *Script) IsCookbook() bool {
	_, ok := s.globals[globalCookbook]
	return ok
}

// Cookbook returns the cookbook the script declares.
func (s *Script) Cookbook() (engine.Cookbook, error) {
	members, err := stringList(s.globals[globalCookbook])
	if err != nil {
		return engine.Cookbook{}, errdefs.NewConfigLoadError(s.Path, fmt.Errorf("%s: %w", globalCookbook, err))
	}
	return engine.Cookbook{
		Name:        s.Name,
		Recipes:     members,
		PreMessage:  s.stringGlobal(globalPreMessage),
		PostMessage: s.stringGlobal(globalPostMessage),
	}, nil
}

// Factory returns a recipe factory backed by the script.
func (s *Script) Factory() engine.RecipeFactory {
	return func(opts engine.Options) engine.Recipe {
		return &Recipe{Base: engine.NewBase(s.Name, opts), script: s}
	}
}

func (s *Script) stringGlobal(name string) string {
	v, _ := starlark.AsString(s.globals[name])
	return v
}

// call invokes the named hook. Hooks declared without parameters are called
// without the ctx argument. A missing hook returns None.
func (s *Script) call(ctx context.Context, hook string, arg starlark.Value) (starlark.Value, error) {
	v, ok := s.globals[hook]
	if !ok {
		return starlark.None, nil
	}
	fn := v.(starlark.Callable)

	var args starlark.Tuple
	if f, ok := fn.(*starlark.Function); !ok || f.NumParams() > 0 {
		args = starlark.Tuple{arg}
	}

	thread := newThread(s.Name)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	out, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, s.wrap(hook, err)
	}
	return out, nil
}

// wrap keeps the classification of errors raised by builtins and marks
// every other script failure as a recipe error.
func (s *Script) wrap(hook string, err error) error {
	var classified *errdefs.Error
	if errors.As(err, &classified) {
		return fmt.Errorf("%s %s: %w", s.Path, hook, err)
	}

	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Backtrace()
	}
	e := errdefs.NewRecipeError("script %s failed in %s", s.Name, hook).WithSubject(s.Path)
	e.Err = errors.New(msg)
	return e
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info().Str("script", name).Msg(msg)
		},
	}
}
