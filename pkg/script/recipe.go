package script

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/ops"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Recipe runs a Script's hooks through the recipe lifecycle.
type Recipe struct {
	engine.Base
	script *Script
}

func (r *Recipe) PreApplyMessage(rc *engine.RunContext) string {
	return r.message(rc, FuncPreApplyMessage)
}

// PreApplyChecks runs the built-in check before the script's own.
func (r *Recipe) PreApplyChecks(ctx context.Context, rc *engine.RunContext) error {
	if err := r.Base.PreApplyChecks(ctx, rc); err != nil {
		return err
	}
	_, err := r.script.call(ctx, FuncPreApplyChecks, r.ctxValue(ctx, rc))
	return err
}

func (r *Recipe) Apply(ctx context.Context, rc *engine.RunContext) error {
	_, err := r.script.call(ctx, FuncApply, r.ctxValue(ctx, rc))
	return err
}

func (r *Recipe) PostApplyMessage(rc *engine.RunContext) string {
	return r.message(rc, FuncPostApplyMessage)
}

func (r *Recipe) Cleanup(ctx context.Context, rc *engine.RunContext) error {
	_, err := r.script.call(ctx, FuncCleanup, r.ctxValue(ctx, rc))
	return err
}

// message returns the hook's string result. Message hooks cannot fail a
// run; errors are logged and produce no text.
func (r *Recipe) message(rc *engine.RunContext, hook string) string {
	ctx := context.Background()
	v, err := r.script.call(ctx, hook, r.ctxValue(ctx, rc))
	if err != nil {
		log.Error().Err(err).Str("recipe", r.Name()).Str("host", rc.Computer).Msg("Message hook failed")
		return ""
	}
	if v == starlark.None {
		return ""
	}
	s, ok := starlark.AsString(v)
	if !ok {
		log.Warn().Str("recipe", r.Name()).Str("hook", hook).Str("type", v.Type()).Msg("Message hook did not return a string")
		return ""
	}
	return s
}

// ctxValue builds the ctx struct handed to hooks for one host.
func (r *Recipe) ctxValue(ctx context.Context, rc *engine.RunContext) starlark.Value {
	fields := starlark.StringDict{
		"computer":      starlark.String(rc.Computer),
		"ok_to_be_rude": starlark.Bool(r.OkToBeRude),
		"no_prompt":     starlark.Bool(r.NoPrompt),
		"environment":   starlark.None,
		"settings":      starlark.None,
	}

	params, _ := toValue(rc.Params)
	fields["params"] = params
	if rc.Env != nil {
		if v, err := toValue(rc.Env.Doc()); err == nil {
			fields["environment"] = v
		} else {
			log.Warn().Err(err).Str("recipe", r.Name()).Msg("Environment not representable in script")
		}
	}
	if rc.Settings != nil {
		if v, err := toValue(rc.Settings.Raw()); err == nil {
			fields["settings"] = v
		}
	}

	b := &builtins{ctx: ctx, rc: rc, rude: r.OkToBeRude}
	for name, fn := range map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
		"push_package_file_set": b.pushPackageFileSet,
		"push_file":             b.pushFile,
		"push_template":         b.pushTemplate,
		"run":                   b.run,
		"sudo":                  b.sudo,
		"package_ensure":        b.packageEnsure,
		"service_restart":       b.serviceRestart,
		"service_reload":        b.serviceReload,
		"dir_ensure":            b.dirEnsure,
		"file_link":             b.fileLink,
		"fail":                  b.fail,
	} {
		fields[name] = starlark.NewBuiltin(name, fn)
	}

	return starlarkstruct.FromStringDict(starlark.String("ctx"), fields)
}

// builtins are the ctx functions bound to one host's run context.
type builtins struct {
	ctx  context.Context
	rc   *engine.RunContext
	rude bool
}

func (b *builtins) requireSession(name string) error {
	if b.rc.Session == nil {
		return errdefs.NewRecipeError("%s: host %s has no open session", name, b.rc.Computer)
	}
	return nil
}

func (b *builtins) pushPackageFileSet(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pkg string
	var env *starlark.Dict
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pkg", &pkg, "env?", &env); err != nil {
		return nil, err
	}
	aux, err := auxBindings(env)
	if err != nil {
		return nil, err
	}
	return starlark.None, b.rc.PushPackageFileSet(b.ctx, pkg, aux)
}

func (b *builtins) pushFile(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var local, remote string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "local", &local, "remote", &remote); err != nil {
		return nil, err
	}
	return starlark.None, b.rc.PushFile(b.ctx, local, remote)
}

func (b *builtins) pushTemplate(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tmpl, remote string
	var env *starlark.Dict
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "template", &tmpl, "remote", &remote, "env?", &env); err != nil {
		return nil, err
	}
	aux, err := auxBindings(env)
	if err != nil {
		return nil, err
	}
	return starlark.None, b.rc.PushTemplate(b.ctx, tmpl, remote, aux)
}

func (b *builtins) run(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &cmd); err != nil {
		return nil, err
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	out, err := ops.Run(b.ctx, b.rc.Session, cmd)
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

func (b *builtins) sudo(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &cmd); err != nil {
		return nil, err
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	out, err := ops.Sudo(b.ctx, b.rc.Session, cmd)
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

func (b *builtins) packageEnsure(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	names, err := stringList(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	res, err := ops.PackageEnsure(b.ctx, b.rc.Session, names...)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res.Changed), nil
}

func (b *builtins) serviceRestart(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.service(fn, args, kwargs, ops.ServiceRestart)
}

func (b *builtins) serviceReload(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.service(fn, args, kwargs, ops.ServiceReload)
}

type serviceOp func(ctx context.Context, s session.Session, name string, rude bool) (ops.Result, error)

func (b *builtins) service(fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, op serviceOp) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	res, err := op(b.ctx, b.rc.Session, name, b.rude)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res.Changed), nil
}

func (b *builtins) dirEnsure(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path         string
		mode         starlark.Value = starlark.None
		owner, group string
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"path", &path, "mode?", &mode, "owner?", &owner, "group?", &group); err != nil {
		return nil, err
	}
	perm, err := fileMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	res, err := ops.DirEnsure(b.ctx, b.rc.Session, path, ops.DirOptions{Mode: perm, Owner: owner, Group: group})
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res.Changed), nil
}

func (b *builtins) fileLink(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target, link string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "target", &target, "link", &link); err != nil {
		return nil, err
	}
	if err := b.requireSession(fn.Name()); err != nil {
		return nil, err
	}
	res, err := ops.FileLink(b.ctx, b.rc.Session, target, link)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res.Changed), nil
}

func (b *builtins) fail(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	return nil, errdefs.NewRecipeError("%s", msg).WithSubject(b.rc.Computer)
}

func auxBindings(env *starlark.Dict) (map[string]interface{}, error) {
	if env == nil {
		return nil, nil
	}
	v, err := fromValue(env)
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

// fileMode accepts an int (0o755) or an octal string ("0755").
func fileMode(v starlark.Value) (os.FileMode, error) {
	switch m := v.(type) {
	case starlark.NoneType:
		return 0, nil
	case starlark.Int:
		n, ok := m.Uint64()
		if !ok || n > 0o7777 {
			return 0, fmt.Errorf("invalid mode %s", m)
		}
		return os.FileMode(n), nil
	case starlark.String:
		n, err := strconv.ParseUint(string(m), 8, 32)
		if err != nil || n > 0o7777 {
			return 0, fmt.Errorf("invalid mode %q", string(m))
		}
		return os.FileMode(n), nil
	default:
		return 0, fmt.Errorf("mode must be int or string, got %s", v.Type())
	}
}
