// Package script hosts one tengo VM per script-bearing entity. Scripts
// observe the scene read-only; every write funnels through a per-entity
// mutation buffer that flushes into the command buffer once per frame.
package script

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// Error wraps a script failure with its origin. Fatal errors disable
// the VM; runtime errors leave it alive for the next frame.
type Error struct {
	Entity scene.EntityID
	Path   string
	Fatal  bool
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("script %s on entity %d: %v", e.Path, e.Entity, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var lifecycleHooks = []string{"onStart", "onUpdate", "onDestroy", "onEnable", "onDisable"}

var hookPhases = map[string]string{
	"onStart":   "start",
	"onUpdate":  "update",
	"onDestroy": "destroy",
	"onEnable":  "enable",
	"onDisable": "disable",
}

// lifecycleDispatch builds the phase switch appended after the user
// source. Referencing an identifier the script never defines is a
// compile error in tengo, so only branches for hooks the source
// declares are emitted. The callback branch is always safe: __cb is a
// host-provided global.
func lifecycleDispatch(source []byte) string {
	var b strings.Builder
	b.WriteString("\nif __phase == \"callback\" {\n\t__cb(__cb_arg)\n}")
	for _, hook := range lifecycleHooks {
		if !declaresHook(source, hook) {
			continue
		}
		arg := ""
		if hook == "onUpdate" {
			arg = "__dt"
		}
		fmt.Fprintf(&b, " else if __phase == %q {\n\t%s(%s)\n}", hookPhases[hook], hook, arg)
	}
	b.WriteString("\n")
	return b.String()
}

// declaresHook looks for a top-level "name :=" or "name =" statement.
// compiled.IsDefined after the load run stays authoritative for which
// hooks actually run.
func declaresHook(source []byte, name string) bool {
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(trimmed, name)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, ":=") || (strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==")) {
			return true
		}
	}
	return false
}

// mutationBuffer is the per-entity write queue. Scripts append from
// the worker goroutine; the host drains on the frame thread.
type mutationBuffer struct {
	mu   sync.Mutex
	cmds []scene.Command
}

func (b *mutationBuffer) enqueue(cmds ...scene.Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmds = append(b.cmds, cmds...)
}

func (b *mutationBuffer) drain() []scene.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.cmds
	b.cmds = nil
	return out
}

// VM is one entity's isolated script world: compiled source, its own
// globals, its own mutation buffer.
type VM struct {
	entity   scene.EntityID
	path     string
	compiled *tengo.Compiled
	hooks    map[string]bool

	started    bool
	wasEnabled bool
	muts       mutationBuffer
	budget     time.Duration
}

// compile builds the script source with the lifecycle trampoline
// appended and probes which hooks the script defines. The VM must
// already carry its entity and path so the capability closures passed
// through globals can target it. Compile or first-run failures are
// fatal.
func (vm *VM) compile(source []byte, budget time.Duration, globals map[string]any) error {
	src := string(source) + lifecycleDispatch(source)
	s := tengo.NewScript([]byte(src))
	_ = s.Add("__phase", "")
	_ = s.Add("__dt", 0.0)
	_ = s.Add("__cb", tengo.UndefinedValue)
	_ = s.Add("__cb_arg", tengo.UndefinedValue)
	for name, v := range globals {
		_ = s.Add(name, v)
	}
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Fatal: true, Err: err}
	}

	vm.compiled = compiled
	vm.hooks = map[string]bool{}
	vm.budget = budget

	// First run executes top-level code and defines the hook globals.
	if err := vm.runPhase(context.Background(), "load", 0); err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Fatal: true, Err: err}
	}
	for _, hook := range lifecycleHooks {
		vm.hooks[hook] = compiled.IsDefined(hook)
	}
	return nil
}

func (vm *VM) Entity() scene.EntityID { return vm.entity }

func (vm *VM) Path() string { return vm.path }

func (vm *VM) setGlobal(name string, value any) error {
	return vm.compiled.Set(name, value)
}

// callHook runs one lifecycle phase under the wall-clock budget. Phases
// for hooks the script never defined are no-ops.
func (vm *VM) callHook(hook string, dt float64) error {
	if !vm.hooks[hook] {
		return nil
	}
	phase := hookPhases[hook]

	ctx, cancel := context.WithTimeout(context.Background(), vm.budget)
	defer cancel()
	if err := vm.runPhase(ctx, phase, dt); err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Err: err}
	}
	return nil
}

// callback invokes a stored script function (timer or event handler).
// Callbacks run serially on the frame thread.
func (vm *VM) callback(fn tengo.Object, arg tengo.Object) error {
	if arg == nil {
		arg = tengo.UndefinedValue
	}
	if err := vm.compiled.Set("__cb", fn); err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Err: err}
	}
	if err := vm.compiled.Set("__cb_arg", arg); err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), vm.budget)
	defer cancel()
	if err := vm.runPhase(ctx, "callback", 0); err != nil {
		return &Error{Entity: vm.entity, Path: vm.path, Err: err}
	}
	return nil
}

func (vm *VM) runPhase(ctx context.Context, phase string, dt float64) error {
	if err := vm.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := vm.compiled.Set("__dt", dt); err != nil {
		return err
	}
	return vm.compiled.RunContext(ctx)
}
