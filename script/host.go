package script

import (
	"math"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/input"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
	"github.com/jonit-dev/vibe-coder-3d-sub003/spatial"
)

const defaultBudget = 16 * time.Millisecond

// Config tunes the script host. Zero values pick sane defaults.
type Config struct {
	// Loader resolves a Script component's scriptPath to source.
	Loader func(path string) ([]byte, error)
	// Budget is the wall-clock limit for a single hook invocation.
	Budget time.Duration
	// Parallel caps the worker count for onUpdate dispatch.
	Parallel int
}

type timerEntry struct {
	id       uint64
	vm       *VM
	fn       tengo.Object
	fireAt   float64
	interval float64
}

// Host compiles one VM per scripted entity and drives its lifecycle
// hooks every frame. All mutations scripts request are collected and
// returned from Update for the caller to apply through the command
// buffer.
type Host struct {
	lg    *zap.Logger
	bus   *events.Bus
	index *spatial.Index
	cfg   Config

	vms    map[scene.EntityID]*VM
	failed map[scene.EntityID]string

	// Frame-scoped, swapped on the frame thread before any hook runs.
	frameState *scene.State
	frameSnap  *input.Snapshot
	frameTime  float64
	frameDelta float64
	frameCount uint64

	timerMu   sync.Mutex
	timers    map[uint64]*timerEntry
	nextTimer uint64

	// Mutations drained from VMs torn down mid-frame, flushed with the
	// next Update's batch.
	orphanMuts []scene.Command

	emptySnap input.Snapshot
}

func NewHost(lg *zap.Logger, bus *events.Bus, index *spatial.Index, cfg Config) *Host {
	if cfg.Loader == nil {
		cfg.Loader = os.ReadFile
	}
	if cfg.Budget <= 0 {
		cfg.Budget = defaultBudget
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = runtime.NumCPU()
	}
	return &Host{
		lg:     lg,
		bus:    bus,
		index:  index,
		cfg:    cfg,
		vms:    map[scene.EntityID]*VM{},
		failed: map[scene.EntityID]string{},
		timers: map[uint64]*timerEntry{},
	}
}

func (h *Host) state() *scene.State {
	return h.frameState
}

func (h *Host) snap() *input.Snapshot {
	if h.frameSnap == nil {
		return &h.emptySnap
	}
	return h.frameSnap
}

func (h *Host) raycastFirst(origin, dir component.Vec3, maxDist float64) (spatial.Hit, bool) {
	if h.index == nil {
		return spatial.Hit{}, false
	}
	return h.index.RaycastFirst(origin, dir, maxDist)
}

func (h *Host) raycastAll(origin, dir component.Vec3, maxDist float64) []spatial.Hit {
	if h.index == nil {
		return nil
	}
	return h.index.RaycastAll(origin, dir, maxDist)
}

func (h *Host) scheduleTimer(vm *VM, delay float64, fn tengo.Object, repeat bool) uint64 {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	h.nextTimer++
	t := &timerEntry{
		id:     h.nextTimer,
		vm:     vm,
		fn:     fn,
		fireAt: h.frameTime + math.Max(delay, 0),
	}
	if repeat {
		t.interval = math.Max(delay, 0)
	}
	h.timers[t.id] = t
	return t.id
}

func (h *Host) cancelTimer(id uint64) bool {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if _, ok := h.timers[id]; !ok {
		return false
	}
	delete(h.timers, id)
	return true
}

// Update runs one script frame: reconcile VMs against the scene, fire
// due timers, dispatch lifecycle hooks, and return the mutations the
// scripts queued, ordered by entity id so application is deterministic.
func (h *Host) Update(st *scene.State, snap *input.Snapshot, now, dt float64) []scene.Command {
	h.frameState = st
	h.frameSnap = snap
	h.frameTime = now
	h.frameDelta = dt
	h.frameCount++

	h.reconcile(st)
	h.fireTimers()

	ids := h.sortedVMs()
	timeObj := &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"time":       &tengo.Float{Value: now},
		"deltaTime":  &tengo.Float{Value: dt},
		"frameCount": &tengo.Int{Value: int64(h.frameCount)},
	}}

	var active []*VM
	for _, id := range ids {
		vm := h.vms[id]
		enabled := h.scriptEnabled(st, id)
		switch {
		case enabled && !vm.started:
			vm.started = true
			vm.wasEnabled = true
			h.logHookErr(vm.callHook("onStart", dt))
		case enabled && !vm.wasEnabled:
			vm.wasEnabled = true
			h.logHookErr(vm.callHook("onEnable", dt))
		case !enabled && vm.wasEnabled:
			vm.wasEnabled = false
			h.logHookErr(vm.callHook("onDisable", dt))
		}
		if !enabled {
			continue
		}
		if err := vm.setGlobal("time", timeObj); err != nil {
			h.lg.Error("set time global", zap.Uint64("entity", uint64(id)), zap.Error(err))
			continue
		}
		active = append(active, vm)
	}

	var g errgroup.Group
	g.SetLimit(h.cfg.Parallel)
	for _, vm := range active {
		vm := vm
		g.Go(func() error {
			h.logHookErr(vm.callHook("onUpdate", dt))
			return nil
		})
	}
	_ = g.Wait()

	return h.flush(ids)
}

// Destroy tears down every VM, running onDestroy hooks. Returned
// commands carry any final mutations the hooks queued.
func (h *Host) Destroy() []scene.Command {
	ids := h.sortedVMs()
	for _, id := range ids {
		h.dropVM(id)
	}
	return h.flushOrphans()
}

func (h *Host) Len() int { return len(h.vms) }

func (h *Host) reconcile(st *scene.State) {
	for id, vm := range h.vms {
		e, ok := st.Entity(id)
		if !ok || !e.HasComponent(component.KindScript) {
			h.dropVM(id)
			continue
		}
		if sc, ok := e.Component(component.KindScript).(component.Script); ok && sc.ScriptPath != vm.path {
			h.dropVM(id)
		}
	}
	for id := range h.failed {
		if _, ok := st.Entity(id); !ok {
			delete(h.failed, id)
		}
	}

	for _, id := range st.Entities() {
		e, _ := st.Entity(id)
		sc, ok := e.Component(component.KindScript).(component.Script)
		if !ok {
			continue
		}
		if _, exists := h.vms[id]; exists {
			continue
		}
		if h.failed[id] == sc.ScriptPath {
			continue
		}
		delete(h.failed, id)
		h.spawnVM(id, sc)
	}
}

func (h *Host) spawnVM(id scene.EntityID, sc component.Script) {
	source, err := h.cfg.Loader(sc.ScriptPath)
	if err != nil {
		h.lg.Error("load script",
			zap.Uint64("entity", uint64(id)),
			zap.String("script", sc.ScriptPath),
			zap.Error(err))
		h.failed[id] = sc.ScriptPath
		return
	}

	vm := &VM{entity: id, path: sc.ScriptPath}
	globals := h.buildGlobals(vm, sc.Parameters)
	if err := vm.compile(source, h.cfg.Budget, globals); err != nil {
		h.lg.Error("compile script",
			zap.Uint64("entity", uint64(id)),
			zap.String("script", sc.ScriptPath),
			zap.Error(err))
		h.failed[id] = sc.ScriptPath
		return
	}
	h.vms[id] = vm
}

func (h *Host) dropVM(id scene.EntityID) {
	vm, ok := h.vms[id]
	if !ok {
		return
	}
	if vm.started {
		h.logHookErr(vm.callHook("onDestroy", 0))
	}
	h.orphanMuts = append(h.orphanMuts, vm.muts.drain()...)
	delete(h.vms, id)
	h.bus.DropOwner(id)

	h.timerMu.Lock()
	for tid, t := range h.timers {
		if t.vm == vm {
			delete(h.timers, tid)
		}
	}
	h.timerMu.Unlock()
}

func (h *Host) fireTimers() {
	h.timerMu.Lock()
	var due []*timerEntry
	for _, t := range h.timers {
		if t.fireAt <= h.frameTime {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if t.interval > 0 {
			t.fireAt = h.frameTime + t.interval
		} else {
			delete(h.timers, t.id)
		}
	}
	h.timerMu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })
	for _, t := range due {
		h.logHookErr(t.vm.callback(t.fn, nil))
	}
}

func (h *Host) scriptEnabled(st *scene.State, id scene.EntityID) bool {
	e, ok := st.Entity(id)
	if !ok || !e.Active {
		return false
	}
	sc, ok := e.Component(component.KindScript).(component.Script)
	return ok && sc.Enabled
}

func (h *Host) sortedVMs() []scene.EntityID {
	ids := make([]scene.EntityID, 0, len(h.vms))
	for id := range h.vms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *Host) flush(ids []scene.EntityID) []scene.Command {
	out := h.flushOrphans()
	for _, id := range ids {
		if vm, ok := h.vms[id]; ok {
			out = append(out, vm.muts.drain()...)
		}
	}
	return out
}

func (h *Host) flushOrphans() []scene.Command {
	out := h.orphanMuts
	h.orphanMuts = nil
	return out
}

func (h *Host) logHookErr(err error) {
	if err == nil {
		return
	}
	h.lg.Error("script hook", zap.Error(err))
}
