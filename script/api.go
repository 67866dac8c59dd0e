package script

import (
	"encoding/json"
	"math"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
	"github.com/jonit-dev/vibe-coder-3d-sub003/spatial"
)

// buildGlobals assembles the capability surface for one VM. The
// closures read frame-scoped data (scene, input) through the host,
// which swaps it on the frame thread before any script runs.
func (h *Host) buildGlobals(vm *VM, params map[string]any) map[string]any {
	return map[string]any{
		"console": h.buildConsole(vm),
		"math":    buildMath(),
		"input":   h.buildInput(),
		"entity":  h.buildEntity(vm),
		"events":  h.buildEvents(vm),
		"query":   h.buildQuery(),
		"timer":   h.buildTimer(vm),
		"params":  paramsObject(params),
		"time":    &tengo.ImmutableMap{Value: map[string]tengo.Object{}},
	}
}

func paramsObject(params map[string]any) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}
	for k, v := range params {
		values[k] = anyToObject(v)
	}
	return &tengo.ImmutableMap{Value: values}
}

func (h *Host) buildConsole(vm *VM) *tengo.ImmutableMap {
	lg := h.lg.With(
		zap.Uint64("entity", uint64(vm.entity)),
		zap.String("script", vm.path),
	)
	logFn := func(sink func(string, ...zap.Field)) *tengo.UserFunction {
		return &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			msg := ""
			for i, arg := range args {
				if i > 0 {
					msg += " "
				}
				msg += objectAsString(arg)
			}
			sink(msg)
			return tengo.UndefinedValue, nil
		}}
	}
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"log":   logFn(lg.Info),
		"warn":  logFn(lg.Warn),
		"error": logFn(lg.Error),
	}}
}

func buildMath() *tengo.ImmutableMap {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"clamp": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			v := objectAsFloat(args[0])
			lo := objectAsFloat(args[1])
			hi := objectAsFloat(args[2])
			return &tengo.Float{Value: math.Min(math.Max(v, lo), hi)}, nil
		}},
		"lerp": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			a := objectAsFloat(args[0])
			b := objectAsFloat(args[1])
			t := objectAsFloat(args[2])
			return &tengo.Float{Value: a + (b-a)*t}, nil
		}},
		"radToDeg": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			return &tengo.Float{Value: objectAsFloat(args[0]) * 180 / math.Pi}, nil
		}},
		"degToRad": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			return &tengo.Float{Value: objectAsFloat(args[0]) * math.Pi / 180}, nil
		}},
		"distance": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			a, okA := vec3FromObject(args, 0)
			b, okB := vec3FromObject(args, 1)
			if !okA || !okB {
				return nil, tengo.ErrInvalidArgumentType{Name: "point", Expected: "array of 3 numbers"}
			}
			return &tengo.Float{Value: a.Sub(b).Length()}, nil
		}},
	}}
}

func (h *Host) buildInput() *tengo.ImmutableMap {
	keyQuery := func(test func(string) bool) *tengo.UserFunction {
		return &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			return boolObject(test(objectAsString(args[0]))), nil
		}}
	}
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"isKeyDown":        keyQuery(func(k string) bool { return h.snap().IsKeyDown(k) }),
		"isKeyPressed":     keyQuery(func(k string) bool { return h.snap().IsKeyPressed(k) }),
		"isKeyReleased":    keyQuery(func(k string) bool { return h.snap().IsKeyReleased(k) }),
		"isActionDown":     keyQuery(func(k string) bool { return h.snap().IsActionDown(k) }),
		"isActionPressed":  keyQuery(func(k string) bool { return h.snap().IsActionPressed(k) }),
		"isActionReleased": keyQuery(func(k string) bool { return h.snap().IsActionReleased(k) }),
		"mousePosition": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			p := h.snap().MousePos
			return floatArray(p[0], p[1]), nil
		}},
		"mouseDelta": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			d := h.snap().MouseDelta
			return floatArray(d[0], d[1]), nil
		}},
		"mouseWheel": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			return &tengo.Float{Value: h.snap().MouseWheel}, nil
		}},
		"pointerLock": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			return boolObject(h.snap().PointerLock), nil
		}},
	}}
}

func (h *Host) buildEntity(vm *VM) *tengo.ImmutableMap {
	self := func() (*scene.Entity, bool) {
		return h.state().Entity(vm.entity)
	}
	transform := func() component.Transform {
		e, ok := self()
		if !ok {
			return component.DefaultTransform()
		}
		if tr, ok := e.Component(component.KindTransform).(component.Transform); ok {
			return tr
		}
		return component.DefaultTransform()
	}
	queueTransform := func(tr component.Transform) {
		raw, err := json.Marshal(tr)
		if err != nil {
			return
		}
		vm.muts.enqueue(scene.SetComponent{Entity: vm.entity, Kind: component.KindTransform, Data: raw})
	}

	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"id": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			return &tengo.Int{Value: int64(vm.entity)}, nil
		}},
		"name": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			if e, ok := self(); ok {
				return &tengo.String{Value: e.Name}, nil
			}
			return tengo.UndefinedValue, nil
		}},
		"getPosition": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			p := transform().Position
			return floatArray(p.X, p.Y, p.Z), nil
		}},
		"setPosition": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			p, ok := vec3FromObject(args, 0)
			if !ok {
				return tengo.FalseValue, nil
			}
			tr := transform()
			tr.Position = p
			queueTransform(tr)
			return tengo.TrueValue, nil
		}},
		"translate": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			d, ok := vec3FromObject(args, 0)
			if !ok {
				return tengo.FalseValue, nil
			}
			tr := transform()
			tr.Position = tr.Position.Add(d)
			queueTransform(tr)
			return tengo.TrueValue, nil
		}},
		"getRotation": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			r := transform().Rotation
			return floatArray(r.X, r.Y, r.Z, r.W), nil
		}},
		"setRotation": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			arr, ok := args[0].(*tengo.Array)
			if !ok {
				return tengo.FalseValue, nil
			}
			tr := transform()
			switch len(arr.Value) {
			case 3:
				tr.Rotation = component.QuatFromEulerDegrees(
					objectAsFloat(arr.Value[0]),
					objectAsFloat(arr.Value[1]),
					objectAsFloat(arr.Value[2]),
				)
			case 4:
				tr.Rotation = component.Quat{
					X: objectAsFloat(arr.Value[0]),
					Y: objectAsFloat(arr.Value[1]),
					Z: objectAsFloat(arr.Value[2]),
					W: objectAsFloat(arr.Value[3]),
				}
			default:
				return tengo.FalseValue, nil
			}
			queueTransform(tr)
			return tengo.TrueValue, nil
		}},
		"getScale": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			s := transform().Scale
			return floatArray(s.X, s.Y, s.Z), nil
		}},
		"setScale": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			s, ok := vec3FromObject(args, 0)
			if !ok {
				return tengo.FalseValue, nil
			}
			tr := transform()
			tr.Scale = s
			queueTransform(tr)
			return tengo.TrueValue, nil
		}},
		"getComponent": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.UndefinedValue, nil
			}
			e, ok := self()
			if !ok {
				return tengo.UndefinedValue, nil
			}
			value := e.Component(objectAsString(args[0]))
			if value == nil {
				return tengo.UndefinedValue, nil
			}
			data, err := json.Marshal(value)
			if err != nil {
				return tengo.UndefinedValue, nil
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				return tengo.UndefinedValue, nil
			}
			return anyToObject(m), nil
		}},
		"setComponent": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.FalseValue, nil
			}
			raw, err := json.Marshal(objectToAny(args[1]))
			if err != nil {
				return tengo.FalseValue, nil
			}
			vm.muts.enqueue(scene.SetComponent{
				Entity: vm.entity,
				Kind:   objectAsString(args[0]),
				Data:   raw,
			})
			return tengo.TrueValue, nil
		}},
		"removeComponent": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			vm.muts.enqueue(scene.RemoveComponent{Entity: vm.entity, Kind: objectAsString(args[0])})
			return tengo.TrueValue, nil
		}},
		"setActive": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			vm.muts.enqueue(scene.SetActive{Entity: vm.entity, Active: !args[0].IsFalsy()})
			return tengo.TrueValue, nil
		}},
		"destroy": &tengo.UserFunction{Value: func(...tengo.Object) (tengo.Object, error) {
			vm.muts.enqueue(scene.DestroyEntity{Entity: vm.entity})
			return tengo.TrueValue, nil
		}},
		"spawn": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			var inits []scene.ComponentInit
			if len(args) > 1 {
				comps, ok := objectToAny(args[1]).(map[string]any)
				if !ok {
					return tengo.FalseValue, nil
				}
				for kind, body := range comps {
					raw, err := json.Marshal(body)
					if err != nil {
						continue
					}
					inits = append(inits, scene.ComponentInit{Kind: kind, Data: raw})
				}
			}
			vm.muts.enqueue(scene.CreateEntity{
				Name:       objectAsString(args[0]),
				Parent:     vm.entity,
				Components: inits,
			})
			return tengo.TrueValue, nil
		}},
		"hasTag": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			e, ok := self()
			if !ok {
				return tengo.FalseValue, nil
			}
			return boolObject(e.HasTag(objectAsString(args[0]))), nil
		}},
	}}
}

func (h *Host) buildEvents(vm *VM) *tengo.ImmutableMap {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"subscribe": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.UndefinedValue, nil
			}
			key := objectAsString(args[0])
			cb := args[1]
			id := h.bus.On(vm.entity, key, h.scriptHandler(vm, cb))
			return &tengo.Int{Value: int64(id)}, nil
		}},
		"subscribeTo": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.UndefinedValue, nil
			}
			key := objectAsString(args[0])
			cb := args[1]
			id := h.bus.OnEntity(vm.entity, vm.entity, key, h.scriptHandler(vm, cb))
			return &tengo.Int{Value: int64(id)}, nil
		}},
		"unsubscribe": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			if id, ok := args[0].(*tengo.Int); ok {
				h.bus.Off(events.SubscriberID(id.Value))
				return tengo.TrueValue, nil
			}
			return tengo.FalseValue, nil
		}},
		"emit": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			var payload any
			if len(args) > 1 {
				payload = objectToAny(args[1])
			}
			h.bus.Emit(objectAsString(args[0]), payload)
			return tengo.TrueValue, nil
		}},
		"emitTo": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.FalseValue, nil
			}
			target, ok := args[0].(*tengo.Int)
			if !ok {
				return tengo.FalseValue, nil
			}
			var payload any
			if len(args) > 2 {
				payload = objectToAny(args[2])
			}
			h.bus.EmitTo(scene.EntityID(target.Value), objectAsString(args[1]), payload)
			return tengo.TrueValue, nil
		}},
	}}
}

func (h *Host) buildQuery() *tengo.ImmutableMap {
	hitObject := func(hit spatial.Hit) tengo.Object {
		return &tengo.ImmutableMap{Value: map[string]tengo.Object{
			"entity_id":      &tengo.Int{Value: int64(hit.Entity)},
			"distance":       &tengo.Float{Value: hit.Distance},
			"point":          floatArray(hit.Point.X, hit.Point.Y, hit.Point.Z),
			"barycentric":    floatArray(hit.Barycentric.X, hit.Barycentric.Y),
			"triangle_index": &tengo.Int{Value: int64(hit.TriangleIndex)},
		}}
	}
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"raycastFirst": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			origin, okO := vec3FromObject(args, 0)
			dir, okD := vec3FromObject(args, 1)
			if !okO || !okD {
				return tengo.UndefinedValue, nil
			}
			maxDist := math.Inf(1)
			if len(args) > 2 {
				maxDist = objectAsFloat(args[2])
			}
			hit, ok := h.raycastFirst(origin, dir, maxDist)
			if !ok {
				return tengo.UndefinedValue, nil
			}
			return hitObject(hit), nil
		}},
		"raycastAll": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			origin, okO := vec3FromObject(args, 0)
			dir, okD := vec3FromObject(args, 1)
			if !okO || !okD {
				return &tengo.Array{}, nil
			}
			maxDist := math.Inf(1)
			if len(args) > 2 {
				maxDist = objectAsFloat(args[2])
			}
			hits := h.raycastAll(origin, dir, maxDist)
			out := make([]tengo.Object, 0, len(hits))
			for _, hit := range hits {
				out = append(out, hitObject(hit))
			}
			return &tengo.Array{Value: out}, nil
		}},
	}}
}

func (h *Host) buildTimer(vm *VM) *tengo.ImmutableMap {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"after": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.UndefinedValue, nil
			}
			id := h.scheduleTimer(vm, objectAsFloat(args[0]), args[1], false)
			return &tengo.Int{Value: int64(id)}, nil
		}},
		"every": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 {
				return tengo.UndefinedValue, nil
			}
			id := h.scheduleTimer(vm, objectAsFloat(args[0]), args[1], true)
			return &tengo.Int{Value: int64(id)}, nil
		}},
		"cancel": &tengo.UserFunction{Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return tengo.FalseValue, nil
			}
			if id, ok := args[0].(*tengo.Int); ok {
				return boolObject(h.cancelTimer(uint64(id.Value))), nil
			}
			return tengo.FalseValue, nil
		}},
	}}
}

// scriptHandler bridges a bus delivery into a VM callback. Pumps run
// on the frame thread, so the VM is never re-entered concurrently.
func (h *Host) scriptHandler(vm *VM, cb tengo.Object) events.Handler {
	return func(env events.Envelope) error {
		return vm.callback(cb, anyToObject(env.Payload))
	}
}

func vec3FromObject(args []tengo.Object, idx int) (component.Vec3, bool) {
	if idx >= len(args) {
		return component.Vec3{}, false
	}
	arr, ok := args[idx].(*tengo.Array)
	if !ok || len(arr.Value) < 3 {
		return component.Vec3{}, false
	}
	return component.Vec3{
		X: objectAsFloat(arr.Value[0]),
		Y: objectAsFloat(arr.Value[1]),
		Z: objectAsFloat(arr.Value[2]),
	}, true
}
