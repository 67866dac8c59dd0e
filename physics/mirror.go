// Package physics mirrors rigid-body entities into a chipmunk space.
// The scene stays authoritative for kinematic and fixed bodies; dynamic
// bodies write their transforms back through the command buffer after
// each step.
package physics

import (
	"encoding/json"
	"math"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

const bodyCollisionType cp.CollisionType = 1

// Gravity applied to the simulation plane. Bodies move in X/Y; the
// scene's Z coordinate passes through the mirror untouched.
var DefaultGravity = cp.Vector{X: 0, Y: -9.81}

type bodyEntry struct {
	body     *cp.Body
	shape    *cp.Shape
	btype    component.BodyType
	z        float64
	collider component.MeshCollider
}

type Mirror struct {
	space         *cp.Space
	bodies        map[scene.EntityID]*bodyEntry
	shapeToEntity map[*cp.Shape]scene.EntityID
	bus           *events.Bus
	lg            *zap.Logger
}

func NewMirror(bus *events.Bus, lg *zap.Logger) *Mirror {
	space := cp.NewSpace()
	space.SetGravity(DefaultGravity)

	m := &Mirror{
		space:         space,
		bodies:        map[scene.EntityID]*bodyEntry{},
		shapeToEntity: map[*cp.Shape]scene.EntityID{},
		bus:           bus,
		lg:            lg,
	}

	handler := space.NewCollisionHandler(bodyCollisionType, bodyCollisionType)
	handler.BeginFunc = m.onCollisionBegin
	return m
}

func (m *Mirror) SetGravity(x, y float64) {
	m.space.SetGravity(cp.Vector{X: x, Y: y})
}

func (m *Mirror) BodyCount() int { return len(m.bodies) }

// Sync reconciles the space against the scene using this frame's
// change feed. Destroyed entities lose their bodies; rigid-body or
// collider edits rebuild; transform edits push positions in.
func (m *Mirror) Sync(st *scene.State, changes []scene.Change) {
	for _, ch := range changes {
		switch ch.Kind {
		case scene.ChangeEntityDestroyed:
			m.removeBody(ch.Entity)

		case scene.ChangeEntityCreated, scene.ChangeComponentSet:
			if ch.Kind == scene.ChangeComponentSet &&
				ch.Component != component.KindRigidBody &&
				ch.Component != component.KindMeshCollider &&
				ch.Component != component.KindTransform {
				continue
			}
			e, ok := st.Entity(ch.Entity)
			if !ok {
				continue
			}
			m.reconcile(e, ch.Component == component.KindTransform)

		case scene.ChangeComponentRemoved:
			if ch.Component == component.KindRigidBody {
				m.removeBody(ch.Entity)
			}
		}
	}
}

// reconcile builds, rebuilds, or repositions the entity's body.
func (m *Mirror) reconcile(e *scene.Entity, transformOnly bool) {
	rb, hasBody := e.Component(component.KindRigidBody).(component.RigidBody)
	if !hasBody || !rb.Enabled {
		m.removeBody(e.ID)
		return
	}
	tr, _ := e.Component(component.KindTransform).(component.Transform)
	collider, _ := e.Component(component.KindMeshCollider).(component.MeshCollider)

	entry, exists := m.bodies[e.ID]
	if exists && transformOnly && entry.btype == rb.BodyType() {
		entry.body.SetPosition(cp.Vector{X: tr.Position.X, Y: tr.Position.Y})
		entry.body.SetAngle(tr.Rotation.YawDegrees() * math.Pi / 180)
		entry.z = tr.Position.Z
		if rb.BodyType() == component.BodyDynamic {
			// A pushed transform overrides accumulated velocity.
			entry.body.SetVelocityVector(cp.Vector{})
		}
		return
	}
	if exists {
		m.removeBody(e.ID)
	}
	m.addBody(e.ID, rb, collider, tr)
}

func (m *Mirror) addBody(id scene.EntityID, rb component.RigidBody, collider component.MeshCollider, tr component.Transform) {
	var body *cp.Body
	switch rb.BodyType() {
	case component.BodyKinematic:
		body = cp.NewKinematicBody()
	case component.BodyFixed:
		body = cp.NewStaticBody()
	default:
		mass := rb.Mass
		if mass <= 0 {
			mass = 1
		}
		body = cp.NewBody(mass, cp.MomentForBox(mass, collider.SizeX, collider.SizeY))
	}
	body.SetPosition(cp.Vector{X: tr.Position.X, Y: tr.Position.Y})
	m.space.AddBody(body)

	shape := m.buildShape(body, collider)
	shape.SetCollisionType(bodyCollisionType)
	shape.SetFriction(collider.Friction)
	shape.SetElasticity(collider.Bounce)
	if collider.IsTrigger {
		shape.SetSensor(true)
	}
	m.space.AddShape(shape)

	m.bodies[id] = &bodyEntry{
		body:     body,
		shape:    shape,
		btype:    rb.BodyType(),
		z:        tr.Position.Z,
		collider: collider,
	}
	m.shapeToEntity[shape] = id
}

// buildShape maps 3D collider shapes onto the plane. Convex, mesh, and
// heightfield colliders fall back to their bounding box.
func (m *Mirror) buildShape(body *cp.Body, collider component.MeshCollider) *cp.Shape {
	switch collider.Shape {
	case "sphere":
		return cp.NewCircle(body, collider.Radius, cp.Vector{})
	case "capsule":
		half := collider.Height / 2
		return cp.NewSegment(body, cp.Vector{Y: -half}, cp.Vector{Y: half}, collider.Radius)
	case "box":
		return cp.NewBox(body, collider.SizeX, collider.SizeY, 0)
	default:
		m.lg.Debug("collider shape approximated by box", zap.String("shape", collider.Shape))
		return cp.NewBox(body, collider.SizeX, collider.SizeY, 0)
	}
}

func (m *Mirror) removeBody(id scene.EntityID) {
	entry, ok := m.bodies[id]
	if !ok {
		return
	}
	delete(m.shapeToEntity, entry.shape)
	m.space.RemoveShape(entry.shape)
	m.space.RemoveBody(entry.body)
	delete(m.bodies, id)
}

// Step advances the simulation and returns readback commands for every
// dynamic body. The frame loop applies them immediately so the rest of
// the frame sees post-step transforms.
func (m *Mirror) Step(st *scene.State, dt float64) []scene.Command {
	m.space.Step(dt)

	var cmds []scene.Command
	for _, id := range st.Entities() {
		entry, ok := m.bodies[id]
		if !ok || entry.btype != component.BodyDynamic {
			continue
		}
		e, ok := st.Entity(id)
		if !ok {
			continue
		}
		tr, _ := e.Component(component.KindTransform).(component.Transform)
		if tr.Scale == (component.Vec3{}) {
			tr = component.DefaultTransform()
		}
		pos := entry.body.Position()
		tr.Position = component.Vec3{X: pos.X, Y: pos.Y, Z: entry.z}

		raw, err := json.Marshal(tr)
		if err != nil {
			m.lg.Error("marshalling readback transform", zap.Error(err))
			continue
		}
		cmds = append(cmds, scene.SetComponent{
			Entity: id,
			Kind:   component.KindTransform,
			Data:   raw,
		})
	}
	return cmds
}

// ApplyImpulse gives scripts a direct line into the dynamic body.
func (m *Mirror) ApplyImpulse(id scene.EntityID, x, y float64) bool {
	entry, ok := m.bodies[id]
	if !ok || entry.btype != component.BodyDynamic {
		return false
	}
	entry.body.ApplyImpulseAtLocalPoint(cp.Vector{X: x, Y: y}, cp.Vector{})
	return true
}

func (m *Mirror) onCollisionBegin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	sa, sb := arb.Shapes()
	a, okA := m.shapeToEntity[sa]
	b, okB := m.shapeToEntity[sb]
	if !okA || !okB {
		return true
	}

	key := events.KeyPhysicsCollision
	if sa.Sensor() || sb.Sensor() {
		key = events.KeyPhysicsTrigger
	}
	// Maps, not structs: script subscribers read the payload through
	// the same any-to-object conversion the other reserved events use.
	payload := map[string]any{"entityA": uint64(a), "entityB": uint64(b)}
	m.bus.Emit(key, payload)
	m.bus.EmitTo(a, key, payload)
	m.bus.EmitTo(b, key, payload)
	return true
}
