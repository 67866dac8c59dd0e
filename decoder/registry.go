package decoder

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
)

// Registry dispatches component decoding by kind. Decoders are
// registered at startup; later registrations for a kind win so hosts
// can shadow the built-ins.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]Decoder
	warned map[string]struct{}
	lg     *zap.Logger
}

func NewRegistry(lg *zap.Logger) *Registry {
	return &Registry{
		byKind: map[string]Decoder{},
		warned: map[string]struct{}{},
		lg:     lg,
	}
}

// NewDefaultRegistry returns a registry covering every built-in
// component kind.
func NewDefaultRegistry(lg *zap.Logger) *Registry {
	r := NewRegistry(lg)

	renders := Capabilities{AffectsRendering: true, Stable: true}
	geom := Capabilities{AffectsRendering: true, RequiresPass: true, Stable: true}
	stable := Capabilities{Stable: true}

	r.Register(newJSONDecoder(lg, stable, component.DefaultTransform, nil, component.KindTransform))
	r.Register(newJSONDecoder(lg, renders, component.DefaultMeshRenderer, nil, component.KindMeshRenderer))
	r.Register(newJSONDecoder(lg, renders, component.DefaultMaterial, nil, component.KindMaterial))
	r.Register(newJSONDecoder(lg, renders, component.DefaultLight, nil, component.KindLight))
	r.Register(newJSONDecoder(lg, renders, component.DefaultCamera, nil, component.KindCamera))
	r.Register(newJSONDecoder(lg, stable, component.DefaultRigidBody, nil, component.KindRigidBody))
	r.Register(newJSONDecoder(lg, stable, component.DefaultMeshCollider, nil, component.KindMeshCollider))
	r.Register(newJSONDecoder(lg, geom, component.DefaultGeometryAsset, []string{"path"}, component.KindGeometryAsset))
	r.Register(newJSONDecoder(lg, geom, component.DefaultCustomShape, nil, component.KindCustomShape))
	r.Register(newJSONDecoder(lg, geom, component.DefaultTerrain, nil, component.KindTerrain))
	r.Register(newJSONDecoder(lg, stable, component.DefaultPrefabInstance, []string{"prefabId"}, component.KindPrefabInstance))
	r.Register(newJSONDecoder(lg, renders, component.DefaultLOD, []string{"originalPath"}, component.KindLOD, component.KindLODAlias))
	r.Register(newJSONDecoder(lg, stable, component.DefaultScript, []string{"scriptPath"}, component.KindScript))
	r.Register(newJSONDecoder(lg, stable, component.DefaultSound, []string{"soundPath"}, component.KindSound))
	r.Register(newJSONDecoder(lg, renders, component.DefaultInstanced, nil, component.KindInstanced))

	return r
}

func (r *Registry) Register(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range d.Kinds() {
		r.byKind[kind] = d
	}
}

func (r *Registry) CanDecode(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKind[kind]
	return ok
}

// Decode materializes the raw value for kind. An unregistered kind
// returns UnknownKindError and is logged once per kind.
func (r *Registry) Decode(kind string, raw json.RawMessage) (any, error) {
	r.mu.RLock()
	d, ok := r.byKind[kind]
	r.mu.RUnlock()
	if !ok {
		r.warnUnknownKind(kind)
		return nil, &UnknownKindError{Kind: kind}
	}
	return d.Decode(kind, raw)
}

// Capabilities reports the capabilities for kind, false if unregistered.
func (r *Registry) Capabilities(kind string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKind[kind]
	if !ok {
		return Capabilities{}, false
	}
	return d.Capabilities(), true
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		out = append(out, kind)
	}
	return out
}

func (r *Registry) warnUnknownKind(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.warned[kind]; seen {
		return
	}
	r.warned[kind] = struct{}{}
	r.lg.Warn("unknown component kind", zap.String("kind", kind))
}
