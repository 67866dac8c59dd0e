// Package prefab loads reusable entity subtrees and instantiates them
// into a running scene through the command buffer.
package prefab

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// Prefab is one reusable subtree. The first entity is the root; child
// entities reference parents by the persistent ids local to the prefab.
type Prefab struct {
	ID       string
	Name     string
	Version  int
	Entities []Entity
}

type Entity struct {
	PersistentID string
	Name         string
	Parent       string
	Tags         []string
	Components   map[string]json.RawMessage
}

// prefabDoc is the YAML author format.
type prefabDoc struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Version  int         `yaml:"version"`
	Entities []entityDoc `yaml:"entities"`
}

type entityDoc struct {
	PersistentID string         `yaml:"persistentId"`
	Name         string         `yaml:"name"`
	Parent       string         `yaml:"parent"`
	Tags         []string       `yaml:"tags"`
	Components   map[string]any `yaml:"components"`
}

// Parse reads the YAML prefab format. Component bodies re-marshal to
// JSON so they flow through the same decoders as scene documents.
func Parse(data []byte) (*Prefab, error) {
	var doc prefabDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing prefab: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("prefab missing id")
	}
	if doc.Version == 0 {
		doc.Version = 1
	}

	p := &Prefab{ID: doc.ID, Name: doc.Name, Version: doc.Version}
	for _, ed := range doc.Entities {
		e := Entity{
			PersistentID: ed.PersistentID,
			Name:         ed.Name,
			Parent:       ed.Parent,
			Tags:         ed.Tags,
			Components:   map[string]json.RawMessage{},
		}
		if e.PersistentID == "" {
			return nil, fmt.Errorf("prefab %q: entity missing persistentId", doc.ID)
		}
		for kind, body := range ed.Components {
			raw, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("prefab %q: component %s: %w", doc.ID, kind, err)
			}
			e.Components[kind] = raw
		}
		p.Entities = append(p.Entities, e)
	}
	if len(p.Entities) == 0 {
		return nil, fmt.Errorf("prefab %q has no entities", doc.ID)
	}
	return p, nil
}

func LoadFile(path string) (*Prefab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prefab %s: %w", path, err)
	}
	return Parse(data)
}

type Registry struct {
	mu      sync.RWMutex
	prefabs map[string]*Prefab
	lg      *zap.Logger
}

func NewRegistry(lg *zap.Logger) *Registry {
	return &Registry{prefabs: map[string]*Prefab{}, lg: lg}
}

func (r *Registry) Register(p *Prefab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefabs[p.ID] = p
}

func (r *Registry) Get(id string) (*Prefab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefabs[id]
	return p, ok
}

// Instantiate produces the create commands for one instance. Each
// instance gets a fresh instance uuid; instanced entities get
// persistent ids namespaced by it so repeated instantiation never
// collides. The override patch merges over the root entity's
// components, recursive, last writer wins.
func (r *Registry) Instantiate(prefabID string, override map[string]json.RawMessage, parent scene.EntityID) ([]scene.Command, error) {
	p, ok := r.Get(prefabID)
	if !ok {
		return nil, fmt.Errorf("prefab %q not registered", prefabID)
	}

	instanceUUID := uuid.NewString()
	pidFor := func(local string) string {
		return instanceUUID + ":" + local
	}

	var cmds []scene.Command
	for i, e := range p.Entities {
		components := e.Components
		if i == 0 && len(override) > 0 {
			components = mergeComponents(e.Components, override)
		}

		var inits []scene.ComponentInit
		for kind, raw := range components {
			inits = append(inits, scene.ComponentInit{Kind: kind, Data: raw})
		}
		if i == 0 {
			marker, err := json.Marshal(component.PrefabInstance{
				PrefabID:      p.ID,
				Version:       p.Version,
				InstanceUUID:  instanceUUID,
				OverridePatch: override,
			})
			if err != nil {
				return nil, err
			}
			inits = append(inits, scene.ComponentInit{Kind: component.KindPrefabInstance, Data: marker})
		}

		parentID := parent
		if e.Parent != "" {
			// Hash-derived ids let children reference parents created
			// earlier in this same batch.
			parentID = scene.HashPersistentID(pidFor(e.Parent))
		}
		cmds = append(cmds, scene.CreateEntity{
			PersistentID: pidFor(e.PersistentID),
			Name:         e.Name,
			Parent:       parentID,
			Tags:         e.Tags,
			Components:   inits,
		})
	}
	return cmds, nil
}

// mergeComponents applies the per-kind override patch.
func mergeComponents(base, override map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(base))
	for kind, raw := range base {
		out[kind] = raw
	}
	for kind, patch := range override {
		if prev, ok := out[kind]; ok {
			out[kind] = MergeJSON(prev, patch)
		} else {
			out[kind] = patch
		}
	}
	return out
}

// MergeJSON merges patch over base. Objects merge key by key,
// recursively; any other value pair resolves to the patch.
func MergeJSON(base, patch json.RawMessage) json.RawMessage {
	var baseObj, patchObj map[string]json.RawMessage
	if json.Unmarshal(base, &baseObj) != nil || json.Unmarshal(patch, &patchObj) != nil {
		return patch
	}
	for k, v := range patchObj {
		if prev, ok := baseObj[k]; ok {
			baseObj[k] = MergeJSON(prev, v)
		} else {
			baseObj[k] = v
		}
	}
	merged, err := json.Marshal(baseObj)
	if err != nil {
		return patch
	}
	return merged
}
