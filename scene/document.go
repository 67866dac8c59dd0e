package scene

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Document is the on-disk scene format produced by the authoring tool.
type Document struct {
	Name            string                     `json:"name"`
	Version         uint32                     `json:"version"`
	Entities        []DocumentEntity           `json:"entities"`
	Materials       map[string]json.RawMessage `json:"materials,omitempty"`
	Meshes          map[string]json.RawMessage `json:"meshes,omitempty"`
	Metadata        map[string]json.RawMessage `json:"metadata,omitempty"`
	InputAssets     []InputAsset               `json:"inputAssets,omitempty"`
	LockedEntityIDs []string                   `json:"lockedEntityIds,omitempty"`
}

type DocumentEntity struct {
	ID                 *uint64                    `json:"id,omitempty"`
	PersistentID       string                     `json:"persistentId,omitempty"`
	Name               string                     `json:"name,omitempty"`
	ParentPersistentID string                     `json:"parentPersistentId,omitempty"`
	Tags               []string                   `json:"tags,omitempty"`
	Components         map[string]json.RawMessage `json:"components,omitempty"`
}

// InputAsset binds named actions to device inputs. The input snapshot
// answers action queries against the enabled maps.
type InputAsset struct {
	Name       string           `json:"name"`
	ActionMaps []InputActionMap `json:"actionMaps"`
}

type InputActionMap struct {
	Name    string        `json:"name"`
	Enabled bool          `json:"enabled"`
	Actions []InputAction `json:"actions"`
}

type InputAction struct {
	Name     string   `json:"name"`
	Bindings []string `json:"bindings"`
}

func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing scene document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Normalize fills in persistent ids the authoring tool left out so
// every entity is addressable by later diffs.
func (d *Document) Normalize() {
	for i := range d.Entities {
		if d.Entities[i].PersistentID == "" {
			d.Entities[i].PersistentID = uuid.NewString()
		}
	}
}

// BuildState materializes a parsed document. Components that fail to
// decode are dropped with a log; a parent link that would form a cycle
// is detached with a log. Both leave the rest of the scene intact.
func BuildState(doc *Document, dec ComponentDecoder, lg *zap.Logger) (*State, error) {
	st := NewState()
	st.Name = doc.Name
	st.Version = doc.Version
	st.Materials = cloneRawMap(doc.Materials)
	st.Meshes = cloneRawMap(doc.Meshes)
	st.Metadata = cloneRawMap(doc.Metadata)
	if len(doc.LockedEntityIDs) > 0 {
		st.LockedIDs = make(map[string]struct{}, len(doc.LockedEntityIDs))
		for _, id := range doc.LockedEntityIDs {
			st.LockedIDs[id] = struct{}{}
		}
	}

	// First pass inserts every entity unparented so forward parent
	// references resolve.
	for _, de := range doc.Entities {
		e := &Entity{
			ID:           st.allocID(de.PersistentID),
			PersistentID: de.PersistentID,
			Name:         de.Name,
			Tags:         append([]string(nil), de.Tags...),
			Active:       true,
			Components:   map[string]*ComponentSlot{},
		}
		for kind, raw := range de.Components {
			value, err := dec.Decode(kind, raw)
			if err != nil {
				lg.Warn("dropping component on load",
					zap.String("kind", kind),
					zap.String("entity", de.PersistentID),
					zap.Error(err))
				continue
			}
			e.Components[kind] = &ComponentSlot{Raw: raw, Value: value}
		}
		if err := st.insert(e); err != nil {
			return nil, fmt.Errorf("loading entity %q: %w", de.PersistentID, err)
		}
	}

	// Second pass wires the parent forest.
	for _, de := range doc.Entities {
		if de.ParentPersistentID == "" {
			continue
		}
		child, _ := st.ByPersistentID(de.PersistentID)
		parent, ok := st.ByPersistentID(de.ParentPersistentID)
		if !ok {
			lg.Warn("dangling parent reference",
				zap.String("entity", de.PersistentID),
				zap.String("parent", de.ParentPersistentID))
			continue
		}
		if err := st.setParent(child.ID, parent.ID); err != nil {
			lg.Warn("detaching entity from invalid parent",
				zap.String("entity", de.PersistentID),
				zap.Error(err))
		}
	}

	return st, nil
}
