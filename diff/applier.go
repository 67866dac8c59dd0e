package diff

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// Applier applies editor diff batches transactionally. Each batch is
// applied against a clone of the state; the clone only replaces the
// original when every diff succeeded.
type Applier struct {
	dec     scene.ComponentDecoder
	lg      *zap.Logger
	lastSeq uint64
}

func NewApplier(dec scene.ComponentDecoder, lg *zap.Logger) *Applier {
	return &Applier{dec: dec, lg: lg}
}

// Reset rewinds the expected sequence after a full-scene resync.
func (a *Applier) Reset(lastSeq uint64) {
	a.lastSeq = lastSeq
}

// Apply returns the post-batch state and a change feed. On failure the
// returned state is the untouched input and the error is a
// SequenceError or BatchError.
func (a *Applier) Apply(st *scene.State, batch Batch) (*scene.State, []scene.Change, error) {
	if batch.Sequence != a.lastSeq+1 {
		return st, nil, &SequenceError{Expected: a.lastSeq + 1, Got: batch.Sequence}
	}

	work := st.Clone()
	var changes []scene.Change
	for i, d := range batch.Diffs {
		cs, err := a.applyDiff(work, d)
		if err != nil {
			return st, nil, &BatchError{Sequence: batch.Sequence, Index: i, Err: err}
		}
		changes = append(changes, cs...)
	}

	a.lastSeq = batch.Sequence
	return work, changes, nil
}

func (a *Applier) applyDiff(st *scene.State, d Diff) ([]scene.Change, error) {
	switch d.Type {
	case TypeAddEntity:
		return a.addEntity(st, d)
	case TypeRemoveEntity:
		return a.removeEntity(st, d)
	case TypeUpdateEntity:
		return a.updateEntity(st, d)
	case TypeSetComponent:
		return a.setComponent(st, d)
	case TypeRemoveComponent:
		return a.removeComponent(st, d)
	default:
		return nil, fmt.Errorf("unknown diff type %q", d.Type)
	}
}

func (a *Applier) addEntity(st *scene.State, d Diff) ([]scene.Change, error) {
	if d.EntityPersistentID == "" {
		return nil, errors.New("AddEntity requires entity_persistent_id")
	}
	if _, exists := st.ByPersistentID(d.EntityPersistentID); exists {
		return nil, fmt.Errorf("entity %q already exists", d.EntityPersistentID)
	}

	var parent scene.EntityID
	if d.ParentPersistentID != nil && *d.ParentPersistentID != "" {
		pe, ok := st.ByPersistentID(*d.ParentPersistentID)
		if !ok {
			return nil, fmt.Errorf("parent %q does not exist", *d.ParentPersistentID)
		}
		parent = pe.ID
	}

	// Validate components up front so a malformed one fails the batch
	// instead of being silently dropped by the create path.
	var inits []scene.ComponentInit
	for kind, raw := range d.Components {
		if !a.dec.CanDecode(kind) {
			a.lg.Warn("skipping unknown component kind in diff", zap.String("kind", kind))
			continue
		}
		if _, err := a.dec.Decode(kind, raw); err != nil {
			return nil, err
		}
		inits = append(inits, scene.ComponentInit{Kind: kind, Data: raw})
	}

	name := ""
	if d.Name != nil {
		name = *d.Name
	}
	cmd := scene.CreateEntity{
		PersistentID: d.EntityPersistentID,
		Name:         name,
		Parent:       parent,
		Tags:         d.Tags,
		Components:   inits,
	}
	changes := scene.ApplyCommands(st, a.dec, a.lg, []scene.Command{cmd})
	if len(changes) == 0 {
		return nil, fmt.Errorf("creating entity %q failed", d.EntityPersistentID)
	}
	return changes, nil
}

func (a *Applier) removeEntity(st *scene.State, d Diff) ([]scene.Change, error) {
	e, ok := st.ByPersistentID(d.EntityPersistentID)
	if !ok {
		return nil, fmt.Errorf("entity %q does not exist", d.EntityPersistentID)
	}
	changes := scene.ApplyCommands(st, a.dec, a.lg, []scene.Command{scene.DestroyEntity{Entity: e.ID}})
	return changes, nil
}

func (a *Applier) updateEntity(st *scene.State, d Diff) ([]scene.Change, error) {
	e, ok := st.ByPersistentID(d.EntityPersistentID)
	if !ok {
		return nil, fmt.Errorf("entity %q does not exist", d.EntityPersistentID)
	}

	var changes []scene.Change
	if d.Name != nil {
		e.Name = *d.Name
	}
	if d.ParentPersistentID != nil {
		parent := scene.NoEntity
		if *d.ParentPersistentID != "" {
			pe, ok := st.ByPersistentID(*d.ParentPersistentID)
			if !ok {
				return nil, fmt.Errorf("parent %q does not exist", *d.ParentPersistentID)
			}
			parent = pe.ID
		}
		cs := scene.ApplyCommands(st, a.dec, a.lg, []scene.Command{scene.SetParent{Entity: e.ID, Parent: parent}})
		if len(cs) == 0 && e.Parent != parent {
			return nil, fmt.Errorf("reparenting %q under %q rejected", d.EntityPersistentID, *d.ParentPersistentID)
		}
		changes = append(changes, cs...)
	}
	return changes, nil
}

func (a *Applier) setComponent(st *scene.State, d Diff) ([]scene.Change, error) {
	if d.Component == nil {
		return nil, errors.New("SetComponent requires a component payload")
	}
	e, ok := st.ByPersistentID(d.EntityPersistentID)
	if !ok {
		return nil, fmt.Errorf("entity %q does not exist", d.EntityPersistentID)
	}
	kind := d.Component.Type
	if !a.dec.CanDecode(kind) {
		a.lg.Warn("skipping unknown component kind in diff", zap.String("kind", kind))
		return nil, nil
	}
	value, err := a.dec.Decode(kind, d.Component.Data)
	if err != nil {
		return nil, err
	}
	ent, _ := st.Entity(e.ID)
	ent.Components[kind] = &scene.ComponentSlot{Raw: d.Component.Data, Value: value}
	return []scene.Change{{Kind: scene.ChangeComponentSet, Entity: e.ID, Component: kind}}, nil
}

func (a *Applier) removeComponent(st *scene.State, d Diff) ([]scene.Change, error) {
	e, ok := st.ByPersistentID(d.EntityPersistentID)
	if !ok {
		return nil, fmt.Errorf("entity %q does not exist", d.EntityPersistentID)
	}
	if !e.HasComponent(d.ComponentType) {
		return nil, nil
	}
	delete(e.Components, d.ComponentType)
	return []scene.Change{{Kind: scene.ChangeComponentRemoved, Entity: e.ID, Component: d.ComponentType}}, nil
}
