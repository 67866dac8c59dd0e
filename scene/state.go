package scene

import (
	"encoding/json"
	"fmt"
)

// State is the authoritative scene. It is owned exclusively by the
// frame loop; scripts and back-end mirrors only ever read it.
type State struct {
	Name      string
	Version   uint32
	Materials map[string]json.RawMessage
	Meshes    map[string]json.RawMessage
	Metadata  map[string]json.RawMessage
	LockedIDs map[string]struct{}

	entities     map[EntityID]*Entity
	order        []EntityID
	byPersistent map[string]EntityID
	children     map[EntityID][]EntityID
	issued       map[EntityID]struct{}
	nextID       EntityID
}

func NewState() *State {
	return &State{
		entities:     map[EntityID]*Entity{},
		byPersistent: map[string]EntityID{},
		children:     map[EntityID][]EntityID{},
		issued:       map[EntityID]struct{}{},
		nextID:       1,
	}
}

func (s *State) Entity(id EntityID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

func (s *State) ByPersistentID(pid string) (*Entity, bool) {
	id, ok := s.byPersistent[pid]
	if !ok {
		return nil, false
	}
	return s.entities[id], true
}

// Entities returns ids in creation order.
func (s *State) Entities() []EntityID {
	return append([]EntityID(nil), s.order...)
}

func (s *State) Len() int { return len(s.entities) }

func (s *State) Children(id EntityID) []EntityID {
	return append([]EntityID(nil), s.children[id]...)
}

// Descendants returns every entity below id, depth-first.
func (s *State) Descendants(id EntityID) []EntityID {
	var out []EntityID
	var walk func(EntityID)
	walk = func(cur EntityID) {
		for _, child := range s.children[cur] {
			out = append(out, child)
			walk(child)
		}
	}
	walk(id)
	return out
}

// allocID reserves a fresh id. Hash-derived ids win when a persistent
// id is present; once an id has been issued it stays dead forever, so
// destroy plus re-add of the same persistent id falls back to the
// counter instead of resurrecting the old id.
func (s *State) allocID(persistentID string) EntityID {
	if persistentID != "" {
		id := HashPersistentID(persistentID)
		if _, used := s.issued[id]; !used {
			return id
		}
	}
	for {
		id := s.nextID
		s.nextID++
		if _, used := s.issued[id]; !used && id != NoEntity {
			return id
		}
	}
}

// Insert adds a fully formed entity. The caller owns id allocation via
// allocID; parent must already exist or be NoEntity.
func (s *State) insert(e *Entity) error {
	if _, dup := s.entities[e.ID]; dup {
		return fmt.Errorf("entity id %d already exists", e.ID)
	}
	if e.PersistentID != "" {
		if _, dup := s.byPersistent[e.PersistentID]; dup {
			return fmt.Errorf("persistent id %q already exists", e.PersistentID)
		}
	}
	if e.Parent != NoEntity {
		if _, ok := s.entities[e.Parent]; !ok {
			return fmt.Errorf("parent %d does not exist", e.Parent)
		}
	}
	s.entities[e.ID] = e
	s.issued[e.ID] = struct{}{}
	s.order = append(s.order, e.ID)
	if e.PersistentID != "" {
		s.byPersistent[e.PersistentID] = e.ID
	}
	if e.Parent != NoEntity {
		s.children[e.Parent] = append(s.children[e.Parent], e.ID)
	}
	return nil
}

// remove deletes id and cascades to its descendants. Returns every id
// removed, parents before children.
func (s *State) remove(id EntityID) []EntityID {
	e, ok := s.entities[id]
	if !ok {
		return nil
	}
	removed := append([]EntityID{id}, s.Descendants(id)...)
	for _, rid := range removed {
		re := s.entities[rid]
		delete(s.entities, rid)
		delete(s.children, rid)
		if re.PersistentID != "" {
			delete(s.byPersistent, re.PersistentID)
		}
	}
	if e.Parent != NoEntity {
		s.children[e.Parent] = removeID(s.children[e.Parent], id)
	}
	s.order = removeIDs(s.order, removed)
	return removed
}

// setParent reparents id under parent (NoEntity detaches). Rejected if
// it would introduce a cycle.
func (s *State) setParent(id, parent EntityID) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %d does not exist", id)
	}
	if parent != NoEntity {
		if _, ok := s.entities[parent]; !ok {
			return fmt.Errorf("parent %d does not exist", parent)
		}
		if s.wouldCycle(id, parent) {
			return fmt.Errorf("reparenting %d under %d would create a cycle", id, parent)
		}
	}
	if e.Parent == parent {
		return nil
	}
	if e.Parent != NoEntity {
		s.children[e.Parent] = removeID(s.children[e.Parent], id)
	}
	e.Parent = parent
	if parent != NoEntity {
		s.children[parent] = append(s.children[parent], id)
	}
	return nil
}

// wouldCycle reports whether parent is id itself or one of its
// descendants.
func (s *State) wouldCycle(id, parent EntityID) bool {
	for cur := parent; cur != NoEntity; {
		if cur == id {
			return true
		}
		e, ok := s.entities[cur]
		if !ok {
			return false
		}
		cur = e.Parent
	}
	return false
}

// Clone deep-copies the state. Diff batches apply against a clone and
// swap on success so a failing batch never leaks partial writes.
func (s *State) Clone() *State {
	out := NewState()
	out.Name = s.Name
	out.Version = s.Version
	out.nextID = s.nextID
	out.Materials = cloneRawMap(s.Materials)
	out.Meshes = cloneRawMap(s.Meshes)
	out.Metadata = cloneRawMap(s.Metadata)
	if s.LockedIDs != nil {
		out.LockedIDs = make(map[string]struct{}, len(s.LockedIDs))
		for k := range s.LockedIDs {
			out.LockedIDs[k] = struct{}{}
		}
	}
	out.order = append([]EntityID(nil), s.order...)
	for id, e := range s.entities {
		out.entities[id] = e.clone()
	}
	for id, kids := range s.children {
		out.children[id] = append([]EntityID(nil), kids...)
	}
	for pid, id := range s.byPersistent {
		out.byPersistent[pid] = id
	}
	for id := range s.issued {
		out.issued[id] = struct{}{}
	}
	return out
}

func cloneRawMap(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func removeID(ids []EntityID, id EntityID) []EntityID {
	for i, cur := range ids {
		if cur == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func removeIDs(ids []EntityID, gone []EntityID) []EntityID {
	drop := make(map[EntityID]struct{}, len(gone))
	for _, id := range gone {
		drop[id] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, dead := drop[id]; !dead {
			out = append(out, id)
		}
	}
	return out
}
