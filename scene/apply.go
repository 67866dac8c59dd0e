package scene

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ChangeKind discriminates entries in the change feed ApplyCommands
// produces. Back-end mirrors and the event bus consume the feed.
type ChangeKind int

const (
	ChangeEntityCreated ChangeKind = iota
	ChangeEntityDestroyed
	ChangeComponentSet
	ChangeComponentRemoved
	ChangeParentChanged
	ChangeActiveChanged
)

type Change struct {
	Kind      ChangeKind
	Entity    EntityID
	Component string
}

// ApplyCommands drains cmds into the state in order. Each command is
// atomic: it either fully succeeds or leaves the scene unchanged and is
// logged. The returned change feed records what actually happened.
func ApplyCommands(st *State, dec ComponentDecoder, lg *zap.Logger, cmds []Command) []Change {
	var changes []Change
	for _, cmd := range cmds {
		applied, err := applyOne(st, dec, lg, cmd)
		if err != nil {
			// Destroyed-earlier-in-batch references are expected churn,
			// everything else is a real authoring error.
			if errors.Is(err, errGone) {
				lg.Debug("command target already destroyed", zap.String("command", fmt.Sprintf("%T", cmd)))
			} else {
				lg.Error("command skipped", zap.Error(&CommandError{Command: cmd, Err: err}))
			}
			continue
		}
		changes = append(changes, applied...)
	}
	return changes
}

var errGone = errors.New("entity does not exist")

func applyOne(st *State, dec ComponentDecoder, lg *zap.Logger, cmd Command) ([]Change, error) {
	switch c := cmd.(type) {
	case CreateEntity:
		return applyCreate(st, dec, lg, c)

	case DestroyEntity:
		if _, ok := st.Entity(c.Entity); !ok {
			return nil, errGone
		}
		removed := st.remove(c.Entity)
		changes := make([]Change, 0, len(removed))
		for _, id := range removed {
			changes = append(changes, Change{Kind: ChangeEntityDestroyed, Entity: id})
		}
		return changes, nil

	case SetComponent:
		e, ok := st.Entity(c.Entity)
		if !ok {
			return nil, errGone
		}
		if !dec.CanDecode(c.Kind) {
			return nil, fmt.Errorf("unknown component kind %q", c.Kind)
		}
		value, err := dec.Decode(c.Kind, c.Data)
		if err != nil {
			return nil, err
		}
		e.Components[c.Kind] = &ComponentSlot{Raw: c.Data, Value: value}
		return []Change{{Kind: ChangeComponentSet, Entity: c.Entity, Component: c.Kind}}, nil

	case RemoveComponent:
		e, ok := st.Entity(c.Entity)
		if !ok {
			return nil, errGone
		}
		if _, has := e.Components[c.Kind]; !has {
			return nil, fmt.Errorf("entity %d has no %q component", c.Entity, c.Kind)
		}
		delete(e.Components, c.Kind)
		return []Change{{Kind: ChangeComponentRemoved, Entity: c.Entity, Component: c.Kind}}, nil

	case SetParent:
		if err := st.setParent(c.Entity, c.Parent); err != nil {
			return nil, err
		}
		return []Change{{Kind: ChangeParentChanged, Entity: c.Entity}}, nil

	case SetActive:
		e, ok := st.Entity(c.Entity)
		if !ok {
			return nil, errGone
		}
		if e.Active == c.Active {
			return nil, nil
		}
		e.Active = c.Active
		return []Change{{Kind: ChangeActiveChanged, Entity: c.Entity}}, nil

	default:
		return nil, fmt.Errorf("unhandled command type %T", cmd)
	}
}

// applyCreate decodes initial components eagerly and inserts the entity
// in one step. A component that fails to decode is dropped with a log;
// the entity still lands.
func applyCreate(st *State, dec ComponentDecoder, lg *zap.Logger, c CreateEntity) ([]Change, error) {
	if c.Parent != NoEntity {
		if _, ok := st.Entity(c.Parent); !ok {
			return nil, errGone
		}
	}
	e := &Entity{
		ID:           st.allocID(c.PersistentID),
		PersistentID: c.PersistentID,
		Name:         c.Name,
		Parent:       c.Parent,
		Tags:         append([]string(nil), c.Tags...),
		Active:       true,
		Components:   map[string]*ComponentSlot{},
	}

	changes := []Change{{Kind: ChangeEntityCreated, Entity: e.ID}}
	for _, init := range c.Components {
		value, err := dec.Decode(init.Kind, init.Data)
		if err != nil {
			lg.Warn("dropping component on create",
				zap.String("kind", init.Kind),
				zap.String("entity", c.PersistentID),
				zap.Error(err))
			continue
		}
		e.Components[init.Kind] = &ComponentSlot{Raw: init.Data, Value: value}
		changes = append(changes, Change{Kind: ChangeComponentSet, Entity: e.ID, Component: init.Kind})
	}

	if err := st.insert(e); err != nil {
		return nil, err
	}
	return changes, nil
}
