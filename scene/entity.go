// Package scene holds the authoritative runtime scene model: entities,
// persistent ids, component slots, the parent forest, and the deferred
// command buffer that mutates all of it.
package scene

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// EntityID is unique within a process lifetime and never reused after
// destruction. Zero means "no entity".
type EntityID uint64

const NoEntity EntityID = 0

// HashPersistentID derives the runtime id for an editor-known entity.
// Hashing keeps the id stable across scene reloads.
func HashPersistentID(persistentID string) EntityID {
	id := EntityID(xxhash.Sum64String(persistentID))
	if id == NoEntity {
		id = 1
	}
	return id
}

// ComponentSlot keeps both the raw document value and the decoded
// component. Raw survives so diffs and prefab patches can re-merge it.
type ComponentSlot struct {
	Raw   json.RawMessage
	Value any
}

type Entity struct {
	ID           EntityID
	PersistentID string
	Name         string
	Parent       EntityID
	Tags         []string
	Active       bool
	Components   map[string]*ComponentSlot
}

// Component returns the decoded component for kind, nil if absent.
func (e *Entity) Component(kind string) any {
	slot, ok := e.Components[kind]
	if !ok {
		return nil
	}
	return slot.Value
}

func (e *Entity) HasComponent(kind string) bool {
	_, ok := e.Components[kind]
	return ok
}

func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e *Entity) clone() *Entity {
	out := *e
	out.Tags = append([]string(nil), e.Tags...)
	out.Components = make(map[string]*ComponentSlot, len(e.Components))
	for kind, slot := range e.Components {
		s := *slot
		out.Components[kind] = &s
	}
	return &out
}

// ComponentDecoder is the slice of the decoder registry the scene model
// needs. Implemented by decoder.Registry.
type ComponentDecoder interface {
	CanDecode(kind string) bool
	Decode(kind string, raw json.RawMessage) (any, error)
}
