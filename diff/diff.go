// Package diff implements the incremental scene-diff protocol an
// external editor uses to mutate a running scene without reloading.
package diff

import (
	"encoding/json"
	"fmt"
)

// Diff type tags as they appear on the wire.
const (
	TypeAddEntity       = "AddEntity"
	TypeRemoveEntity    = "RemoveEntity"
	TypeUpdateEntity    = "UpdateEntity"
	TypeSetComponent    = "SetComponent"
	TypeRemoveComponent = "RemoveComponent"
)

// Batch is one editor transaction. Batches apply in strictly
// consecutive sequence order; within a batch, diffs apply in array
// order as a single atomic unit.
type Batch struct {
	Sequence uint64 `json:"sequence"`
	Diffs    []Diff `json:"diffs"`
}

// Diff is one scene mutation, discriminated by Type. Fields not used
// by a given type are left zero on the wire.
type Diff struct {
	Type               string                     `json:"type"`
	EntityPersistentID string                     `json:"entity_persistent_id"`
	Name               *string                    `json:"name,omitempty"`
	ParentPersistentID *string                    `json:"parent_persistent_id,omitempty"`
	Tags               []string                   `json:"tags,omitempty"`
	Components         map[string]json.RawMessage `json:"components,omitempty"`
	Component          *ComponentDiff             `json:"component,omitempty"`
	ComponentType      string                     `json:"component_type,omitempty"`
}

type ComponentDiff struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func ParseBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("parsing diff batch: %w", err)
	}
	return b, nil
}

// SequenceError reports a batch arriving out of order. The editor is
// expected to resync by resending the full scene.
type SequenceError struct {
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("diff batch out of order: expected sequence %d, got %d", e.Expected, e.Got)
}

// BatchError reports an in-batch failure. The whole batch was rolled
// back.
type BatchError struct {
	Sequence uint64
	Index    int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("diff batch %d failed at diff %d: %v", e.Sequence, e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
