// Package decoder turns declarative component blobs from scene documents
// and editor diffs into typed runtime components.
package decoder

import (
	"encoding/json"
	"fmt"
)

// Capabilities drive later engine passes: which components force a
// render-mirror update and which need a dedicated upload pass.
type Capabilities struct {
	AffectsRendering bool
	RequiresPass     bool
	Stable           bool
}

// Decoder materializes one or more component kinds. Decode must be pure:
// the same raw value always yields the same component.
type Decoder interface {
	CanDecode(kind string) bool
	Decode(kind string, raw json.RawMessage) (any, error)
	Capabilities() Capabilities
	Kinds() []string
}

// DecodeError reports a malformed component value. The component is
// dropped; the rest of the entity survives.
type DecodeError struct {
	Kind  string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decoding %s: missing required field %q", e.Kind, e.Field)
	}
	return fmt.Sprintf("decoding %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownKindError reports a kind with no registered decoder.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no decoder registered for component kind %q", e.Kind)
}
