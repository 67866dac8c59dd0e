package decoder

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// jsonDecoder decodes component kind(s) into T. Defaults come from the
// constructor so that missing optional fields keep documented values;
// unknown fields log a warning and are ignored; missing required fields
// fail the decode with a typed error.
type jsonDecoder[T any] struct {
	kinds    []string
	caps     Capabilities
	defaults func() T
	required []string
	lg       *zap.Logger

	allowed map[string]struct{}
}

func newJSONDecoder[T any](lg *zap.Logger, caps Capabilities, defaults func() T, required []string, kinds ...string) *jsonDecoder[T] {
	var zero T
	return &jsonDecoder[T]{
		kinds:    kinds,
		caps:     caps,
		defaults: defaults,
		required: required,
		lg:       lg,
		allowed:  jsonFieldSet(reflect.TypeOf(zero)),
	}
}

func (d *jsonDecoder[T]) CanDecode(kind string) bool {
	for _, k := range d.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (d *jsonDecoder[T]) Kinds() []string { return d.kinds }

func (d *jsonDecoder[T]) Capabilities() Capabilities { return d.caps }

func (d *jsonDecoder[T]) Decode(kind string, raw json.RawMessage) (any, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
	}

	for _, name := range unknownFields(fields, d.allowed) {
		d.lg.Warn(fmt.Sprintf("Unknown property '%s'", name), zap.String("kind", kind))
	}

	for _, req := range d.required {
		if _, ok := fields[req]; !ok {
			return nil, &DecodeError{Kind: kind, Field: req}
		}
	}

	v := d.defaults()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
	}
	return v, nil
}

func unknownFields(fields map[string]json.RawMessage, allowed map[string]struct{}) []string {
	var out []string
	for name := range fields {
		if _, ok := allowed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func jsonFieldSet(t reflect.Type) map[string]struct{} {
	out := map[string]struct{}{}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		out[name] = struct{}{}
	}
	return out
}
