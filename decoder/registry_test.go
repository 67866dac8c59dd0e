package decoder

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
)

func newObservedRegistry(t *testing.T) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	return NewDefaultRegistry(zap.New(core)), logs
}

func TestDecodeMeshRendererUnknownField(t *testing.T) {
	reg, logs := newObservedRegistry(t)

	raw := json.RawMessage(`{"meshId":"cube","materialId":"m1","weirdField":42}`)
	got, err := reg.Decode(component.KindMeshRenderer, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr, ok := got.(component.MeshRenderer)
	if !ok {
		t.Fatalf("got %T, want component.MeshRenderer", got)
	}
	want := component.MeshRenderer{
		MeshID:         "cube",
		MaterialID:     "m1",
		Enabled:        true,
		CastShadows:    true,
		ReceiveShadows: true,
	}
	if mr != want {
		t.Fatalf("got %+v, want %+v", mr, want)
	}

	warnings := logs.FilterMessage("Unknown property 'weirdField'").All()
	if len(warnings) != 1 {
		t.Fatalf("got %d unknown-field warnings, want 1", len(warnings))
	}
}

func TestDecodeIsPure(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	raw := json.RawMessage(`{"position":[1,2,3],"rotation":[0,90,0],"scale":{"x":2,"y":2,"z":2}}`)
	a, err := reg.Decode(component.KindTransform, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := reg.Decode(component.KindTransform, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("decode not pure: %+v vs %+v", a, b)
	}
}

func TestDecodeTransformDefaults(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	got, err := reg.Decode(component.KindTransform, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := got.(component.Transform)
	if tr.Rotation != component.IdentityQuat() {
		t.Fatalf("rotation = %+v, want identity", tr.Rotation)
	}
	if tr.Scale != (component.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("scale = %+v, want unit", tr.Scale)
	}
}

func TestDecodeLightDefaults(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	got, err := reg.Decode(component.KindLight, json.RawMessage(`{"intensity":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := got.(component.Light)
	if l.Intensity != 2 {
		t.Fatalf("intensity = %v, want 2", l.Intensity)
	}
	if l.LightType != "directional" {
		t.Fatalf("lightType = %q, want directional", l.LightType)
	}
	if l.Color != component.White() {
		t.Fatalf("color = %+v, want white", l.Color)
	}
	if l.Angle != math.Pi/6 || l.ShadowMapSize != 1024 || l.ShadowBias != -0.0001 {
		t.Fatalf("shadow defaults wrong: %+v", l)
	}
}

func TestDecodeMissingRequiredField(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	_, err := reg.Decode(component.KindScript, json.RawMessage(`{"enabled":false}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want DecodeError", err)
	}
	if de.Kind != component.KindScript || de.Field != "scriptPath" {
		t.Fatalf("got kind=%q field=%q", de.Kind, de.Field)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	reg, logs := newObservedRegistry(t)

	_, err := reg.Decode("Nonsense", json.RawMessage(`{}`))
	var uk *UnknownKindError
	if !errors.As(err, &uk) {
		t.Fatalf("got %v, want UnknownKindError", err)
	}

	// Logged once per kind only.
	_, _ = reg.Decode("Nonsense", json.RawMessage(`{}`))
	if n := len(logs.FilterMessage("unknown component kind").All()); n != 1 {
		t.Fatalf("got %d warnings, want 1", n)
	}
}

func TestDecodeLODAlias(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	for _, kind := range []string{component.KindLOD, component.KindLODAlias} {
		got, err := reg.Decode(kind, json.RawMessage(`{"originalPath":"a.glb"}`))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		lod := got.(component.LOD)
		if lod.OriginalPath != "a.glb" {
			t.Fatalf("%s: originalPath = %q", kind, lod.OriginalPath)
		}
		if lod.DistanceThresholds != [2]float64{25, 60} {
			t.Fatalf("%s: thresholds = %v", kind, lod.DistanceThresholds)
		}
	}
}

func TestDecodeRigidBodyTypeCaseInsensitive(t *testing.T) {
	reg, _ := newObservedRegistry(t)

	got, err := reg.Decode(component.KindRigidBody, json.RawMessage(`{"type":"Static"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rb := got.(component.RigidBody)
	if rb.BodyType() != component.BodyFixed {
		t.Fatalf("BodyType() = %v, want fixed", rb.BodyType())
	}
}
