// Package render mirrors the authoritative scene into a renderer's
// working set. The renderer itself lives behind Backend; this package
// only decides what to upload, update, and release.
package render

import (
	"fmt"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// ResourceKey is a content-addressed handle derived from the resource's
// path or id.
type ResourceKey uint64

// Instance is one renderable entity's GPU-facing state.
type Instance struct {
	Mesh      ResourceKey
	Material  ResourceKey
	Transform component.Transform
	Instanced bool
	Count     int
}

// Backend is implemented by the host's renderer.
type Backend interface {
	UploadMesh(key ResourceKey, source string) error
	ReleaseMesh(key ResourceKey)

	UploadMaterial(key ResourceKey, mat component.Material) error
	ReleaseMaterial(key ResourceKey)

	SetInstance(id scene.EntityID, inst Instance)
	RemoveInstance(id scene.EntityID)

	SetLight(id scene.EntityID, light component.Light, tr component.Transform)
	RemoveLight(id scene.EntityID)

	SetCamera(id scene.EntityID, cam component.Camera, tr component.Transform)
	RemoveCamera(id scene.EntityID)
}

// ResourceError reports a missing mesh or material reference. A
// fallback is substituted and the frame continues.
type ResourceError struct {
	Kind string
	Ref  string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("missing %s %q, substituting fallback", e.Kind, e.Ref)
}
