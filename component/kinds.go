package component

// Component kind identifiers as they appear in scene documents and
// editor diffs. Equality is byte-equality.
const (
	KindTransform      = "Transform"
	KindMeshRenderer   = "MeshRenderer"
	KindMaterial       = "Material"
	KindLight          = "Light"
	KindCamera         = "Camera"
	KindRigidBody      = "RigidBody"
	KindMeshCollider   = "MeshCollider"
	KindGeometryAsset  = "GeometryAsset"
	KindCustomShape    = "CustomShape"
	KindTerrain        = "Terrain"
	KindPrefabInstance = "PrefabInstance"
	KindLOD            = "LOD"
	KindLODAlias       = "LodComponent"
	KindScript         = "Script"
	KindSound          = "Sound"
	KindInstanced      = "Instanced"
)
