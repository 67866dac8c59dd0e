package component

import "math"

// MeshRenderer binds an entity to a mesh and material in the render
// mirror's working set.
type MeshRenderer struct {
	MeshID           string            `json:"meshId"`
	MaterialID       string            `json:"materialId"`
	ModelPath        string            `json:"modelPath"`
	Enabled          bool              `json:"enabled"`
	CastShadows      bool              `json:"castShadows"`
	ReceiveShadows   bool              `json:"receiveShadows"`
	MaterialOverride *MaterialOverride `json:"material"`
}

// MaterialOverride carries per-instance material properties layered over
// the referenced material asset.
type MaterialOverride struct {
	Color     *Color   `json:"color"`
	Metalness *float64 `json:"metalness"`
	Roughness *float64 `json:"roughness"`
	Emissive  *Color   `json:"emissive"`
	Opacity   *float64 `json:"opacity"`
}

func DefaultMeshRenderer() MeshRenderer {
	return MeshRenderer{
		Enabled:        true,
		CastShadows:    true,
		ReceiveShadows: true,
	}
}

// Material is a standalone material component. NonPickable materials are
// skipped by spatial raycasts.
type Material struct {
	Color       Color   `json:"color"`
	Metalness   float64 `json:"metalness"`
	Roughness   float64 `json:"roughness"`
	Emissive    Color   `json:"emissive"`
	Opacity     float64 `json:"opacity"`
	Transparent bool    `json:"transparent"`
	TexturePath string  `json:"texturePath"`
	NonPickable bool    `json:"nonPickable"`
}

func DefaultMaterial() Material {
	return Material{
		Color:     White(),
		Roughness: 0.5,
		Opacity:   1,
	}
}

type Light struct {
	LightType     string  `json:"lightType"`
	Color         Color   `json:"color"`
	Intensity     float64 `json:"intensity"`
	Enabled       bool    `json:"enabled"`
	CastShadow    bool    `json:"castShadow"`
	DirectionX    float64 `json:"directionX"`
	DirectionY    float64 `json:"directionY"`
	DirectionZ    float64 `json:"directionZ"`
	Range         float64 `json:"range"`
	Decay         float64 `json:"decay"`
	Angle         float64 `json:"angle"`
	Penumbra      float64 `json:"penumbra"`
	ShadowMapSize int     `json:"shadowMapSize"`
	ShadowBias    float64 `json:"shadowBias"`
	ShadowRadius  float64 `json:"shadowRadius"`
}

func DefaultLight() Light {
	return Light{
		LightType:     "directional",
		Color:         White(),
		Intensity:     1,
		Enabled:       true,
		CastShadow:    true,
		DirectionY:    -1,
		Range:         10,
		Decay:         1,
		Angle:         math.Pi / 6,
		Penumbra:      0.1,
		ShadowMapSize: 1024,
		ShadowBias:    -0.0001,
		ShadowRadius:  1,
	}
}

type Camera struct {
	FOV              float64 `json:"fov"`
	Near             float64 `json:"near"`
	Far              float64 `json:"far"`
	ProjectionType   string  `json:"projectionType"`
	OrthographicSize float64 `json:"orthographicSize"`
	IsMain           bool    `json:"isMain"`
	FollowTarget     *uint64 `json:"followTarget"`
	FollowOffset     Vec3    `json:"followOffset"`
}

func DefaultCamera() Camera {
	return Camera{
		FOV:              50,
		Near:             0.1,
		Far:              1000,
		ProjectionType:   "perspective",
		OrthographicSize: 10,
	}
}

// LOD selects between mesh variants based on camera distance.
// "LodComponent" is accepted as an alias kind.
type LOD struct {
	OriginalPath       string     `json:"originalPath"`
	HighFidelityPath   string     `json:"highFidelityPath"`
	LowFidelityPath    string     `json:"lowFidelityPath"`
	DistanceThresholds [2]float64 `json:"distanceThresholds"`
	OverrideQuality    string     `json:"overrideQuality"`
}

func DefaultLOD() LOD {
	return LOD{DistanceThresholds: [2]float64{25, 60}}
}

// Instanced marks a renderable entity for hardware instancing.
type Instanced struct {
	Enabled bool `json:"enabled"`
	Count   int  `json:"count"`
}

func DefaultInstanced() Instanced {
	return Instanced{Enabled: true, Count: 1}
}
