package component

// GeometryAsset references externally loaded geometry by path.
type GeometryAsset struct {
	Path      string `json:"path"`
	Primitive string `json:"primitive"`
	Enabled   bool   `json:"enabled"`
}

func DefaultGeometryAsset() GeometryAsset {
	return GeometryAsset{Enabled: true}
}

// CustomShape is procedurally generated geometry described inline.
type CustomShape struct {
	ShapeType string  `json:"shapeType"`
	Points    []Vec3  `json:"points"`
	Radius    float64 `json:"radius"`
	Segments  int     `json:"segments"`
	Closed    bool    `json:"closed"`
}

func DefaultCustomShape() CustomShape {
	return CustomShape{ShapeType: "box", Radius: 0.5, Segments: 16}
}

type Terrain struct {
	Size        Vec2    `json:"size"`
	Segments    Vec2    `json:"segments"`
	HeightScale float64 `json:"heightScale"`
	Seed        int64   `json:"seed"`
	Frequency   float64 `json:"frequency"`
	Octaves     int     `json:"octaves"`
	Persistence float64 `json:"persistence"`
	Lacunarity  float64 `json:"lacunarity"`
}

func DefaultTerrain() Terrain {
	return Terrain{
		Size:        Vec2{X: 20, Y: 20},
		Segments:    Vec2{X: 129, Y: 129},
		HeightScale: 2,
		Seed:        1337,
		Frequency:   4,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

type Sound struct {
	SoundPath string  `json:"soundPath"`
	Volume    float64 `json:"volume"`
	Loop      bool    `json:"loop"`
	Autoplay  bool    `json:"autoplay"`
	Spatial   bool    `json:"spatial"`
	MaxRange  float64 `json:"maxRange"`
	Enabled   bool    `json:"enabled"`
}

func DefaultSound() Sound {
	return Sound{Volume: 1, MaxRange: 20, Enabled: true}
}
