package component

// Transform places an entity in world space. Rotation accepts both
// 3-element Euler-degree arrays and 4-element quaternions on the wire.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

func DefaultTransform() Transform {
	return Transform{
		Rotation: IdentityQuat(),
		Scale:    Vec3{X: 1, Y: 1, Z: 1},
	}
}
