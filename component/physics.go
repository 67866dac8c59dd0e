package component

import "strings"

// BodyType discriminates how a rigid body interacts with the physics
// mirror. Dynamic bodies are authoritative over the scene transform;
// kinematic and fixed bodies follow it.
type BodyType int

const (
	BodyDynamic BodyType = iota
	BodyKinematic
	BodyFixed
)

// ParseBodyType is case-insensitive and treats "static" as a synonym
// for fixed. Unrecognized values decay to dynamic.
func ParseBodyType(s string) BodyType {
	switch strings.ToLower(s) {
	case "kinematic":
		return BodyKinematic
	case "fixed", "static":
		return BodyFixed
	default:
		return BodyDynamic
	}
}

func (t BodyType) String() string {
	switch t {
	case BodyKinematic:
		return "kinematic"
	case BodyFixed:
		return "fixed"
	default:
		return "dynamic"
	}
}

type RigidBody struct {
	Type           string  `json:"type"`
	Mass           float64 `json:"mass"`
	GravityScale   float64 `json:"gravityScale"`
	LinearDamping  float64 `json:"linearDamping"`
	AngularDamping float64 `json:"angularDamping"`
	Enabled        bool    `json:"enabled"`
}

func (rb RigidBody) BodyType() BodyType { return ParseBodyType(rb.Type) }

func DefaultRigidBody() RigidBody {
	return RigidBody{
		Type:         "dynamic",
		Mass:         1,
		GravityScale: 1,
		Enabled:      true,
	}
}

type MeshCollider struct {
	Shape     string  `json:"shape"`
	IsTrigger bool    `json:"isTrigger"`
	SizeX     float64 `json:"sizeX"`
	SizeY     float64 `json:"sizeY"`
	SizeZ     float64 `json:"sizeZ"`
	Radius    float64 `json:"radius"`
	Height    float64 `json:"height"`
	MeshPath  string  `json:"meshPath"`
	Friction  float64 `json:"friction"`
	Bounce    float64 `json:"bounce"`
}

func DefaultMeshCollider() MeshCollider {
	return MeshCollider{
		Shape:    "box",
		SizeX:    1,
		SizeY:    1,
		SizeZ:    1,
		Radius:   0.5,
		Height:   1,
		Friction: 0.5,
	}
}
