package component

import (
	"encoding/json"
	"fmt"
	"math"
)

// Quat is a rotation quaternion. The zero value is not a valid rotation;
// use IdentityQuat.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func IdentityQuat() Quat { return Quat{W: 1} }

// QuatFromEulerDegrees converts XYZ-order Euler angles in degrees to a
// quaternion. This is the convention authoring tools emit for 3-element
// rotation arrays.
func QuatFromEulerDegrees(x, y, z float64) Quat {
	rx := x * math.Pi / 180
	ry := y * math.Pi / 180
	rz := z * math.Pi / 180

	c1, s1 := math.Cos(rx/2), math.Sin(rx/2)
	c2, s2 := math.Cos(ry/2), math.Sin(ry/2)
	c3, s3 := math.Cos(rz/2), math.Sin(rz/2)

	return Quat{
		X: s1*c2*c3 + c1*s2*s3,
		Y: c1*s2*c3 - s1*c2*s3,
		Z: c1*c2*s3 + s1*s2*c3,
		W: c1*c2*c3 - s1*s2*s3,
	}
}

// UnmarshalJSON accepts a 3-element array (Euler degrees, XYZ order),
// a 4-element array ([x,y,z,w] quaternion), or an {x,y,z,w} object.
// Any other array length decays to identity.
func (q *Quat) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		switch len(arr) {
		case 3:
			*q = QuatFromEulerDegrees(arr[0], arr[1], arr[2])
		case 4:
			*q = Quat{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
		default:
			*q = IdentityQuat()
		}
		return nil
	}
	type plain Quat
	obj := plain(IdentityQuat())
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshalling quaternion: %w", err)
	}
	*q = Quat(obj)
	return nil
}

func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return IdentityQuat()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	s := q.W
	return u.Scale(2 * u.Dot(v)).
		Add(v.Scale(s*s - u.Dot(u))).
		Add(u.Cross(v).Scale(2 * s))
}

// YawDegrees extracts the rotation about the Y axis. Physics mirrors
// bodies in a single plane and only this angle survives the trip.
func (q Quat) YawDegrees() float64 {
	siny := 2 * (q.W*q.Y + q.X*q.Z)
	cosy := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(siny, cosy) * 180 / math.Pi
}
