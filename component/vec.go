package component

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vec3 accepts both the array form [x,y,z] and the object form {x,y,z}
// when unmarshalled from scene documents.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v *Vec3) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 3 {
			return fmt.Errorf("vec3 array needs 3 elements, got %d", len(arr))
		}
		v.X, v.Y, v.Z = arr[0], arr[1], arr[2]
		return nil
	}
	type plain Vec3
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshalling vec3: %w", err)
	}
	*v = Vec3(obj)
	return nil
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math.Min(v.X, o.X), math.Min(v.Y, o.Y), math.Min(v.Z, o.Z)}
}

func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math.Max(v.X, o.X), math.Max(v.Y, o.Y), math.Max(v.Z, o.Z)}
}

// Vec2 accepts [u,v], {x,y}, and {u,v} forms.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v *Vec2) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 2 {
			return fmt.Errorf("vec2 array needs 2 elements, got %d", len(arr))
		}
		v.X, v.Y = arr[0], arr[1]
		return nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		U *float64 `json:"u"`
		V *float64 `json:"v"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshalling vec2: %w", err)
	}
	if obj.X != nil {
		v.X = *obj.X
	} else if obj.U != nil {
		v.X = *obj.U
	}
	if obj.Y != nil {
		v.Y = *obj.Y
	} else if obj.V != nil {
		v.Y = *obj.V
	}
	return nil
}

// Color is an RGB triple in [0,1]. Accepts [r,g,b] and {r,g,b}.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 3 {
			return fmt.Errorf("color array needs 3 elements, got %d", len(arr))
		}
		c.R, c.G, c.B = arr[0], arr[1], arr[2]
		return nil
	}
	type plain Color
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshalling color: %w", err)
	}
	*c = Color(obj)
	return nil
}

// White is the default light and material color.
func White() Color { return Color{R: 1, G: 1, B: 1} }
