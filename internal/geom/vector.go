package geom

import "math"

const epsilon = 1e-9

// Vec3 is a position or direction in world space. Y is up; the ground plane is
// XZ.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var (
	Zero = Vec3{}
	Up   = Vec3{Y: 1}
)

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns the unit vector in the direction of v, or Zero when v is
// too short to have a direction.
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length < epsilon {
		return Zero
	}
	return v.Scale(1 / length)
}

// Planar drops the height component.
func (v Vec3) Planar() Vec3 {
	return Vec3{X: v.X, Z: v.Z}
}

// IsZero reports whether v has no measurable length.
func (v Vec3) IsZero() bool {
	return v.Length() < epsilon
}

// PlanarDistance measures the distance between a and b on the ground plane,
// ignoring height.
func PlanarDistance(a, b Vec3) float64 {
	return math.Hypot(b.X-a.X, b.Z-a.Z)
}

// ClampPlanar limits point to maxRange from origin on the ground plane. When
// the point is out of range the result lies exactly maxRange away along the
// origin→point direction, at the origin's height, and the second return value
// is true.
func ClampPlanar(origin, point Vec3, maxRange float64) (Vec3, bool) {
	if PlanarDistance(origin, point) <= maxRange {
		return point, false
	}
	dir := point.Sub(origin).Planar().Normalized()
	return origin.Add(dir.Scale(maxRange)), true
}
