package geom

import "math"

// Quat is a unit rotation quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the rotation that leaves vectors unchanged.
var Identity = Quat{W: 1}

// LookRotation builds the rotation whose forward (+Z) axis points along
// forward and whose up axis is as close to up as possible. A zero forward
// vector yields Identity.
func LookRotation(forward, up Vec3) Quat {
	f := forward.Normalized()
	if f.IsZero() {
		return Identity
	}
	r := up.Cross(f).Normalized()
	if r.IsZero() {
		// forward is parallel to up; any perpendicular right axis will do
		r = Vec3{X: 1}.Sub(f.Scale(f.X)).Normalized()
		if r.IsZero() {
			r = Vec3{Z: 1}
		}
	}
	u := f.Cross(r)

	m00, m01, m02 := r.X, u.X, f.X
	m10, m11, m12 := r.Y, u.Y, f.Y
	m20, m21, m22 := r.Z, u.Z, f.Z

	var q Quat
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = Quat{W: 0.25 * s, X: (m21 - m12) / s, Y: (m02 - m20) / s, Z: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = Quat{W: (m21 - m12) / s, X: 0.25 * s, Y: (m01 + m10) / s, Z: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = Quat{W: (m02 - m20) / s, X: (m01 + m10) / s, Y: 0.25 * s, Z: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = Quat{W: (m10 - m01) / s, X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: 0.25 * s}
	}
	return q.Normalized()
}

func (q Quat) Normalized() Quat {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n < epsilon {
		return Identity
	}
	return Quat{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	axis := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := axis.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(axis.Cross(t))
}

// Forward is the direction the rotation faces.
func (q Quat) Forward() Vec3 {
	return q.Rotate(Vec3{Z: 1})
}
