// Package geometry holds the 3D helpers used to turn landmark positions into joint angles.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point3D is a landmark position in the pose model's coordinate space.
type Point3D = r3.Vec

// direction returns the ray from -> to scaled so its largest component is 1.
// Scaling first keeps the dot product and norms finite for any finite input.
// ok is false for a zero-length or non-finite ray.
func direction(from, to Point3D) (r3.Vec, bool) {
	v := r3.Sub(to, from)
	m := math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/m, v), true
}

// AngleAtVertex returns the angle in degrees at b formed by the rays b->a and b->c.
// The result is always in [0, 180]. If either ray has zero length, or the input
// is not finite, the angle is 0.
func AngleAtVertex(a, b, c Point3D) float64 {
	v1, ok1 := direction(b, a)
	v2, ok2 := direction(b, c)
	if !ok1 || !ok2 {
		return 0
	}

	cos := r3.Cos(v1, v2)
	if math.IsNaN(cos) {
		return 0
	}
	// Floating point error can push the ratio just outside acos' domain.
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * 180 / math.Pi
}

// Degenerate reports whether AngleAtVertex(a, b, c) has no real angle to measure:
// a zero-length ray or a non-finite coordinate.
func Degenerate(a, b, c Point3D) bool {
	_, ok1 := direction(b, a)
	_, ok2 := direction(b, c)
	return !ok1 || !ok2
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point3D) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point3D) Point3D {
	return r3.Add(r3.Scale(0.5, a), r3.Scale(0.5, b))
}
