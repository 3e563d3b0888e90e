package rules

import (
	"github.com/andresmejia3/formcheck/internal/geometry"
	"github.com/andresmejia3/formcheck/internal/types"
)

// Joints is the read side of a sample handed to signal and check functions.
// Callers guarantee that every landmark a function touches was validated as
// present, so P never has to deal with nil.
type Joints struct {
	sample     *types.JointSample
	degenerate bool
}

// NewJoints wraps a sample for measurement.
func NewJoints(s *types.JointSample) *Joints {
	return &Joints{sample: s}
}

// P returns the position of a landmark. Absent landmarks read as the origin.
func (j *Joints) P(id types.LandmarkID) geometry.Point3D {
	if l := j.sample.Get(id); l != nil {
		return l.Position
	}
	return geometry.Point3D{}
}

// Angle is geometry.AngleAtVertex over three landmarks. A zero-length ray
// marks the whole measurement as degenerate instead of passing 0° through as
// if it were a real reading.
func (j *Joints) Angle(a, vertex, c types.LandmarkID) float64 {
	pa, pb, pc := j.P(a), j.P(vertex), j.P(c)
	if geometry.Degenerate(pa, pb, pc) {
		j.degenerate = true
		return 0
	}
	return geometry.AngleAtVertex(pa, pb, pc)
}

// Degenerate reports whether any Angle call since the last Clear hit a zero-length ray.
func (j *Joints) Degenerate() bool {
	return j.degenerate
}

// Clear resets the degenerate flag.
func (j *Joints) Clear() {
	j.degenerate = false
}

// Usable reports whether every id is present with at least minLikelihood confidence.
func Usable(s *types.JointSample, ids []types.LandmarkID, minLikelihood float64) bool {
	for _, id := range ids {
		l := s.Get(id)
		if l == nil || l.InFrameLikelihood < minLikelihood {
			return false
		}
	}
	return true
}
