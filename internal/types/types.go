package types

import (
	"encoding/json"
	"fmt"

	"github.com/andresmejia3/formcheck/internal/geometry"
)

// FrameTask represents a single frame sent to a worker for processing
type FrameTask struct {
	Index int
	Data  []byte
}

// LandmarkID enumerates the body keypoints reported by the pose model.
type LandmarkID int

const (
	Nose LandmarkID = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

func (id LandmarkID) String() string {
	if id < 0 || id >= NumLandmarks {
		return fmt.Sprintf("landmark(%d)", int(id))
	}
	return landmarkNames[id]
}

// ParseLandmark maps a wire name such as "left_knee" to its LandmarkID.
func ParseLandmark(name string) (LandmarkID, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return LandmarkID(i), true
		}
	}
	return 0, false
}

// Landmark is one detected keypoint and the model's in-frame likelihood for it.
type Landmark struct {
	Position          geometry.Point3D
	InFrameLikelihood float64
}

// wireLandmark is the flattened JSON form shared by sample files and the pose worker.
type wireLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

func (l Landmark) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLandmark{X: l.Position.X, Y: l.Position.Y, Z: l.Position.Z, Visibility: l.InFrameLikelihood})
}

func (l *Landmark) UnmarshalJSON(data []byte) error {
	var w wireLandmark
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Position = geometry.Point3D{X: w.X, Y: w.Y, Z: w.Z}
	l.InFrameLikelihood = w.Visibility
	return nil
}

// JointSample is one frame's worth of landmarks. A nil entry means the model
// could not locate that landmark.
type JointSample struct {
	Index       int
	TimestampMS int64
	Landmarks   [NumLandmarks]*Landmark
}

// Get returns the landmark for id, or nil if it is absent.
func (s *JointSample) Get(id LandmarkID) *Landmark {
	if id < 0 || id >= NumLandmarks {
		return nil
	}
	return s.Landmarks[id]
}

// Set stores a landmark at id.
func (s *JointSample) Set(id LandmarkID, l Landmark) {
	s.Landmarks[id] = &l
}

type wireSample struct {
	Index       int                 `json:"index"`
	TimestampMS int64               `json:"ts"`
	Landmarks   map[string]Landmark `json:"landmarks"`
}

func (s JointSample) MarshalJSON() ([]byte, error) {
	w := wireSample{Index: s.Index, TimestampMS: s.TimestampMS, Landmarks: make(map[string]Landmark)}
	for i, l := range s.Landmarks {
		if l != nil {
			w.Landmarks[LandmarkID(i).String()] = *l
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. Unknown landmark names are ignored so
// that pose models reporting extra keypoints (hands, mouth) stay compatible.
func (s *JointSample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = JointSample{Index: w.Index, TimestampMS: w.TimestampMS}
	s.SetLandmarks(w.Landmarks)
	return nil
}

// SetLandmarks fills the sample from a name-keyed map, skipping unknown names.
func (s *JointSample) SetLandmarks(m map[string]Landmark) {
	for name, l := range m {
		if id, ok := ParseLandmark(name); ok {
			s.Set(id, l)
		}
	}
}

// IssueKind classifies a form deviation.
type IssueKind string

const (
	KneeAlignment IssueKind = "knee_alignment"
	BackPosition  IssueKind = "back_position"
	Depth         IssueKind = "depth"
	Symmetry      IssueKind = "symmetry"
	ElbowFlare    IssueKind = "elbow_flare"
	HipPosition   IssueKind = "hip_position"
	Stability     IssueKind = "stability"
)

// Severity ranks form issues. Higher is worse.
type Severity int

const (
	Minor Severity = iota + 1
	Moderate
	Major
)

func (s Severity) String() string {
	switch s {
	case Minor:
		return "minor"
	case Moderate:
		return "moderate"
	case Major:
		return "major"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FormIssue is one detected deviation from ideal form.
type FormIssue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

// AnalysisResult is what the engine returns for every sample.
type AnalysisResult struct {
	RepDetected   bool        `json:"rep_detected"`
	CurrentAngle  float64     `json:"current_angle"`
	Feedback      string      `json:"feedback"`
	IsCorrectForm bool        `json:"is_correct_form"`
	FormScore     int         `json:"form_score"`
	Issues        []FormIssue `json:"issues,omitempty"`
}
