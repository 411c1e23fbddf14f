package models

import (
	"fmt"
	"time"
)

// SegmentKind tags a motion segment with its contact mode.
type SegmentKind string

const (
	// KindFaceContact is a segment where the pusher is in contact with the slider.
	KindFaceContact SegmentKind = "face_contact"
	// KindNonCollision is a free-motion segment that repositions the pusher.
	KindNonCollision SegmentKind = "non_collision"
)

// Valid reports whether the kind is one of the known segment kinds.
func (k SegmentKind) Valid() bool {
	return k == KindFaceContact || k == KindNonCollision
}

// Pose is a planar pose of the pusher in the table frame.
type Pose struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Theta float64 `yaml:"theta" json:"theta"`
}

// Lerp interpolates linearly between p and q, s in [0, 1].
func (p Pose) Lerp(q Pose, s float64) Pose {
	return Pose{
		X:     p.X + (q.X-p.X)*s,
		Y:     p.Y + (q.Y-p.Y)*s,
		Theta: p.Theta + (q.Theta-p.Theta)*s,
	}
}

// String formats the pose for log output.
func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Theta)
}

// Segment is one mode of the reference plan.
type Segment struct {
	Kind     SegmentKind   // Contact mode of the segment
	Duration time.Duration // Time spent in this mode
	Knots    []Pose        // Pusher knot points, evenly spaced over Duration
}

// Trajectory is an immutable reference motion plan: an ordered sequence of
// segments. Methods never mutate the receiver.
type Trajectory struct {
	Name     string
	FilePath string
	segments []Segment
}

// NewTrajectory builds a trajectory from the given segments. The slice and its
// knot slices are copied so later changes by the caller are not observed.
func NewTrajectory(name string, segments []Segment) *Trajectory {
	return &Trajectory{
		Name:     name,
		segments: copySegments(segments),
	}
}

func copySegments(in []Segment) []Segment {
	out := make([]Segment, len(in))
	for i, seg := range in {
		out[i] = seg
		out[i].Knots = append([]Pose(nil), seg.Knots...)
	}
	return out
}

// Segments returns a copy of the trajectory's segments.
func (t *Trajectory) Segments() []Segment {
	return copySegments(t.segments)
}

// Len returns the number of segments.
func (t *Trajectory) Len() int {
	return len(t.segments)
}

// EndTime is the total duration of the plan.
func (t *Trajectory) EndTime() time.Duration {
	var total time.Duration
	for _, seg := range t.segments {
		total += seg.Duration
	}
	return total
}

// InitialPose is the first knot of the first segment that has one.
func (t *Trajectory) InitialPose() Pose {
	for _, seg := range t.segments {
		if len(seg.Knots) > 0 {
			return seg.Knots[0]
		}
	}
	return Pose{}
}

// FinalPose is the last knot of the last segment that has one.
func (t *Trajectory) FinalPose() Pose {
	for i := len(t.segments) - 1; i >= 0; i-- {
		if knots := t.segments[i].Knots; len(knots) > 0 {
			return knots[len(knots)-1]
		}
	}
	return Pose{}
}

// SegmentAt returns the index of the segment active at time at, clamped to the
// valid range. Returns -1 for an empty trajectory.
func (t *Trajectory) SegmentAt(at time.Duration) int {
	if len(t.segments) == 0 {
		return -1
	}
	var start time.Duration
	for i, seg := range t.segments {
		if at < start+seg.Duration {
			return i
		}
		start += seg.Duration
	}
	return len(t.segments) - 1
}

// PoseAt returns the desired pusher pose at time at, interpolating linearly
// between the knots of the active segment. Times before zero or after the end
// clamp to the initial and final pose.
func (t *Trajectory) PoseAt(at time.Duration) Pose {
	if at <= 0 {
		return t.InitialPose()
	}
	if at >= t.EndTime() {
		return t.FinalPose()
	}

	var start time.Duration
	for _, seg := range t.segments {
		if at >= start+seg.Duration {
			start += seg.Duration
			continue
		}
		switch len(seg.Knots) {
		case 0:
			return t.lastPoseBefore(start)
		case 1:
			return seg.Knots[0]
		}
		s := float64(at-start) / float64(seg.Duration)
		pos := s * float64(len(seg.Knots)-1)
		i := int(pos)
		if i >= len(seg.Knots)-1 {
			return seg.Knots[len(seg.Knots)-1]
		}
		return seg.Knots[i].Lerp(seg.Knots[i+1], pos-float64(i))
	}
	return t.FinalPose()
}

// lastPoseBefore finds the last knot of any segment ending at or before at.
func (t *Trajectory) lastPoseBefore(at time.Duration) Pose {
	pose := t.InitialPose()
	var start time.Duration
	for _, seg := range t.segments {
		if start+seg.Duration > at {
			break
		}
		if len(seg.Knots) > 0 {
			pose = seg.Knots[len(seg.Knots)-1]
		}
		start += seg.Duration
	}
	return pose
}

// WithNonCollisionTime returns a new trajectory in which every non-collision
// segment lasts d. The receiver is left unchanged.
func (t *Trajectory) WithNonCollisionTime(d time.Duration) *Trajectory {
	segments := copySegments(t.segments)
	for i := range segments {
		if segments[i].Kind == KindNonCollision {
			segments[i].Duration = d
		}
	}
	return &Trajectory{
		Name:     t.Name,
		FilePath: t.FilePath,
		segments: segments,
	}
}

// CountByKind returns how many segments have the given kind.
func (t *Trajectory) CountByKind(kind SegmentKind) int {
	n := 0
	for _, seg := range t.segments {
		if seg.Kind == kind {
			n++
		}
	}
	return n
}
