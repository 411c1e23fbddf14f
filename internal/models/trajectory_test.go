package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleTrajectory() *Trajectory {
	return NewTrajectory("sample", []Segment{
		{Kind: KindNonCollision, Duration: 2 * time.Second, Knots: []Pose{{X: 0}, {X: 1}}},
		{Kind: KindFaceContact, Duration: 4 * time.Second, Knots: []Pose{{X: 1}, {X: 2}, {X: 3}}},
		{Kind: KindNonCollision, Duration: 2 * time.Second, Knots: []Pose{{X: 3, Y: 1}}},
	})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTrajectoryEndTime(t *testing.T) {
	assert.Equal(t, 8*time.Second, sampleTrajectory().EndTime())
	assert.Equal(t, time.Duration(0), NewTrajectory("empty", nil).EndTime())
}

func TestTrajectoryPoseAt(t *testing.T) {
	traj := sampleTrajectory()

	tests := []struct {
		at    time.Duration
		wantX float64
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Second, 0.5},
		{2 * time.Second, 1},
		{3 * time.Second, 1.5},
		{5 * time.Second, 2.5},
		{7 * time.Second, 3},
		{time.Hour, 3},
	}
	for _, tt := range tests {
		got := traj.PoseAt(tt.at)
		if !almostEqual(got.X, tt.wantX) {
			t.Errorf("PoseAt(%v).X = %v, want %v", tt.at, got.X, tt.wantX)
		}
	}
}

func TestTrajectorySegmentAt(t *testing.T) {
	traj := sampleTrajectory()
	assert.Equal(t, 0, traj.SegmentAt(0))
	assert.Equal(t, 1, traj.SegmentAt(2*time.Second))
	assert.Equal(t, 2, traj.SegmentAt(7*time.Second))
	assert.Equal(t, 2, traj.SegmentAt(time.Hour))
	assert.Equal(t, -1, NewTrajectory("empty", nil).SegmentAt(0))
}

func TestWithNonCollisionTimeIsNonMutating(t *testing.T) {
	traj := sampleTrajectory()
	shorter := traj.WithNonCollisionTime(time.Second)

	assert.Equal(t, 8*time.Second, traj.EndTime())
	assert.Equal(t, 6*time.Second, shorter.EndTime())
	assert.NotSame(t, traj, shorter)
	assert.Equal(t, traj.Name, shorter.Name)
}

func TestNewTrajectoryCopiesInput(t *testing.T) {
	segments := []Segment{{Kind: KindFaceContact, Duration: time.Second, Knots: []Pose{{X: 1}}}}
	traj := NewTrajectory("copy", segments)

	segments[0].Duration = time.Hour
	segments[0].Knots[0].X = 42

	assert.Equal(t, time.Second, traj.EndTime())
	assert.Equal(t, 1.0, traj.InitialPose().X)

	out := traj.Segments()
	out[0].Knots[0].X = 7
	assert.Equal(t, 1.0, traj.InitialPose().X)
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "RESETTING", StateResetting.String())
	assert.Equal(t, "CLEANED_UP", StateCleanedUp.String())
	assert.Equal(t, "UNKNOWN", RunState(99).String())
}

func TestTrialReportHelpers(t *testing.T) {
	r := &TrialReport{}
	assert.Equal(t, StateInit, r.Final())

	r.Transitions = []Transition{
		{From: StateInit, To: StateWired},
		{From: StateWired, To: StateRunning},
		{From: StateRunning, To: StateCompleted},
	}
	assert.Equal(t, StateCompleted, r.Final())
	assert.True(t, r.Visited(StateRunning))
	assert.False(t, r.Visited(StateResetting))

	r.Outcome = OutcomeInterrupted
	assert.True(t, r.Handled())
	r.Outcome = OutcomeFailed
	assert.False(t, r.Handled())
}
