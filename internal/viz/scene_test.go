package viz

import (
	"errors"
	"testing"

	"github.com/harrison/trialctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneSingleOwner(t *testing.T) {
	s := NewScene("station")

	require.NoError(t, s.Claim("reset"))
	require.NoError(t, s.Claim("reset"), "re-claim by the same owner is allowed")

	err := s.Claim("main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSceneBusy))

	s.Delete()
	assert.Equal(t, "", s.Owner())
	require.NoError(t, s.Claim("main"))
	assert.Equal(t, "main", s.Owner())
}

func TestScenePublishOnlyFromOwner(t *testing.T) {
	s := NewScene("estimator")
	require.NoError(t, s.Claim("main"))

	s.Publish("main", Frame{Path: "pusher", Pose: models.Pose{X: 1}})
	s.Publish("other", Frame{Path: "pusher", Pose: models.Pose{X: 2}})

	frames := s.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 1.0, frames[0].Pose.X)

	s.Delete()
	assert.Empty(t, s.Frames())
	assert.Equal(t, 1, s.Deletes())
}

func TestTargetsClaimAllRollsBack(t *testing.T) {
	station := NewScene("station")
	estimator := NewScene("estimator")
	require.NoError(t, estimator.Claim("someone-else"))

	targets := Targets{Station: station, Estimator: estimator}
	err := targets.ClaimAll("main")
	require.Error(t, err)

	assert.Equal(t, "", station.Owner(), "station claim must be released")
	assert.Equal(t, "someone-else", estimator.Owner())
}

func TestTargetsNone(t *testing.T) {
	assert.Empty(t, None.Scenes())
	assert.NoError(t, None.ClaimAll("x"))
	None.DeleteAll()
}
