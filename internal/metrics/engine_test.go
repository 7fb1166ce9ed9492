package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaloriesFromSteps(t *testing.T) {
	var engine Engine

	cases := map[int]int{
		0:     0,
		1000:  40,
		2500:  100,
		12345: 494,
	}
	for steps, want := range cases {
		require.Equal(t, want, engine.CaloriesFromSteps(steps), "steps=%d", steps)
	}
}

func TestDistanceFromStepsIsMeters(t *testing.T) {
	var engine Engine

	require.Equal(t, 0, engine.DistanceFromSteps(0))
	require.Equal(t, 762, engine.DistanceFromSteps(1000))
	require.Equal(t, 3810, engine.DistanceFromSteps(5000))
	require.InDelta(t, 3.81, Kilometers(engine.DistanceFromSteps(5000)), 0.0001)
}

func TestTotalCaloriesIsAdditive(t *testing.T) {
	var engine Engine

	require.Equal(t, 300, engine.TotalCalories(0, 300))
	require.Equal(t, 340, engine.TotalCalories(1000, 300))
	require.Equal(t, 40, engine.TotalCalories(1000))
	require.Equal(t, 490, engine.TotalCalories(1000, 300, 150))
}

func TestCustomConversionFactors(t *testing.T) {
	engine := NewEngine(0.05, 0.8)

	require.Equal(t, 50, engine.CaloriesFromSteps(1000))
	require.Equal(t, 800, engine.DistanceFromSteps(1000))

	fallback := NewEngine(-1, 0)
	require.Equal(t, 40, fallback.CaloriesFromSteps(1000))
	require.Equal(t, 762, fallback.DistanceFromSteps(1000))
}
