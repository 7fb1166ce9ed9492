// Package metrics derives calories and distance from step counts.
package metrics

import "math"

const (
	// DefaultCaloriesPerStep is the kcal burned per detected step.
	DefaultCaloriesPerStep = 0.04
	// DefaultMetersPerStep is the average stride length in meters.
	DefaultMetersPerStep = 0.762
)

// Engine converts step counts into derived metrics. The zero value uses the defaults.
type Engine struct {
	CaloriesPerStep float64
	MetersPerStep   float64
}

// NewEngine returns an Engine with explicit conversion factors; non-positive values fall back to defaults.
func NewEngine(caloriesPerStep, metersPerStep float64) Engine {
	return Engine{CaloriesPerStep: caloriesPerStep, MetersPerStep: metersPerStep}
}

// CaloriesFromSteps returns round(steps * kcal-per-step).
func (e Engine) CaloriesFromSteps(steps int) int {
	return int(math.Round(float64(steps) * e.caloriesPerStep()))
}

// DistanceFromSteps returns the walked distance in meters.
func (e Engine) DistanceFromSteps(steps int) int {
	return int(math.Round(float64(steps) * e.metersPerStep()))
}

// TotalCalories adds manual entry calories to the step-derived calories.
func (e Engine) TotalCalories(steps int, entryCalories ...int) int {
	total := e.CaloriesFromSteps(steps)
	for _, c := range entryCalories {
		total += c
	}
	return total
}

// Kilometers converts a stored meter distance for display.
func Kilometers(meters int) float64 {
	return float64(meters) / 1000
}

func (e Engine) caloriesPerStep() float64 {
	if e.CaloriesPerStep <= 0 {
		return DefaultCaloriesPerStep
	}
	return e.CaloriesPerStep
}

func (e Engine) metersPerStep() float64 {
	if e.MetersPerStep <= 0 {
		return DefaultMetersPerStep
	}
	return e.MetersPerStep
}
