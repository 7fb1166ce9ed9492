package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Accepted ranges for user input.
const (
	MinStepGoal       = 1000
	MaxStepGoal       = 100000
	MinWeightKg       = 20
	MaxWeightKg       = 300
	MinHeightCm       = 100
	MaxHeightCm       = 250
	MinAge            = 1
	MaxAge            = 150
	MaxDailySteps     = 100000
	MinActivityLength = 2
	MaxActivityLength = 50
	MaxEntryCalories  = 5000
	MaxEntryDuration  = 1440
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

type violations []string

func (v *violations) addf(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]string(nil), v...)}
}

// ValidateProfile checks every profile field and reports all violations at once.
func ValidateProfile(p UserProfile) error {
	var v violations
	v.profile(p)
	return v.err()
}

func (v *violations) profile(p UserProfile) {
	if p.StepGoal < MinStepGoal || p.StepGoal > MaxStepGoal {
		v.addf("Step goal must be between %d and %d", MinStepGoal, MaxStepGoal)
	}
	if p.Weight != nil && (*p.Weight < MinWeightKg || *p.Weight > MaxWeightKg) {
		v.addf("Weight must be between %d and %d kg", MinWeightKg, MaxWeightKg)
	}
	if p.Height != nil && (*p.Height < MinHeightCm || *p.Height > MaxHeightCm) {
		v.addf("Height must be between %d and %d cm", MinHeightCm, MaxHeightCm)
	}
	if p.Age != nil && (*p.Age < MinAge || *p.Age > MaxAge) {
		v.addf("Age must be between %d and %d", MinAge, MaxAge)
	}
	if p.Gender != "" && p.Gender != GenderMale && p.Gender != GenderFemale {
		v.addf("Gender must be %s or %s", GenderMale, GenderFemale)
	}
}

// ValidateManualEntry checks a manual entry's label, calories and optional duration.
func ValidateManualEntry(activity string, duration *int, calories int) error {
	var v violations
	n := utf8.RuneCountInString(strings.TrimSpace(activity))
	if n < MinActivityLength || n > MaxActivityLength {
		v.addf("Activity name must be between %d and %d characters", MinActivityLength, MaxActivityLength)
	}
	if calories < 0 || calories > MaxEntryCalories {
		v.addf("Calories must be between 0 and %d", MaxEntryCalories)
	}
	if duration != nil && (*duration < 0 || *duration > MaxEntryDuration) {
		v.addf("Duration must be between 0 and %d minutes", MaxEntryDuration)
	}
	return v.err()
}

// ValidateSteps checks a daily step count.
func ValidateSteps(steps int) error {
	var v violations
	if steps < 0 || steps > MaxDailySteps {
		v.addf("Steps must be between 0 and %d", MaxDailySteps)
	}
	return v.err()
}

func validateRegistration(in RegisterInput, profile UserProfile) error {
	var v violations
	n := utf8.RuneCountInString(strings.TrimSpace(in.Username))
	if n < MinUsernameLength || n > MaxUsernameLength {
		v.addf("Username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if len(in.Password) < MinPasswordLength {
		v.addf("Password must be at least %d characters", MinPasswordLength)
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			v.addf("Email must be a valid address")
		}
	}
	v.profile(profile)
	return v.err()
}
