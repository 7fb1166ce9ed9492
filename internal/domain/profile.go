package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultStepGoal is the daily target used until the user picks one.
const DefaultStepGoal = 10000

// Gender is the optional biological sex recorded on a profile.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts the long form or the single-letter code.
func ParseGender(value string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("unknown gender %q", value)
}

// UserProfile holds user-configurable goals and biometrics. Weight is kg, Height is cm.
type UserProfile struct {
	StepGoal int
	Weight   *float64
	Height   *float64
	Age      *int
	Gender   Gender
}

// DefaultProfile returns the profile materialized when nothing is stored.
func DefaultProfile() UserProfile {
	return UserProfile{StepGoal: DefaultStepGoal}
}

// ProfilePatch is a shallow partial update; nil fields are left untouched.
type ProfilePatch struct {
	StepGoal *int
	Weight   *float64
	Height   *float64
	Age      *int
	Gender   *Gender
}

// Merge applies patch to a copy of p.
func (p UserProfile) Merge(patch ProfilePatch) UserProfile {
	if patch.StepGoal != nil {
		p.StepGoal = *patch.StepGoal
	}
	if patch.Weight != nil {
		w := *patch.Weight
		p.Weight = &w
	}
	if patch.Height != nil {
		h := *patch.Height
		p.Height = &h
	}
	if patch.Age != nil {
		a := *patch.Age
		p.Age = &a
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	return p
}

// User is an account able to log in.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}
