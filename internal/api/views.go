package api

import (
	"time"

	"example.com/fittrack/internal/domain"
)

// ActivityView is the wire form of a daily aggregate. Distance is meters; DistanceKm is display only.
type ActivityView struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Date          string      `json:"date"`
	Steps         int         `json:"steps"`
	Calories      int         `json:"calories"`
	Distance      int         `json:"distance"`
	DistanceKm    float64     `json:"distance_km"`
	ManualEntries []EntryView `json:"manual_entries"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// EntryView is the wire form of a manual entry.
type EntryView struct {
	ID            string    `json:"id"`
	DailyActivity string    `json:"daily_activity"`
	UserID        string    `json:"user_id,omitempty"`
	Activity      string    `json:"activity"`
	Duration      *int      `json:"duration,omitempty"`
	Calories      int       `json:"calories"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProfileView is the wire form of a profile.
type ProfileView struct {
	StepGoal int      `json:"step_goal"`
	Weight   *float64 `json:"weight,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Age      *int     `json:"age,omitempty"`
	Gender   string   `json:"gender,omitempty"`
}

// UserView is the public part of an account.
type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WeeklyView is the response of GET /v1/weekly-activity/{id}.
type WeeklyView struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	Days            int     `json:"days"`
	AverageSteps    float64 `json:"average_steps"`
	AverageDistance float64 `json:"average_distance"`
	AverageCalories float64 `json:"average_calories"`
	TotalCalories   int     `json:"total_calories"`
}

// ProfileRequest is a shallow profile patch. Absent fields are left untouched.
type ProfileRequest struct {
	StepGoal *int     `json:"step_goal,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Age      *int     `json:"age,omitempty"`
	Gender   *string  `json:"gender,omitempty"`
}

// RegisterRequest is the payload for POST /v1/users.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	ProfileRequest
}

// LoginRequest is the payload for POST /v1/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by registration and login.
type SessionResponse struct {
	User      UserView     `json:"user"`
	Profile   *ProfileView `json:"profile,omitempty"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// StepsRequest overwrites today's step count.
type StepsRequest struct {
	Steps *int `json:"steps"`
}

// EntryRequest appends a manual entry. DailyActivity is required on POST /v1/manual-entry only.
type EntryRequest struct {
	DailyActivity string `json:"daily_activity,omitempty"`
	Activity      string `json:"activity"`
	Duration      *int   `json:"duration,omitempty"`
	Calories      int    `json:"calories"`
}

// EntryPatchRequest partially updates a manual entry.
type EntryPatchRequest struct {
	Activity *string `json:"activity,omitempty"`
	Duration *int    `json:"duration,omitempty"`
	Calories *int    `json:"calories,omitempty"`
}

// CreateActivityRequest records an aggregate for an explicit date.
type CreateActivityRequest struct {
	Date  string `json:"date"`
	Steps int    `json:"steps"`
}

// ActivityPatchRequest partially updates an aggregate. Calories and distance are always derived
// server side, so only steps is honoured.
type ActivityPatchRequest struct {
	Steps *int `json:"steps,omitempty"`
}

// SampleView is one accelerometer reading.
type SampleView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SamplesRequest is a batch of accelerometer readings in arrival order.
type SamplesRequest struct {
	Samples []SampleView `json:"samples"`
}

// SamplesResponse reports the steps detected in a batch and the resulting aggregate.
type SamplesResponse struct {
	Detected int          `json:"detected"`
	Activity ActivityView `json:"activity"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ListEntriesResponse packages manual entry listings.
type ListEntriesResponse struct {
	Items []EntryView `json:"items"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Type       string   `json:"type"`
	Detail     string   `json:"detail"`
	Violations []string `json:"violations,omitempty"`
}

// ToActivityView converts an aggregate for the wire.
func ToActivityView(a domain.DailyActivity) ActivityView {
	entries := make([]EntryView, 0, len(a.ManualEntries))
	for _, e := range a.ManualEntries {
		entries = append(entries, ToEntryView(e))
	}
	return ActivityView{
		ID:            a.ID,
		UserID:        a.UserID,
		Date:          a.Date,
		Steps:         a.Steps,
		Calories:      a.Calories,
		Distance:      a.Distance,
		DistanceKm:    float64(a.Distance) / 1000,
		ManualEntries: entries,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// Activity converts the view back to the domain type.
func (v ActivityView) Activity() domain.DailyActivity {
	entries := make([]domain.ManualEntry, 0, len(v.ManualEntries))
	for _, e := range v.ManualEntries {
		entry := e.Entry()
		if entry.UserID == "" {
			entry.UserID = v.UserID
		}
		entries = append(entries, entry)
	}
	return domain.DailyActivity{
		ID:            v.ID,
		UserID:        v.UserID,
		Date:          v.Date,
		Steps:         v.Steps,
		Calories:      v.Calories,
		Distance:      v.Distance,
		ManualEntries: entries,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

// ToEntryView converts a manual entry for the wire.
func ToEntryView(e domain.ManualEntry) EntryView {
	return EntryView{
		ID:            e.ID,
		DailyActivity: e.ActivityID,
		UserID:        e.UserID,
		Activity:      e.Activity,
		Duration:      e.Duration,
		Calories:      e.Calories,
		Timestamp:     e.Timestamp,
	}
}

// Entry converts the view back to the domain type.
func (v EntryView) Entry() domain.ManualEntry {
	return domain.ManualEntry{
		ID:         v.ID,
		ActivityID: v.DailyActivity,
		UserID:     v.UserID,
		Activity:   v.Activity,
		Duration:   v.Duration,
		Calories:   v.Calories,
		Timestamp:  v.Timestamp,
	}
}

// ToProfileView converts a profile for the wire.
func ToProfileView(p domain.UserProfile) ProfileView {
	return ProfileView{
		StepGoal: p.StepGoal,
		Weight:   p.Weight,
		Height:   p.Height,
		Age:      p.Age,
		Gender:   string(p.Gender),
	}
}

// Profile converts the view back to the domain type.
func (v ProfileView) Profile() domain.UserProfile {
	return domain.UserProfile{
		StepGoal: v.StepGoal,
		Weight:   v.Weight,
		Height:   v.Height,
		Age:      v.Age,
		Gender:   domain.Gender(v.Gender),
	}
}

// ToProfileRequest expresses a full profile as a patch.
func ToProfileRequest(p domain.UserProfile) ProfileRequest {
	req := ProfileRequest{StepGoal: &p.StepGoal, Weight: p.Weight, Height: p.Height, Age: p.Age}
	if p.Gender != "" {
		g := string(p.Gender)
		req.Gender = &g
	}
	return req
}

// Patch converts the request to a domain patch. Gender accepts the long form or a single letter;
// any other value is passed through for validation to reject.
func (r ProfileRequest) Patch() domain.ProfilePatch {
	patch := domain.ProfilePatch{StepGoal: r.StepGoal, Weight: r.Weight, Height: r.Height, Age: r.Age}
	if r.Gender != nil {
		g, err := domain.ParseGender(*r.Gender)
		if err != nil {
			g = domain.Gender(*r.Gender)
		}
		patch.Gender = &g
	}
	return patch
}

// ToUserView hides the password hash.
func ToUserView(u domain.User) UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}

// User converts the view back to the domain type.
func (v UserView) User() domain.User {
	return domain.User{
		ID:        v.ID,
		Username:  v.Username,
		Email:     v.Email,
		FirstName: v.FirstName,
		LastName:  v.LastName,
		CreatedAt: v.CreatedAt,
	}
}

// ToWeeklyView converts a weekly summary for the wire.
func ToWeeklyView(s domain.WeeklySummary) WeeklyView {
	return WeeklyView{
		From:            s.From,
		To:              s.To,
		Days:            s.Days,
		AverageSteps:    s.AverageSteps,
		AverageDistance: s.AverageDistance,
		AverageCalories: s.AverageCalories,
		TotalCalories:   s.TotalCalories,
	}
}
