package domain

import "time"

// DailyActivity is the per-user, per-date aggregate of steps, derived metrics and manual entries.
// Calories and Distance are derived; Distance is stored in meters.
type DailyActivity struct {
	ID            string
	UserID        string
	Date          string
	Steps         int
	Calories      int
	Distance      int
	ManualEntries []ManualEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ManualEntry is a user-logged exercise attached to a DailyActivity.
type ManualEntry struct {
	ID         string
	ActivityID string
	UserID     string
	Activity   string
	Duration   *int
	Calories   int
	Timestamp  time.Time
}

// ManualEntryInput is the caller-provided part of a ManualEntry.
type ManualEntryInput struct {
	Activity string
	Duration *int
	Calories int
}

// ActivityPatch carries the fields of a partial aggregate update; nil fields are left untouched.
type ActivityPatch struct {
	Steps    *int
	Calories *int
	Distance *int
}

// EntryPatch carries the fields of a partial manual entry update.
type EntryPatch struct {
	Activity *string
	Duration *int
	Calories *int
}

// Cursor models the pagination token for date-descending listings.
type Cursor struct {
	Date string
}

// ActivityFilter narrows ListActivities. Dates are inclusive ISO keys; Limit 0 means unbounded.
// Results are ordered by date descending.
type ActivityFilter struct {
	Date   string
	From   string
	To     string
	Limit  int
	Cursor *Cursor
}

// EntryFilter narrows ListManualEntries.
type EntryFilter struct {
	ActivityID string
	Activity   string
}

// WeeklySummary aggregates the trailing seven days of recorded activity.
type WeeklySummary struct {
	From            string
	To              string
	Days            int
	AverageSteps    float64
	AverageDistance float64
	AverageCalories float64
	TotalCalories   int
}

func entryCalories(entries []ManualEntry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Calories)
	}
	return out
}

// Apply merges the patch into a copy of the entry.
func (p EntryPatch) Apply(entry ManualEntry) ManualEntry {
	if p.Activity != nil {
		entry.Activity = *p.Activity
	}
	if p.Duration != nil {
		d := *p.Duration
		entry.Duration = &d
	}
	if p.Calories != nil {
		entry.Calories = *p.Calories
	}
	return entry
}

// Apply merges the patch into a copy of the aggregate.
func (p ActivityPatch) Apply(activity DailyActivity) DailyActivity {
	if p.Steps != nil {
		activity.Steps = *p.Steps
	}
	if p.Calories != nil {
		activity.Calories = *p.Calories
	}
	if p.Distance != nil {
		activity.Distance = *p.Distance
	}
	return activity
}
