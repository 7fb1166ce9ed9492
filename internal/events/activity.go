// Package events defines the payloads published for daily activity changes.
package events

import "time"

// DailyActivityUpdated is emitted whenever a day's steps or derived metrics change.
type DailyActivityUpdated struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Steps      int       `json:"steps"`
	Calories   int       `json:"calories"`
	Distance   int       `json:"distance_m"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ManualEntryRecorded is emitted when a user logs an exercise against a day.
type ManualEntryRecorded struct {
	EntryID    string    `json:"entry_id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Activity   string    `json:"activity"`
	Duration   *int      `json:"duration_min,omitempty"`
	Calories   int       `json:"calories"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UserDataCleared is emitted after every aggregate and manual entry of a user was removed.
type UserDataCleared struct {
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event type names used for outbox routing.
const (
	TypeDailyActivityUpdated = "daily_activity.updated"
	TypeManualEntryRecorded  = "manual_entry.recorded"
	TypeUserDataCleared      = "user_data.cleared"
)
