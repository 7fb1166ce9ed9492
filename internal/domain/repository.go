package domain

import "context"

// ActivityRepository persists daily aggregates and their manual entries.
//
// Lookups return nil without error when nothing matches. Update and delete of a missing record
// return a NotFoundError. Create keeps a caller-provided ID and assigns one otherwise; creating a
// second aggregate for the same (user, date) returns ErrConflict. Aggregates are returned with their
// manual entries in insertion order, and listings are ordered by date descending.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity DailyActivity) (DailyActivity, error)
	GetActivity(ctx context.Context, userID, activityID string) (*DailyActivity, error)
	FindActivityByDate(ctx context.Context, userID, date string) (*DailyActivity, error)
	UpdateActivity(ctx context.Context, userID, activityID string, patch ActivityPatch) (DailyActivity, error)
	DeleteActivity(ctx context.Context, userID, activityID string) error
	ListActivities(ctx context.Context, userID string, filter ActivityFilter) ([]DailyActivity, error)

	CreateManualEntry(ctx context.Context, userID string, entry ManualEntry) (ManualEntry, error)
	GetManualEntry(ctx context.Context, userID, entryID string) (*ManualEntry, error)
	UpdateManualEntry(ctx context.Context, userID, entryID string, patch EntryPatch) (ManualEntry, error)
	DeleteManualEntry(ctx context.Context, userID, entryID string) error
	ListManualEntries(ctx context.Context, userID string, filter EntryFilter) ([]ManualEntry, error)

	// ClearUserData removes every aggregate and manual entry owned by the user.
	ClearUserData(ctx context.Context, userID string) error
}

// ProfileRepository persists one profile per user. GetProfile returns nil when none is stored.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	PutProfile(ctx context.Context, userID string, profile UserProfile) error
}

// UserRepository persists accounts. CreateUser returns ErrConflict for a taken username.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
}
