// Package memory keeps activities, profiles and users in process memory for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/fittrack/internal/domain"
)

// Repository implements the domain repositories over maps guarded by a RWMutex.
type Repository struct {
	mu         sync.RWMutex
	activities map[string]domain.DailyActivity
	entries    map[string]domain.ManualEntry
	entryOrder []string
	profiles   map[string]domain.UserProfile
	users      map[string]domain.User
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		activities: make(map[string]domain.DailyActivity),
		entries:    make(map[string]domain.ManualEntry),
		profiles:   make(map[string]domain.UserProfile),
		users:      make(map[string]domain.User),
	}
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(_ context.Context, activity domain.DailyActivity) (domain.DailyActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.activities {
		if existing.UserID == activity.UserID && existing.Date == activity.Date {
			return domain.DailyActivity{}, domain.ErrConflict
		}
	}
	if strings.TrimSpace(activity.ID) == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	if activity.UpdatedAt.IsZero() {
		activity.UpdatedAt = activity.CreatedAt
	}
	activity.ManualEntries = nil
	r.activities[activity.ID] = activity
	return r.hydrate(activity), nil
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(_ context.Context, userID, activityID string) (*domain.DailyActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.UserID != userID {
		return nil, nil
	}
	out := r.hydrate(activity)
	return &out, nil
}

// FindActivityByDate implements domain.ActivityRepository.
func (r *Repository) FindActivityByDate(_ context.Context, userID, date string) (*domain.DailyActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, activity := range r.activities {
		if activity.UserID == userID && activity.Date == date {
			out := r.hydrate(activity)
			return &out, nil
		}
	}
	return nil, nil
}

// UpdateActivity implements domain.ActivityRepository.
func (r *Repository) UpdateActivity(_ context.Context, userID, activityID string, patch domain.ActivityPatch) (domain.DailyActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.UserID != userID {
		return domain.DailyActivity{}, &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: activityID}
	}
	activity = patch.Apply(activity)
	activity.UpdatedAt = time.Now().UTC()
	r.activities[activityID] = activity
	return r.hydrate(activity), nil
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(_ context.Context, userID, activityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.UserID != userID {
		return &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: activityID}
	}
	delete(r.activities, activityID)
	r.dropEntries(func(e domain.ManualEntry) bool { return e.ActivityID == activityID })
	return nil
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(_ context.Context, userID string, filter domain.ActivityFilter) ([]domain.DailyActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DailyActivity, 0)
	for _, activity := range r.activities {
		if activity.UserID != userID || !matchesFilter(activity.Date, filter) {
			continue
		}
		out = append(out, r.hydrate(activity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CreateManualEntry implements domain.ActivityRepository.
func (r *Repository) CreateManualEntry(_ context.Context, userID string, entry domain.ManualEntry) (domain.ManualEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.activities[entry.ActivityID]
	if !ok || parent.UserID != userID {
		return domain.ManualEntry{}, &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: entry.ActivityID}
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if _, taken := r.entries[entry.ID]; taken {
		return domain.ManualEntry{}, domain.ErrConflict
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.UserID = userID
	entry = cloneEntry(entry)
	r.entries[entry.ID] = entry
	r.entryOrder = append(r.entryOrder, entry.ID)
	return cloneEntry(entry), nil
}

// GetManualEntry implements domain.ActivityRepository.
func (r *Repository) GetManualEntry(_ context.Context, userID, entryID string) (*domain.ManualEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[entryID]
	if !ok || entry.UserID != userID {
		return nil, nil
	}
	out := cloneEntry(entry)
	return &out, nil
}

// UpdateManualEntry implements domain.ActivityRepository.
func (r *Repository) UpdateManualEntry(_ context.Context, userID, entryID string, patch domain.EntryPatch) (domain.ManualEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok || entry.UserID != userID {
		return domain.ManualEntry{}, &domain.NotFoundError{Resource: domain.ResourceManualEntry, ID: entryID}
	}
	entry = patch.Apply(entry)
	r.entries[entryID] = entry
	return cloneEntry(entry), nil
}

// DeleteManualEntry implements domain.ActivityRepository.
func (r *Repository) DeleteManualEntry(_ context.Context, userID, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok || entry.UserID != userID {
		return &domain.NotFoundError{Resource: domain.ResourceManualEntry, ID: entryID}
	}
	r.dropEntries(func(e domain.ManualEntry) bool { return e.ID == entryID })
	return nil
}

// ListManualEntries implements domain.ActivityRepository.
func (r *Repository) ListManualEntries(_ context.Context, userID string, filter domain.EntryFilter) ([]domain.ManualEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ManualEntry, 0)
	for _, id := range r.entryOrder {
		entry := r.entries[id]
		if entry.UserID != userID {
			continue
		}
		if filter.ActivityID != "" && entry.ActivityID != filter.ActivityID {
			continue
		}
		if filter.Activity != "" && !strings.Contains(strings.ToLower(entry.Activity), strings.ToLower(filter.Activity)) {
			continue
		}
		out = append(out, cloneEntry(entry))
	}
	return out, nil
}

// ClearUserData implements domain.ActivityRepository.
func (r *Repository) ClearUserData(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, activity := range r.activities {
		if activity.UserID == userID {
			delete(r.activities, id)
		}
	}
	r.dropEntries(func(e domain.ManualEntry) bool { return e.UserID == userID })
	return nil
}

// GetProfile implements domain.ProfileRepository.
func (r *Repository) GetProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	out := cloneProfile(profile)
	return &out, nil
}

// PutProfile implements domain.ProfileRepository.
func (r *Repository) PutProfile(_ context.Context, userID string, profile domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[userID] = cloneProfile(profile)
	return nil
}

// CreateUser implements domain.UserRepository.
func (r *Repository) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return domain.User{}, domain.ErrConflict
		}
	}
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = user
	return user, nil
}

// GetUser implements domain.UserRepository.
func (r *Repository) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// FindUserByUsername implements domain.UserRepository.
func (r *Repository) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// hydrate attaches the aggregate's entries in insertion order; callers hold r.mu.
func (r *Repository) hydrate(activity domain.DailyActivity) domain.DailyActivity {
	entries := make([]domain.ManualEntry, 0)
	for _, id := range r.entryOrder {
		if entry := r.entries[id]; entry.ActivityID == activity.ID {
			entries = append(entries, cloneEntry(entry))
		}
	}
	activity.ManualEntries = entries
	return activity
}

// dropEntries removes matching entries; callers hold r.mu for writing.
func (r *Repository) dropEntries(match func(domain.ManualEntry) bool) {
	kept := r.entryOrder[:0]
	for _, id := range r.entryOrder {
		if entry := r.entries[id]; match(entry) {
			delete(r.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	r.entryOrder = kept
}

func matchesFilter(date string, filter domain.ActivityFilter) bool {
	if filter.Date != "" && date != filter.Date {
		return false
	}
	if filter.From != "" && date < filter.From {
		return false
	}
	if filter.To != "" && date > filter.To {
		return false
	}
	if filter.Cursor != nil && date >= filter.Cursor.Date {
		return false
	}
	return true
}

func cloneEntry(entry domain.ManualEntry) domain.ManualEntry {
	if entry.Duration != nil {
		d := *entry.Duration
		entry.Duration = &d
	}
	return entry
}

func cloneProfile(p domain.UserProfile) domain.UserProfile {
	return domain.UserProfile{StepGoal: p.StepGoal}.Merge(domain.ProfilePatch{
		Weight: p.Weight,
		Height: p.Height,
		Age:    p.Age,
		Gender: genderPtr(p.Gender),
	})
}

func genderPtr(g domain.Gender) *domain.Gender {
	if g == "" {
		return nil
	}
	return &g
}
