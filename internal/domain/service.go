// Package domain defines daily activity aggregation, profiles and accounts.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fittrack/internal/metrics"
	"example.com/fittrack/internal/observability"
)

// ServiceOption configures ActivityService.
type ServiceOption func(*ActivityService)

// WithClock overrides the time source used for "today" and timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ActivityService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone in which calendar dates are computed.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *ActivityService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *ActivityService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ActivityService owns the daily aggregates of each user. Writes to one (user, date) aggregate are
// serialized in-process so concurrent step updates and entry appends do not overwrite each other.
type ActivityService struct {
	repo   ActivityRepository
	engine metrics.Engine
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
	locks  *keyedMutex
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo ActivityRepository, engine metrics.Engine, opts ...ServiceOption) *ActivityService {
	s := &ActivityService{
		repo:   repo,
		engine: engine,
		now:    time.Now,
		loc:    time.UTC,
		logger: slog.Default(),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the metric conversions used by the service.
func (s *ActivityService) Engine() metrics.Engine { return s.engine }

// Today returns the current date key.
func (s *ActivityService) Today() string {
	return DateKey(s.now(), s.loc)
}

// GetTodaysActivity returns today's aggregate, creating a zeroed one when none exists.
func (s *ActivityService) GetTodaysActivity(ctx context.Context, userID string) (DailyActivity, error) {
	date := s.Today()
	unlock := s.locks.Lock(aggregateKey(userID, date))
	defer unlock()

	return s.getOrCreate(ctx, userID, date)
}

// UpdateTodaysSteps overwrites today's step count and recomputes derived metrics.
func (s *ActivityService) UpdateTodaysSteps(ctx context.Context, userID string, steps int) (DailyActivity, error) {
	if err := ValidateSteps(steps); err != nil {
		return DailyActivity{}, err
	}

	date := s.Today()
	unlock := s.locks.Lock(aggregateKey(userID, date))
	defer unlock()

	activity, err := s.getOrCreate(ctx, userID, date)
	if err != nil {
		return DailyActivity{}, err
	}
	return s.writeSteps(ctx, activity, steps)
}

// AdvanceTodaysSteps computes today's new step count from the stored aggregate while holding its
// writer lock, so concurrent callers persist their counts in the order they computed them.
func (s *ActivityService) AdvanceTodaysSteps(ctx context.Context, userID string, advance func(DailyActivity) (int, error)) (DailyActivity, error) {
	date := s.Today()
	unlock := s.locks.Lock(aggregateKey(userID, date))
	defer unlock()

	activity, err := s.getOrCreate(ctx, userID, date)
	if err != nil {
		return DailyActivity{}, err
	}
	steps, err := advance(activity)
	if err != nil {
		return DailyActivity{}, err
	}
	if err := ValidateSteps(steps); err != nil {
		return DailyActivity{}, err
	}
	return s.writeSteps(ctx, activity, steps)
}

// AddManualEntry appends an entry to today's aggregate.
func (s *ActivityService) AddManualEntry(ctx context.Context, userID string, input ManualEntryInput) (DailyActivity, error) {
	if err := ValidateManualEntry(input.Activity, input.Duration, input.Calories); err != nil {
		return DailyActivity{}, err
	}

	date := s.Today()
	unlock := s.locks.Lock(aggregateKey(userID, date))
	defer unlock()

	activity, err := s.getOrCreate(ctx, userID, date)
	if err != nil {
		return DailyActivity{}, err
	}
	updated, _, err := s.appendEntry(ctx, activity, input)
	return updated, err
}

// AddEntryToActivity appends an entry to an arbitrary aggregate owned by the user.
func (s *ActivityService) AddEntryToActivity(ctx context.Context, userID, activityID string, input ManualEntryInput) (ManualEntry, error) {
	if err := ValidateManualEntry(input.Activity, input.Duration, input.Calories); err != nil {
		return ManualEntry{}, err
	}

	unlock, activity, err := s.lockActivity(ctx, userID, activityID)
	if err != nil {
		return ManualEntry{}, err
	}
	defer unlock()

	_, entry, err := s.appendEntry(ctx, activity, input)
	return entry, err
}

// GetHistoryData returns up to n recorded aggregates, most recent date first.
func (s *ActivityService) GetHistoryData(ctx context.Context, userID string, n int) ([]DailyActivity, error) {
	if n <= 0 {
		return []DailyActivity{}, nil
	}
	activities, err := s.repo.ListActivities(ctx, userID, ActivityFilter{Limit: n})
	if err != nil {
		return nil, err
	}
	sortByDateDesc(activities)
	if len(activities) > n {
		activities = activities[:n]
	}
	return s.deriveAll(activities), nil
}

// ClearAllData removes every aggregate and manual entry of the user. Profiles are untouched.
func (s *ActivityService) ClearAllData(ctx context.Context, userID string) error {
	if err := s.repo.ClearUserData(ctx, userID); err != nil {
		return err
	}
	observability.RecordDataReset()
	s.logger.Info("cleared activity data", "user_id", userID)
	return nil
}

// GetActivity fetches one aggregate by id.
func (s *ActivityService) GetActivity(ctx context.Context, userID, activityID string) (DailyActivity, error) {
	activity, err := s.repo.GetActivity(ctx, userID, activityID)
	if err != nil {
		return DailyActivity{}, err
	}
	if activity == nil {
		return DailyActivity{}, &NotFoundError{Resource: ResourceDailyActivity, ID: activityID}
	}
	return s.derive(*activity), nil
}

// ListActivities returns aggregates matching filter plus the cursor of the next page, if any.
func (s *ActivityService) ListActivities(ctx context.Context, userID string, filter ActivityFilter) ([]DailyActivity, *Cursor, error) {
	var v violations
	for _, date := range []string{filter.Date, filter.From, filter.To} {
		if date == "" {
			continue
		}
		if _, err := ParseDateKey(date); err != nil {
			v.addf("%s", err.Error())
		}
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		v.addf("start_date must not be after end_date")
	}
	if err := v.err(); err != nil {
		return nil, nil, err
	}

	activities, err := s.repo.ListActivities(ctx, userID, filter)
	if err != nil {
		return nil, nil, err
	}
	sortByDateDesc(activities)

	var next *Cursor
	if filter.Limit > 0 && len(activities) == filter.Limit {
		next = &Cursor{Date: activities[len(activities)-1].Date}
	}
	return s.deriveAll(activities), next, nil
}

// CreateActivity records an aggregate for an explicit date. A date that already has one yields ErrConflict.
func (s *ActivityService) CreateActivity(ctx context.Context, userID, date string, steps int) (DailyActivity, error) {
	var v violations
	if _, err := ParseDateKey(date); err != nil {
		v.addf("%s", err.Error())
	}
	if err := ValidateSteps(steps); err != nil {
		v = append(v, Violations(err)...)
	}
	if err := v.err(); err != nil {
		return DailyActivity{}, err
	}

	unlock := s.locks.Lock(aggregateKey(userID, date))
	defer unlock()

	now := s.now().UTC()
	activity := s.derive(DailyActivity{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          date,
		Steps:         steps,
		ManualEntries: []ManualEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	created, err := s.repo.CreateActivity(ctx, activity)
	if err != nil {
		return DailyActivity{}, err
	}
	return s.derive(created), nil
}

// UpdateActivity applies a step change to an aggregate; calories and distance are always recomputed.
func (s *ActivityService) UpdateActivity(ctx context.Context, userID, activityID string, steps *int) (DailyActivity, error) {
	if steps != nil {
		if err := ValidateSteps(*steps); err != nil {
			return DailyActivity{}, err
		}
	}

	unlock, activity, err := s.lockActivity(ctx, userID, activityID)
	if err != nil {
		return DailyActivity{}, err
	}
	defer unlock()

	target := activity.Steps
	if steps != nil {
		target = *steps
	}
	return s.writeSteps(ctx, activity, target)
}

// DeleteActivity removes one aggregate together with its entries.
func (s *ActivityService) DeleteActivity(ctx context.Context, userID, activityID string) error {
	unlock, _, err := s.lockActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.repo.DeleteActivity(ctx, userID, activityID)
}

// GetManualEntry fetches one manual entry.
func (s *ActivityService) GetManualEntry(ctx context.Context, userID, entryID string) (ManualEntry, error) {
	entry, err := s.repo.GetManualEntry(ctx, userID, entryID)
	if err != nil {
		return ManualEntry{}, err
	}
	if entry == nil {
		return ManualEntry{}, &NotFoundError{Resource: ResourceManualEntry, ID: entryID}
	}
	return *entry, nil
}

// ListManualEntries returns the user's entries matching filter.
func (s *ActivityService) ListManualEntries(ctx context.Context, userID string, filter EntryFilter) ([]ManualEntry, error) {
	return s.repo.ListManualEntries(ctx, userID, filter)
}

// UpdateManualEntry merges patch into an entry and recomputes the parent's calories.
func (s *ActivityService) UpdateManualEntry(ctx context.Context, userID, entryID string, patch EntryPatch) (ManualEntry, error) {
	current, err := s.GetManualEntry(ctx, userID, entryID)
	if err != nil {
		return ManualEntry{}, err
	}
	merged := patch.Apply(current)
	if err := ValidateManualEntry(merged.Activity, merged.Duration, merged.Calories); err != nil {
		return ManualEntry{}, err
	}
	if patch.Activity != nil {
		trimmed := strings.TrimSpace(*patch.Activity)
		patch.Activity = &trimmed
	}

	unlock, _, err := s.lockActivity(ctx, userID, current.ActivityID)
	if err != nil {
		return ManualEntry{}, err
	}
	defer unlock()

	updated, err := s.repo.UpdateManualEntry(ctx, userID, entryID, patch)
	if err != nil {
		return ManualEntry{}, err
	}
	if err := s.recompute(ctx, userID, current.ActivityID); err != nil {
		return ManualEntry{}, err
	}
	return updated, nil
}

// DeleteManualEntry removes an entry and recomputes the parent's calories.
func (s *ActivityService) DeleteManualEntry(ctx context.Context, userID, entryID string) error {
	current, err := s.GetManualEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}

	unlock, _, err := s.lockActivity(ctx, userID, current.ActivityID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.DeleteManualEntry(ctx, userID, entryID); err != nil {
		return err
	}
	return s.recompute(ctx, userID, current.ActivityID)
}

// WeeklySummary averages the recorded days among the last seven calendar days, today included.
func (s *ActivityService) WeeklySummary(ctx context.Context, userID string) (WeeklySummary, error) {
	to := s.Today()
	from, err := ShiftDateKey(to, -6)
	if err != nil {
		return WeeklySummary{}, err
	}

	activities, err := s.repo.ListActivities(ctx, userID, ActivityFilter{From: from, To: to})
	if err != nil {
		return WeeklySummary{}, err
	}

	summary := WeeklySummary{From: from, To: to, Days: len(activities)}
	if len(activities) == 0 {
		return summary, nil
	}

	var steps, distance int
	for _, a := range s.deriveAll(activities) {
		steps += a.Steps
		distance += a.Distance
		summary.TotalCalories += a.Calories
	}
	days := float64(len(activities))
	summary.AverageSteps = float64(steps) / days
	summary.AverageDistance = float64(distance) / days
	summary.AverageCalories = float64(summary.TotalCalories) / days
	return summary, nil
}

func (s *ActivityService) getOrCreate(ctx context.Context, userID, date string) (DailyActivity, error) {
	existing, err := s.repo.FindActivityByDate(ctx, userID, date)
	if err != nil {
		return DailyActivity{}, err
	}
	if existing != nil {
		return s.derive(*existing), nil
	}

	now := s.now().UTC()
	created, err := s.repo.CreateActivity(ctx, DailyActivity{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          date,
		ManualEntries: []ManualEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, ErrConflict) {
		// Another writer created the day first.
		existing, err = s.repo.FindActivityByDate(ctx, userID, date)
		if err != nil {
			return DailyActivity{}, err
		}
		if existing == nil {
			return DailyActivity{}, fmt.Errorf("daily activity for %s missing after create conflict", date)
		}
		return s.derive(*existing), nil
	}
	if err != nil {
		return DailyActivity{}, err
	}
	s.logger.Debug("created daily activity", "user_id", userID, "date", date, "activity_id", created.ID)
	return s.derive(created), nil
}

func (s *ActivityService) writeSteps(ctx context.Context, activity DailyActivity, steps int) (DailyActivity, error) {
	activity.Steps = steps
	activity = s.derive(activity)

	updated, err := s.repo.UpdateActivity(ctx, activity.UserID, activity.ID, ActivityPatch{
		Steps:    &activity.Steps,
		Calories: &activity.Calories,
		Distance: &activity.Distance,
	})
	if err != nil {
		return DailyActivity{}, err
	}
	observability.RecordStepsUpdated()
	return s.derive(updated), nil
}

func (s *ActivityService) appendEntry(ctx context.Context, activity DailyActivity, input ManualEntryInput) (DailyActivity, ManualEntry, error) {
	entry := ManualEntry{
		ID:         uuid.NewString(),
		ActivityID: activity.ID,
		UserID:     activity.UserID,
		Activity:   strings.TrimSpace(input.Activity),
		Duration:   input.Duration,
		Calories:   input.Calories,
		Timestamp:  s.now().UTC(),
	}
	created, err := s.repo.CreateManualEntry(ctx, activity.UserID, entry)
	if err != nil {
		return DailyActivity{}, ManualEntry{}, err
	}

	activity.ManualEntries = append(activity.ManualEntries, created)
	activity = s.derive(activity)
	updated, err := s.repo.UpdateActivity(ctx, activity.UserID, activity.ID, ActivityPatch{Calories: &activity.Calories})
	if err != nil {
		return DailyActivity{}, ManualEntry{}, err
	}
	observability.RecordManualEntry(created.Calories)
	return s.derive(updated), created, nil
}

// recompute rewrites the derived calories of an aggregate after its entries changed; callers hold its lock.
func (s *ActivityService) recompute(ctx context.Context, userID, activityID string) error {
	activity, err := s.repo.GetActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return &NotFoundError{Resource: ResourceDailyActivity, ID: activityID}
	}
	derived := s.derive(*activity)
	_, err = s.repo.UpdateActivity(ctx, userID, activityID, ActivityPatch{
		Calories: &derived.Calories,
		Distance: &derived.Distance,
	})
	return err
}

// lockActivity resolves the aggregate's date, takes its writer lock and re-reads it under the lock.
func (s *ActivityService) lockActivity(ctx context.Context, userID, activityID string) (func(), DailyActivity, error) {
	activity, err := s.GetActivity(ctx, userID, activityID)
	if err != nil {
		return nil, DailyActivity{}, err
	}
	unlock := s.locks.Lock(aggregateKey(userID, activity.Date))
	activity, err = s.GetActivity(ctx, userID, activityID)
	if err != nil {
		unlock()
		return nil, DailyActivity{}, err
	}
	return unlock, activity, nil
}

// derive recomputes calories and distance from steps and manual entries.
func (s *ActivityService) derive(activity DailyActivity) DailyActivity {
	if activity.ManualEntries == nil {
		activity.ManualEntries = []ManualEntry{}
	}
	activity.Calories = s.engine.TotalCalories(activity.Steps, entryCalories(activity.ManualEntries)...)
	activity.Distance = s.engine.DistanceFromSteps(activity.Steps)
	return activity
}

func (s *ActivityService) deriveAll(activities []DailyActivity) []DailyActivity {
	out := make([]DailyActivity, 0, len(activities))
	for _, a := range activities {
		out = append(out, s.derive(a))
	}
	return out
}

func sortByDateDesc(activities []DailyActivity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Date > activities[j].Date
	})
}
