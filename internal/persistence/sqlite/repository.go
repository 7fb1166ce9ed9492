package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"example.com/fittrack/internal/domain"
)

const timeLayout = time.RFC3339Nano

const activitySelect = `SELECT id, user_id, date, steps, calories, distance_m, created_at, updated_at FROM daily_activities`

const entrySelect = `SELECT id, activity_id, user_id, activity, duration_min, calories, recorded_at FROM manual_entries`

// Repository implements the domain repositories on a SQLite database opened with Open.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.DailyActivity) (domain.DailyActivity, error) {
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
	_, err := r.db.ExecContext(ctx, `
INSERT INTO daily_activities(id, user_id, date, steps, calories, distance_m, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
`, activity.ID, activity.UserID, activity.Date, activity.Steps, activity.Calories, activity.Distance,
		activity.CreatedAt.UTC().Format(timeLayout), activity.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return domain.DailyActivity{}, mapWriteError("add daily activity", err)
	}
	activity.ManualEntries = []domain.ManualEntry{}
	return activity, nil
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, userID, activityID string) (*domain.DailyActivity, error) {
	return r.findActivity(ctx, activitySelect+` WHERE user_id = ? AND id = ?`, userID, activityID)
}

// FindActivityByDate implements domain.ActivityRepository.
func (r *Repository) FindActivityByDate(ctx context.Context, userID, date string) (*domain.DailyActivity, error) {
	return r.findActivity(ctx, activitySelect+` WHERE user_id = ? AND date = ?`, userID, date)
}

func (r *Repository) findActivity(ctx context.Context, query string, args ...any) (*domain.DailyActivity, error) {
	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily activity: %w", err)
	}
	out, err := r.hydrate(ctx, []domain.DailyActivity{activity})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// UpdateActivity implements domain.ActivityRepository.
func (r *Repository) UpdateActivity(ctx context.Context, userID, activityID string, patch domain.ActivityPatch) (domain.DailyActivity, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE daily_activities
SET steps = COALESCE(?, steps), calories = COALESCE(?, calories), distance_m = COALESCE(?, distance_m), updated_at = ?
WHERE user_id = ? AND id = ?
`, nullableInt(patch.Steps), nullableInt(patch.Calories), nullableInt(patch.Distance),
		time.Now().UTC().Format(timeLayout), userID, activityID)
	if err != nil {
		return domain.DailyActivity{}, fmt.Errorf("update daily activity: %w", err)
	}
	if err := requireAffected(res, domain.ResourceDailyActivity, activityID); err != nil {
		return domain.DailyActivity{}, err
	}
	updated, err := r.GetActivity(ctx, userID, activityID)
	if err != nil {
		return domain.DailyActivity{}, err
	}
	if updated == nil {
		return domain.DailyActivity{}, &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: activityID}
	}
	return *updated, nil
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(ctx context.Context, userID, activityID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM daily_activities WHERE user_id = ? AND id = ?`, userID, activityID)
	if err != nil {
		return fmt.Errorf("delete daily activity: %w", err)
	}
	return requireAffected(res, domain.ResourceDailyActivity, activityID)
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.DailyActivity, error) {
	query := activitySelect + ` WHERE user_id = ?`
	args := []any{userID}
	if filter.Date != "" {
		query += ` AND date = ?`
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		query += ` AND date >= ?`
		args = append(args, filter.From)
	}
	if filter.To != "" {
		query += ` AND date <= ?`
		args = append(args, filter.To)
	}
	if filter.Cursor != nil {
		query += ` AND date < ?`
		args = append(args, filter.Cursor.Date)
	}
	query += ` ORDER BY date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily activities: %w", err)
	}
	activities := make([]domain.DailyActivity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan daily activity: %w", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return r.hydrate(ctx, activities)
}

// CreateManualEntry implements domain.ActivityRepository.
func (r *Repository) CreateManualEntry(ctx context.Context, userID string, entry domain.ManualEntry) (domain.ManualEntry, error) {
	parent, err := r.GetActivity(ctx, userID, entry.ActivityID)
	if err != nil {
		return domain.ManualEntry{}, err
	}
	if parent == nil {
		return domain.ManualEntry{}, &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: entry.ActivityID}
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.UserID = userID
	_, err = r.db.ExecContext(ctx, `
INSERT INTO manual_entries(id, activity_id, user_id, activity, duration_min, calories, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, entry.ID, entry.ActivityID, userID, entry.Activity, nullableInt(entry.Duration), entry.Calories,
		entry.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return domain.ManualEntry{}, mapWriteError("add manual entry", err)
	}
	return entry, nil
}

// GetManualEntry implements domain.ActivityRepository.
func (r *Repository) GetManualEntry(ctx context.Context, userID, entryID string) (*domain.ManualEntry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx, entrySelect+` WHERE user_id = ? AND id = ?`, userID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manual entry: %w", err)
	}
	return &entry, nil
}

// UpdateManualEntry implements domain.ActivityRepository.
func (r *Repository) UpdateManualEntry(ctx context.Context, userID, entryID string, patch domain.EntryPatch) (domain.ManualEntry, error) {
	var activity any
	if patch.Activity != nil {
		activity = *patch.Activity
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE manual_entries
SET activity = COALESCE(?, activity), duration_min = COALESCE(?, duration_min), calories = COALESCE(?, calories)
WHERE user_id = ? AND id = ?
`, activity, nullableInt(patch.Duration), nullableInt(patch.Calories), userID, entryID)
	if err != nil {
		return domain.ManualEntry{}, fmt.Errorf("update manual entry: %w", err)
	}
	if err := requireAffected(res, domain.ResourceManualEntry, entryID); err != nil {
		return domain.ManualEntry{}, err
	}
	updated, err := r.GetManualEntry(ctx, userID, entryID)
	if err != nil {
		return domain.ManualEntry{}, err
	}
	if updated == nil {
		return domain.ManualEntry{}, &domain.NotFoundError{Resource: domain.ResourceManualEntry, ID: entryID}
	}
	return *updated, nil
}

// DeleteManualEntry implements domain.ActivityRepository.
func (r *Repository) DeleteManualEntry(ctx context.Context, userID, entryID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM manual_entries WHERE user_id = ? AND id = ?`, userID, entryID)
	if err != nil {
		return fmt.Errorf("delete manual entry: %w", err)
	}
	return requireAffected(res, domain.ResourceManualEntry, entryID)
}

// ListManualEntries implements domain.ActivityRepository.
func (r *Repository) ListManualEntries(ctx context.Context, userID string, filter domain.EntryFilter) ([]domain.ManualEntry, error) {
	query := entrySelect + ` WHERE user_id = ?`
	args := []any{userID}
	if filter.ActivityID != "" {
		query += ` AND activity_id = ?`
		args = append(args, filter.ActivityID)
	}
	if filter.Activity != "" {
		query += ` AND activity LIKE ?`
		args = append(args, "%"+filter.Activity+"%")
	}
	query += ` ORDER BY seq`
	return r.queryEntries(ctx, query, args...)
}

// ClearUserData implements domain.ActivityRepository.
func (r *Repository) ClearUserData(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM manual_entries WHERE user_id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear manual entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_activities WHERE user_id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear daily activities: %w", err)
	}
	return tx.Commit()
}

// GetProfile implements domain.ProfileRepository.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var (
		p      domain.UserProfile
		weight sql.NullFloat64
		height sql.NullFloat64
		age    sql.NullInt64
		gender string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT step_goal, weight_kg, height_cm, age, gender FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.StepGoal, &weight, &height, &age, &gender)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if weight.Valid {
		p.Weight = &weight.Float64
	}
	if height.Valid {
		p.Height = &height.Float64
	}
	if age.Valid {
		a := int(age.Int64)
		p.Age = &a
	}
	p.Gender = domain.Gender(gender)
	return &p, nil
}

// PutProfile implements domain.ProfileRepository.
func (r *Repository) PutProfile(ctx context.Context, userID string, p domain.UserProfile) error {
	var weight, height any
	if p.Weight != nil {
		weight = *p.Weight
	}
	if p.Height != nil {
		height = *p.Height
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles(user_id, step_goal, weight_kg, height_cm, age, gender)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  step_goal = excluded.step_goal,
  weight_kg = excluded.weight_kg,
  height_cm = excluded.height_cm,
  age = excluded.age,
  gender = excluded.gender
`, userID, p.StepGoal, weight, height, nullableInt(p.Age), string(p.Gender))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// CreateUser implements domain.UserRepository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users(id, username, email, first_name, last_name, password_hash, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return domain.User{}, mapWriteError("add user", err)
	}
	return user, nil
}

// GetUser implements domain.UserRepository.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.findUser(ctx, `id = ?`, userID)
}

// FindUserByUsername implements domain.UserRepository.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, `username = ?`, username)
}

func (r *Repository) findUser(ctx context.Context, predicate, arg string) (*domain.User, error) {
	var (
		u       domain.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, first_name, last_name, password_hash, created_at FROM users WHERE `+predicate, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	return &u, nil
}

func (r *Repository) hydrate(ctx context.Context, activities []domain.DailyActivity) ([]domain.DailyActivity, error) {
	for i := range activities {
		entries, err := r.queryEntries(ctx, entrySelect+` WHERE activity_id = ? ORDER BY seq`, activities[i].ID)
		if err != nil {
			return nil, err
		}
		activities[i].ManualEntries = entries
	}
	return activities, nil
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]domain.ManualEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manual entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ManualEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (domain.DailyActivity, error) {
	var (
		a                domain.DailyActivity
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Date, &a.Steps, &a.Calories, &a.Distance, &created, &updated); err != nil {
		return domain.DailyActivity{}, err
	}
	var err error
	if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return domain.DailyActivity{}, err
	}
	if a.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return domain.DailyActivity{}, err
	}
	return a, nil
}

func scanEntry(row rowScanner) (domain.ManualEntry, error) {
	var (
		e        domain.ManualEntry
		duration sql.NullInt64
		recorded string
	)
	if err := row.Scan(&e.ID, &e.ActivityID, &e.UserID, &e.Activity, &duration, &e.Calories, &recorded); err != nil {
		return domain.ManualEntry{}, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.Duration = &d
	}
	ts, err := time.Parse(timeLayout, recorded)
	if err != nil {
		return domain.ManualEntry{}, err
	}
	e.Timestamp = ts
	return e, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return domain.ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
