// Package postgres stores daily activities, profiles and accounts in Postgres and records outbox events
// in the same transaction as each write.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/observability"
)

const uniqueViolation = "23505"

const activityColumns = `activity_id, user_id, to_char(day, 'YYYY-MM-DD'), steps, calories, distance_m, created_at, updated_at`

const entryColumns = `entry_id, activity_id, user_id, activity, duration_min, calories, recorded_at`

// Repository provides Postgres-backed persistence for the domain repositories.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withUser runs fn in a transaction scoped to userID through the app.user_id setting used by row level security.
func (r *Repository) withUser(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return &domain.TransportError{Op: "postgres acquire", Err: err}
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.DailyActivity) (domain.DailyActivity, error) {
	var created domain.DailyActivity
	err := r.withUser(ctx, activity.UserID, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO daily_activities (activity_id, user_id, day, steps, calories, distance_m, created_at, updated_at)
            VALUES ($1,$2,$3::date,$4,$5,$6,$7,$8)
            RETURNING ` + activityColumns

		row := tx.QueryRow(ctx, stmt,
			activity.ID,
			activity.UserID,
			activity.Date,
			activity.Steps,
			activity.Calories,
			activity.Distance,
			activity.CreatedAt,
			activity.UpdatedAt,
		)
		var err error
		created, err = scanActivity(row)
		if err != nil {
			return mapWriteError(err)
		}
		created.ManualEntries = []domain.ManualEntry{}
		return nil
	})
	if err != nil {
		return domain.DailyActivity{}, err
	}
	observability.RecordActivityPersisted(created.UpdatedAt)
	return created, nil
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, userID, activityID string) (*domain.DailyActivity, error) {
	return r.findActivity(ctx, userID, `activity_id = $2`, activityID)
}

// FindActivityByDate implements domain.ActivityRepository.
func (r *Repository) FindActivityByDate(ctx context.Context, userID, date string) (*domain.DailyActivity, error) {
	return r.findActivity(ctx, userID, `day = $2::date`, date)
}

func (r *Repository) findActivity(ctx context.Context, userID, predicate string, arg string) (*domain.DailyActivity, error) {
	var found *domain.DailyActivity
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		query := `SELECT ` + activityColumns + ` FROM daily_activities WHERE user_id = $1 AND ` + predicate
		activity, err := scanActivity(tx.QueryRow(ctx, query, userID, arg))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		hydrated, err := hydrate(ctx, tx, []domain.DailyActivity{activity})
		if err != nil {
			return err
		}
		found = &hydrated[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// UpdateActivity implements domain.ActivityRepository and records a daily_activity.updated event.
func (r *Repository) UpdateActivity(ctx context.Context, userID, activityID string, patch domain.ActivityPatch) (domain.DailyActivity, error) {
	var updated domain.DailyActivity
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		const stmt = `UPDATE daily_activities
               SET steps = COALESCE($3::int, steps),
                   calories = COALESCE($4::int, calories),
                   distance_m = COALESCE($5::int, distance_m),
                   updated_at = NOW()
             WHERE user_id = $1 AND activity_id = $2
         RETURNING ` + activityColumns

		activity, err := scanActivity(tx.QueryRow(ctx, stmt, userID, activityID, patch.Steps, patch.Calories, patch.Distance))
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: activityID}
		}
		if err != nil {
			return err
		}
		hydrated, err := hydrate(ctx, tx, []domain.DailyActivity{activity})
		if err != nil {
			return err
		}
		updated = hydrated[0]
		return insertOutbox(ctx, tx, dailyActivityUpdated(updated))
	})
	if err != nil {
		return domain.DailyActivity{}, err
	}
	observability.RecordActivityPersisted(updated.UpdatedAt)
	return updated, nil
}

// DeleteActivity implements domain.ActivityRepository. Entries are removed by the foreign key cascade.
func (r *Repository) DeleteActivity(ctx context.Context, userID, activityID string) error {
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM daily_activities WHERE user_id = $1 AND activity_id = $2`, userID, activityID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: activityID}
		}
		return nil
	})
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.DailyActivity, error) {
	args := []any{userID}
	query := `SELECT ` + activityColumns + ` FROM daily_activities WHERE user_id = $1`

	addDate := func(cond, value string) {
		args = append(args, value)
		query += fmt.Sprintf(" AND day %s $%d::date", cond, len(args))
	}
	if filter.Date != "" {
		addDate("=", filter.Date)
	}
	if filter.From != "" {
		addDate(">=", filter.From)
	}
	if filter.To != "" {
		addDate("<=", filter.To)
	}
	if filter.Cursor != nil {
		addDate("<", filter.Cursor.Date)
	}
	query += ` ORDER BY day DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	var results []domain.DailyActivity
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		activities := make([]domain.DailyActivity, 0)
		for rows.Next() {
			activity, err := scanActivity(rows)
			if err != nil {
				rows.Close()
				return err
			}
			activities = append(activities, activity)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		results, err = hydrate(ctx, tx, activities)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreateManualEntry implements domain.ActivityRepository and records a manual_entry.recorded event.
func (r *Repository) CreateManualEntry(ctx context.Context, userID string, entry domain.ManualEntry) (domain.ManualEntry, error) {
	var created domain.ManualEntry
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM daily_activities WHERE user_id = $1 AND activity_id = $2)`,
			userID, entry.ActivityID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &domain.NotFoundError{Resource: domain.ResourceDailyActivity, ID: entry.ActivityID}
		}

		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now().UTC()
		}
		const stmt = `INSERT INTO manual_entries (entry_id, activity_id, user_id, activity, duration_min, calories, recorded_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING ` + entryColumns

		var err error
		created, err = scanEntry(tx.QueryRow(ctx, stmt,
			entry.ID,
			entry.ActivityID,
			userID,
			entry.Activity,
			entry.Duration,
			entry.Calories,
			entry.Timestamp,
		))
		if err != nil {
			return mapWriteError(err)
		}
		return insertOutbox(ctx, tx, manualEntryRecorded(created))
	})
	if err != nil {
		return domain.ManualEntry{}, err
	}
	return created, nil
}

// GetManualEntry implements domain.ActivityRepository.
func (r *Repository) GetManualEntry(ctx context.Context, userID, entryID string) (*domain.ManualEntry, error) {
	var found *domain.ManualEntry
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		entry, err := scanEntry(tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM manual_entries WHERE user_id = $1 AND entry_id = $2`,
			userID, entryID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// UpdateManualEntry implements domain.ActivityRepository.
func (r *Repository) UpdateManualEntry(ctx context.Context, userID, entryID string, patch domain.EntryPatch) (domain.ManualEntry, error) {
	var updated domain.ManualEntry
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		const stmt = `UPDATE manual_entries
               SET activity = COALESCE($3::text, activity),
                   duration_min = COALESCE($4::int, duration_min),
                   calories = COALESCE($5::int, calories)
             WHERE user_id = $1 AND entry_id = $2
         RETURNING ` + entryColumns

		var err error
		updated, err = scanEntry(tx.QueryRow(ctx, stmt, userID, entryID, patch.Activity, patch.Duration, patch.Calories))
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.NotFoundError{Resource: domain.ResourceManualEntry, ID: entryID}
		}
		return err
	})
	if err != nil {
		return domain.ManualEntry{}, err
	}
	return updated, nil
}

// DeleteManualEntry implements domain.ActivityRepository.
func (r *Repository) DeleteManualEntry(ctx context.Context, userID, entryID string) error {
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM manual_entries WHERE user_id = $1 AND entry_id = $2`, userID, entryID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Resource: domain.ResourceManualEntry, ID: entryID}
		}
		return nil
	})
}

// ListManualEntries implements domain.ActivityRepository.
func (r *Repository) ListManualEntries(ctx context.Context, userID string, filter domain.EntryFilter) ([]domain.ManualEntry, error) {
	args := []any{userID}
	query := `SELECT ` + entryColumns + ` FROM manual_entries WHERE user_id = $1`
	if filter.ActivityID != "" {
		args = append(args, filter.ActivityID)
		query += ` AND activity_id = $` + strconv.Itoa(len(args))
	}
	if filter.Activity != "" {
		args = append(args, filter.Activity)
		query += ` AND activity ILIKE '%' || $` + strconv.Itoa(len(args)) + ` || '%'`
	}
	query += ` ORDER BY seq`

	var results []domain.ManualEntry
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = make([]domain.ManualEntry, 0)
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ClearUserData implements domain.ActivityRepository and records a user_data.cleared event.
func (r *Repository) ClearUserData(ctx context.Context, userID string) error {
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM manual_entries WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM daily_activities WHERE user_id = $1`, userID); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, userDataCleared(userID, time.Now().UTC()))
	})
}

// GetProfile implements domain.ProfileRepository.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var found *domain.UserProfile
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		var (
			profile domain.UserProfile
			gender  string
		)
		err := tx.QueryRow(ctx,
			`SELECT step_goal, weight_kg, height_cm, age, gender FROM profiles WHERE user_id = $1`, userID,
		).Scan(&profile.StepGoal, &profile.Weight, &profile.Height, &profile.Age, &gender)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		profile.Gender = domain.Gender(gender)
		found = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PutProfile implements domain.ProfileRepository.
func (r *Repository) PutProfile(ctx context.Context, userID string, profile domain.UserProfile) error {
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, step_goal, weight_kg, height_cm, age, gender, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,NOW())
             ON CONFLICT (user_id) DO UPDATE
                SET step_goal = EXCLUDED.step_goal,
                    weight_kg = EXCLUDED.weight_kg,
                    height_cm = EXCLUDED.height_cm,
                    age = EXCLUDED.age,
                    gender = EXCLUDED.gender,
                    updated_at = NOW()`,
			userID, profile.StepGoal, profile.Weight, profile.Height, profile.Age, string(profile.Gender),
		)
		return err
	})
}

// CreateUser implements domain.UserRepository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (user_id, username, email, first_name, last_name, password_hash, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return domain.User{}, mapWriteError(err)
	}
	return user, nil
}

// GetUser implements domain.UserRepository.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.findUser(ctx, `user_id = $1`, userID)
}

// FindUserByUsername implements domain.UserRepository. Usernames compare case-insensitively.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, `LOWER(username) = LOWER($1)`, username)
}

func (r *Repository) findUser(ctx context.Context, predicate, arg string) (*domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, username, email, first_name, last_name, password_hash, created_at FROM users WHERE `+predicate,
		arg,
	).Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// hydrate loads the manual entries of each activity in insertion order.
func hydrate(ctx context.Context, tx pgx.Tx, activities []domain.DailyActivity) ([]domain.DailyActivity, error) {
	if len(activities) == 0 {
		return activities, nil
	}
	ids := make([]string, 0, len(activities))
	for i := range activities {
		activities[i].ManualEntries = []domain.ManualEntry{}
		ids = append(ids, activities[i].ID)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+entryColumns+` FROM manual_entries WHERE activity_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byActivity := make(map[string][]domain.ManualEntry, len(activities))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		byActivity[entry.ActivityID] = append(byActivity[entry.ActivityID], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range activities {
		if entries, ok := byActivity[activities[i].ID]; ok {
			activities[i].ManualEntries = entries
		}
	}
	return activities, nil
}

func scanActivity(row pgx.Row) (domain.DailyActivity, error) {
	var a domain.DailyActivity
	err := row.Scan(&a.ID, &a.UserID, &a.Date, &a.Steps, &a.Calories, &a.Distance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanEntry(row pgx.Row) (domain.ManualEntry, error) {
	var e domain.ManualEntry
	err := row.Scan(&e.ID, &e.ActivityID, &e.UserID, &e.Activity, &e.Duration, &e.Calories, &e.Timestamp)
	return e, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrConflict
	}
	return err
}
