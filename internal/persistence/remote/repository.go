package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
)

var (
	_ domain.ActivityRepository = (*Client)(nil)
	_ domain.ProfileRepository  = (*Client)(nil)
)

// CreateActivity posts a new aggregate. The server assigns the id.
func (c *Client) CreateActivity(ctx context.Context, activity domain.DailyActivity) (domain.DailyActivity, error) {
	var view api.ActivityView
	err := c.do(ctx, request{
		op:     "create daily activity",
		method: http.MethodPost,
		path:   "/v1/daily-activity",
		body:   api.CreateActivityRequest{Date: activity.Date, Steps: activity.Steps},
	}, &view)
	if err != nil {
		return domain.DailyActivity{}, err
	}
	return view.Activity(), nil
}

// GetActivity fetches an aggregate; a missing one yields nil.
func (c *Client) GetActivity(ctx context.Context, _ string, activityID string) (*domain.DailyActivity, error) {
	var view api.ActivityView
	err := c.do(ctx, request{
		op:       "get daily activity",
		method:   http.MethodGet,
		path:     "/v1/daily-activity/" + url.PathEscape(activityID),
		resource: domain.ResourceDailyActivity,
		id:       activityID,
	}, &view)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	activity := view.Activity()
	return &activity, nil
}

// FindActivityByDate looks up the aggregate of one date.
func (c *Client) FindActivityByDate(ctx context.Context, userID, date string) (*domain.DailyActivity, error) {
	activities, err := c.ListActivities(ctx, userID, domain.ActivityFilter{Date: date, Limit: 1})
	if err != nil || len(activities) == 0 {
		return nil, err
	}
	return &activities[0], nil
}

// UpdateActivity sends the step change. Calories and distance are derived by the server.
func (c *Client) UpdateActivity(ctx context.Context, _ string, activityID string, patch domain.ActivityPatch) (domain.DailyActivity, error) {
	var view api.ActivityView
	err := c.do(ctx, request{
		op:       "update daily activity",
		method:   http.MethodPatch,
		path:     "/v1/daily-activity/" + url.PathEscape(activityID),
		body:     api.ActivityPatchRequest{Steps: patch.Steps},
		resource: domain.ResourceDailyActivity,
		id:       activityID,
	}, &view)
	if err != nil {
		return domain.DailyActivity{}, err
	}
	return view.Activity(), nil
}

// DeleteActivity removes an aggregate and its entries.
func (c *Client) DeleteActivity(ctx context.Context, _ string, activityID string) error {
	return c.do(ctx, request{
		op:       "delete daily activity",
		method:   http.MethodDelete,
		path:     "/v1/daily-activity/" + url.PathEscape(activityID),
		resource: domain.ResourceDailyActivity,
		id:       activityID,
	}, nil)
}

// ListActivities returns the user's aggregates matching filter, newest date first.
func (c *Client) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.DailyActivity, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	setIf(q, "date", filter.Date)
	setIf(q, "start_date", filter.From)
	setIf(q, "end_date", filter.To)
	setIf(q, "cursor", persistence.EncodeCursor(filter.Cursor))
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var resp api.ListActivitiesResponse
	if err := c.do(ctx, request{op: "list daily activities", method: http.MethodGet, path: "/v1/daily-activity", query: q}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.DailyActivity, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, item.Activity())
	}
	return out, nil
}

// CreateManualEntry attaches an entry to an existing aggregate.
func (c *Client) CreateManualEntry(ctx context.Context, _ string, entry domain.ManualEntry) (domain.ManualEntry, error) {
	var view api.EntryView
	err := c.do(ctx, request{
		op:     "create manual entry",
		method: http.MethodPost,
		path:   "/v1/manual-entry",
		body: api.EntryRequest{
			DailyActivity: entry.ActivityID,
			Activity:      entry.Activity,
			Duration:      entry.Duration,
			Calories:      entry.Calories,
		},
		resource: domain.ResourceDailyActivity,
		id:       entry.ActivityID,
	}, &view)
	if err != nil {
		return domain.ManualEntry{}, err
	}
	return view.Entry(), nil
}

// GetManualEntry fetches an entry; a missing one yields nil.
func (c *Client) GetManualEntry(ctx context.Context, _ string, entryID string) (*domain.ManualEntry, error) {
	var view api.EntryView
	err := c.do(ctx, request{
		op:       "get manual entry",
		method:   http.MethodGet,
		path:     "/v1/manual-entry/" + url.PathEscape(entryID),
		resource: domain.ResourceManualEntry,
		id:       entryID,
	}, &view)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := view.Entry()
	return &entry, nil
}

// UpdateManualEntry sends a partial entry update.
func (c *Client) UpdateManualEntry(ctx context.Context, _ string, entryID string, patch domain.EntryPatch) (domain.ManualEntry, error) {
	var view api.EntryView
	err := c.do(ctx, request{
		op:       "update manual entry",
		method:   http.MethodPatch,
		path:     "/v1/manual-entry/" + url.PathEscape(entryID),
		body:     api.EntryPatchRequest{Activity: patch.Activity, Duration: patch.Duration, Calories: patch.Calories},
		resource: domain.ResourceManualEntry,
		id:       entryID,
	}, &view)
	if err != nil {
		return domain.ManualEntry{}, err
	}
	return view.Entry(), nil
}

// DeleteManualEntry removes an entry.
func (c *Client) DeleteManualEntry(ctx context.Context, _ string, entryID string) error {
	return c.do(ctx, request{
		op:       "delete manual entry",
		method:   http.MethodDelete,
		path:     "/v1/manual-entry/" + url.PathEscape(entryID),
		resource: domain.ResourceManualEntry,
		id:       entryID,
	}, nil)
}

// ListManualEntries returns the user's entries matching filter.
func (c *Client) ListManualEntries(ctx context.Context, userID string, filter domain.EntryFilter) ([]domain.ManualEntry, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	setIf(q, "daily_activity", filter.ActivityID)
	setIf(q, "activity", filter.Activity)

	var resp api.ListEntriesResponse
	if err := c.do(ctx, request{op: "list manual entries", method: http.MethodGet, path: "/v1/manual-entry", query: q}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.ManualEntry, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, item.Entry())
	}
	return out, nil
}

// ClearUserData drops every aggregate of the user on the server.
func (c *Client) ClearUserData(ctx context.Context, userID string) error {
	return c.do(ctx, request{
		op:     "clear user data",
		method: http.MethodDelete,
		path:   "/v1/users/" + url.PathEscape(userID) + "/data",
	}, nil)
}

// GetProfile fetches the profile. The server materializes defaults, so the result is never nil.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var view api.ProfileView
	if err := c.do(ctx, request{op: "get profile", method: http.MethodGet, path: "/v1/users/" + url.PathEscape(userID) + "/profile"}, &view); err != nil {
		return nil, err
	}
	profile := view.Profile()
	return &profile, nil
}

// PutProfile writes every set field of profile.
func (c *Client) PutProfile(ctx context.Context, userID string, profile domain.UserProfile) error {
	return c.do(ctx, request{
		op:     "update profile",
		method: http.MethodPatch,
		path:   "/v1/users/" + url.PathEscape(userID) + "/profile",
		body:   api.ToProfileRequest(profile),
	}, nil)
}

// WeeklySummary fetches the server-side weekly aggregate.
func (c *Client) WeeklySummary(ctx context.Context, userID string) (api.WeeklyView, error) {
	var view api.WeeklyView
	err := c.do(ctx, request{op: "weekly activity", method: http.MethodGet, path: "/v1/weekly-activity/" + url.PathEscape(userID)}, &view)
	return view, err
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
