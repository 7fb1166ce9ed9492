package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/metrics"
	"example.com/fittrack/internal/persistence/memory"
)

var testTokens = auth.Config{Secret: "handler-secret", Issuer: "fittrack-test"}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	repo    *memory.Repository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	now := func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }
	repo := memory.NewRepository()
	activities := domain.NewActivityService(repo, metrics.Engine{}, domain.WithClock(now))
	profiles := domain.NewProfileService(repo, nil)
	accounts := domain.NewAccountService(repo, repo, domain.WithBcryptCost(bcrypt.MinCost))

	h := NewHandler(activities, profiles, accounts, testTokens)
	return &testAPI{
		t:       t,
		handler: auth.NewMiddleware(testTokens).Wrap(h.Router()),
		repo:    repo,
	}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (a *testAPI) register(username string) SessionResponse {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/v1/users", "", RegisterRequest{Username: username, Password: "secret-pass"})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[SessionResponse](a.t, rr)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	api := newTestAPI(t)

	goal := 8000
	rr := api.do(http.MethodPost, "/v1/users", "", RegisterRequest{
		Username:       "walker",
		Password:       "secret-pass",
		Email:          "walker@example.com",
		ProfileRequest: ProfileRequest{StepGoal: &goal},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := decode[SessionResponse](t, rr)
	require.NotEmpty(t, session.Token)
	require.Equal(t, 8000, session.Profile.StepGoal)

	rr = api.do(http.MethodPost, "/v1/login", "", LoginRequest{Username: "walker", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(http.MethodPost, "/v1/login", "", LoginRequest{Username: "walker", Password: "secret-pass"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[SessionResponse](t, rr)
	require.Equal(t, session.User.ID, login.User.ID)

	profilePath := "/v1/users/" + login.User.ID + "/profile"
	gender := "F"
	rr = api.do(http.MethodPatch, profilePath, login.Token, ProfileRequest{Gender: &gender})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(http.MethodGet, profilePath, login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decode[ProfileView](t, rr)
	require.Equal(t, 8000, profile.StepGoal)
	require.Equal(t, "female", profile.Gender)

	rr = api.do(http.MethodPost, "/v1/users", "", RegisterRequest{Username: "walker", Password: "another-pass"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileValidationListsViolations(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	goal, age := 10, 0
	rr := api.do(http.MethodPatch, "/v1/users/"+session.User.ID+"/profile", session.Token, ProfileRequest{StepGoal: &goal, Age: &age})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[ErrorResponse](t, rr)
	require.Equal(t, "validation_failed", body.Type)
	require.Len(t, body.Violations, 2)
}

func TestRequestsNeedTokenAndOwnership(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")

	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/daily-activity/today", "", nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil).Code)
	require.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/users/"+bob.User.ID+"/profile", alice.Token, nil).Code)
	require.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/daily-activity?user_id="+bob.User.ID, alice.Token, nil).Code)

	readOnly, _, err := auth.Issue(alice.User.ID, []string{auth.ScopeActivityRead}, time.Hour, testTokens)
	require.NoError(t, err)
	steps := 10
	require.Equal(t, http.StatusForbidden, api.do(http.MethodPut, "/v1/daily-activity/today/steps", readOnly, StepsRequest{Steps: &steps}).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/daily-activity/today", readOnly, nil).Code)
}

func TestTodayStepsAndEntries(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	rr := api.do(http.MethodGet, "/v1/daily-activity/today", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	today := decode[ActivityView](t, rr)
	require.Equal(t, "2025-03-10", today.Date)
	require.Zero(t, today.Steps)

	steps := 10000
	rr = api.do(http.MethodPut, "/v1/daily-activity/today/steps", session.Token, StepsRequest{Steps: &steps})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[ActivityView](t, rr)
	require.Equal(t, 400, updated.Calories)
	require.Equal(t, 7620, updated.Distance)
	require.InDelta(t, 7.62, updated.DistanceKm, 0.0001)

	duration := 30
	rr = api.do(http.MethodPost, "/v1/daily-activity/today/entries", session.Token, EntryRequest{Activity: "Swimming", Duration: &duration, Calories: 250})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	withEntry := decode[ActivityView](t, rr)
	require.Equal(t, 650, withEntry.Calories)
	require.Len(t, withEntry.ManualEntries, 1)

	rr = api.do(http.MethodPost, "/v1/daily-activity/today/entries", session.Token, EntryRequest{Activity: "X", Calories: 6000})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Len(t, decode[ErrorResponse](t, rr).Violations, 2)

	rr = api.do(http.MethodPut, "/v1/daily-activity/today/steps", session.Token, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSamplesRunThroughDetector(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	steps := 100
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/v1/daily-activity/today/steps", session.Token, StepsRequest{Steps: &steps}).Code)

	rr := api.do(http.MethodPost, "/v1/daily-activity/today/samples", session.Token, SamplesRequest{Samples: []SampleView{
		{Z: 0}, {Z: 2}, {Z: 0}, {Z: 0.5},
	}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[SamplesResponse](t, rr)
	require.Equal(t, 2, resp.Detected)
	require.Equal(t, 102, resp.Activity.Steps)

	// The detector keeps the last sample between batches.
	rr = api.do(http.MethodPost, "/v1/daily-activity/today/samples", session.Token, SamplesRequest{Samples: []SampleView{{Z: 2}}})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, decode[SamplesResponse](t, rr).Detected)
}

func TestConcurrentSampleBatchesNeverLoseSteps(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	steps := 100
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/v1/daily-activity/today/steps", session.Token, StepsRequest{Steps: &steps}).Code)

	// Each batch leaves the detector resting at zero, so every batch detects exactly two steps.
	payload, err := json.Marshal(SamplesRequest{Samples: []SampleView{{Z: 5}, {Z: 0}}})
	require.NoError(t, err)

	const batches = 20
	var wg sync.WaitGroup
	results := make(chan *httptest.ResponseRecorder, batches)
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/daily-activity/today/samples", bytes.NewReader(payload))
			req.Header.Set("Authorization", "Bearer "+session.Token)
			rr := httptest.NewRecorder()
			api.handler.ServeHTTP(rr, req)
			results <- rr
		}()
	}
	wg.Wait()
	close(results)

	seen := make([]int, 0, batches)
	for rr := range results {
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[SamplesResponse](t, rr)
		require.Equal(t, 2, resp.Detected)
		seen = append(seen, resp.Activity.Steps)
	}
	sort.Ints(seen)
	for i, got := range seen {
		require.Equal(t, 102+2*i, got)
	}

	rr := api.do(http.MethodGet, "/v1/daily-activity/today", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 100+2*batches, decode[ActivityView](t, rr).Steps)
}

func TestHistoryListAndExport(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	for _, req := range []CreateActivityRequest{
		{Date: "2025-03-07", Steps: 1000},
		{Date: "2025-03-08", Steps: 2000},
		{Date: "2025-03-09", Steps: 3000},
	} {
		rr := api.do(http.MethodPost, "/v1/daily-activity", session.Token, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr := api.do(http.MethodPost, "/v1/daily-activity", session.Token, CreateActivityRequest{Date: "2025-03-09", Steps: 1})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(http.MethodGet, "/v1/daily-activity/history?days=2", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[ListActivitiesResponse](t, rr)
	require.Len(t, history.Items, 2)
	require.Equal(t, "2025-03-09", history.Items[0].Date)
	require.Equal(t, "2025-03-08", history.Items[1].Date)

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/daily-activity/history?days=abc", session.Token, nil).Code)

	rr = api.do(http.MethodGet, "/v1/daily-activity?limit=2", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListActivitiesResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rr = api.do(http.MethodGet, "/v1/daily-activity?limit=2&cursor="+page.NextCursor, session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rest := decode[ListActivitiesResponse](t, rr)
	require.Len(t, rest.Items, 1)
	require.Equal(t, "2025-03-07", rest.Items[0].Date)

	rr = api.do(http.MethodGet, "/v1/daily-activity?start_date=2025-03-08&end_date=2025-03-08", session.Token, nil)
	require.Len(t, decode[ListActivitiesResponse](t, rr).Items, 1)

	rr = api.do(http.MethodGet, "/v1/daily-activity/export", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Equal(t, "Date,Steps,Calories,Distance (km),Manual Entries", lines[0])
	require.Equal(t, "2025-03-07,1000,40,0.76,0", lines[1])
	require.Len(t, lines, 4)

	rr = api.do(http.MethodGet, "/v1/weekly-activity/"+session.User.ID, session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	weekly := decode[WeeklyView](t, rr)
	require.Equal(t, 3, weekly.Days)
	require.InDelta(t, 2000, weekly.AverageSteps, 0.001)
	require.Equal(t, 240, weekly.TotalCalories)
}

func TestManualEntryCRUDRecomputesParent(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	rr := api.do(http.MethodPost, "/v1/daily-activity", session.Token, CreateActivityRequest{Date: "2025-03-09", Steps: 1000})
	require.Equal(t, http.StatusCreated, rr.Code)
	day := decode[ActivityView](t, rr)

	rr = api.do(http.MethodPost, "/v1/manual-entry", session.Token, EntryRequest{DailyActivity: day.ID, Activity: "Rowing", Calories: 200})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	entry := decode[EntryView](t, rr)

	calories := 300
	rr = api.do(http.MethodPatch, "/v1/manual-entry/"+entry.ID, session.Token, EntryPatchRequest{Calories: &calories})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 300, decode[EntryView](t, rr).Calories)

	rr = api.do(http.MethodGet, "/v1/daily-activity/"+day.ID, session.Token, nil)
	require.Equal(t, 340, decode[ActivityView](t, rr).Calories)

	rr = api.do(http.MethodGet, "/v1/manual-entry?activity=row", session.Token, nil)
	require.Len(t, decode[ListEntriesResponse](t, rr).Items, 1)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/manual-entry/"+entry.ID, session.Token, nil).Code)
	rr = api.do(http.MethodGet, "/v1/daily-activity/"+day.ID, session.Token, nil)
	require.Equal(t, 40, decode[ActivityView](t, rr).Calories)

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/manual-entry/"+entry.ID, session.Token, nil).Code)

	steps := 2000
	rr = api.do(http.MethodPatch, "/v1/daily-activity/"+day.ID, session.Token, ActivityPatchRequest{Steps: &steps})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1524, decode[ActivityView](t, rr).Distance)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/daily-activity/"+day.ID, session.Token, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/v1/daily-activity/"+day.ID, session.Token, nil).Code)
}

func TestClearDataKeepsProfile(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	steps := 500
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/v1/daily-activity/today/steps", session.Token, StepsRequest{Steps: &steps}).Code)
	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/users/"+session.User.ID+"/data", session.Token, nil).Code)

	rr := api.do(http.MethodGet, "/v1/daily-activity/history", session.Token, nil)
	require.Empty(t, decode[ListActivitiesResponse](t, rr).Items)

	rr = api.do(http.MethodGet, "/v1/users/"+session.User.ID+"/profile", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.DefaultStepGoal, decode[ProfileView](t, rr).StepGoal)
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	api := newTestAPI(t)
	session := api.register("walker")

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/nope", session.Token, nil).Code)
	rr := api.do(http.MethodPut, "/v1/daily-activity/today", session.Token, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, "method_not_allowed", decode[ErrorResponse](t, rr).Type)
}
