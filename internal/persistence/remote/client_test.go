package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/metrics"
	"example.com/fittrack/internal/persistence/memory"
	"example.com/fittrack/internal/persistence/remote"
)

var tokens = auth.Config{Secret: "remote-secret", Issuer: "fittrack-test"}

func fixedClock() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := memory.NewRepository()
	handler := api.NewHandler(
		domain.NewActivityService(repo, metrics.Engine{}, domain.WithClock(fixedClock)),
		domain.NewProfileService(repo, nil),
		domain.NewAccountService(repo, repo, domain.WithBcryptCost(bcrypt.MinCost)),
		tokens,
	)
	srv := httptest.NewServer(auth.NewMiddleware(tokens).Wrap(handler.Router()))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server) (*remote.Client, string) {
	t.Helper()
	client := remote.NewClient(srv.URL+"/", time.Second)
	session, err := client.Register(context.Background(), api.RegisterRequest{Username: "walker", Password: "secret-pass"})
	require.NoError(t, err)
	require.Equal(t, session.Token, client.Token())
	return client, session.User.ID
}

func TestServiceOverRemoteBackend(t *testing.T) {
	srv := newServer(t)
	client, userID := login(t, srv)
	ctx := context.Background()

	svc := domain.NewActivityService(client, metrics.Engine{}, domain.WithClock(fixedClock))

	today, err := svc.GetTodaysActivity(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", today.Date)

	_, err = svc.UpdateTodaysSteps(ctx, userID, 10000)
	require.NoError(t, err)

	duration := 45
	day, err := svc.AddManualEntry(ctx, userID, domain.ManualEntryInput{Activity: "Cycling", Duration: &duration, Calories: 350})
	require.NoError(t, err)
	require.Equal(t, 750, day.Calories)
	require.Equal(t, 7620, day.Distance)
	require.Len(t, day.ManualEntries, 1)
	require.Equal(t, today.ID, day.ID)

	history, err := svc.GetHistoryData(ctx, userID, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 750, history[0].Calories)

	weekly, err := client.WeeklySummary(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, weekly.Days)
	require.Equal(t, 750, weekly.TotalCalories)

	profiles := domain.NewProfileService(client, nil)
	weight := 72.5
	_, err = profiles.UpdateProfile(ctx, userID, domain.ProfilePatch{Weight: &weight})
	require.NoError(t, err)
	profile, err := profiles.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 72.5, *profile.Weight)
	require.Equal(t, domain.DefaultStepGoal, profile.StepGoal)

	require.NoError(t, svc.ClearAllData(ctx, userID))
	history, err = svc.GetHistoryData(ctx, userID, 7)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestRemoteErrorMapping(t *testing.T) {
	srv := newServer(t)
	client, userID := login(t, srv)
	ctx := context.Background()

	missing, err := client.GetActivity(ctx, userID, "missing")
	require.NoError(t, err)
	require.Nil(t, missing)

	err = client.DeleteManualEntry(ctx, userID, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	created, err := client.CreateActivity(ctx, domain.DailyActivity{UserID: userID, Date: "2025-03-01", Steps: 10})
	require.NoError(t, err)
	_, err = client.CreateActivity(ctx, domain.DailyActivity{UserID: userID, Date: "2025-03-01"})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = client.CreateManualEntry(ctx, userID, domain.ManualEntry{ActivityID: created.ID, Activity: "X", Calories: 9000})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Len(t, domain.Violations(err), 2)

	_, err = client.ListActivities(ctx, "someone-else", domain.ActivityFilter{})
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = remote.NewClient(srv.URL, time.Second).GetProfile(ctx, userID)
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = client.Login(ctx, "walker", "wrong-pass")
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRemoteTransportFailures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer broken.Close()

	_, err := remote.NewClient(broken.URL, time.Second).GetProfile(context.Background(), "user-1")
	require.ErrorIs(t, err, domain.ErrTransport)
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusInternalServerError, terr.StatusCode)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = remote.NewClient(closed.URL, time.Second).ListActivities(context.Background(), "user-1", domain.ActivityFilter{})
	require.ErrorIs(t, err, domain.ErrTransport)
}
