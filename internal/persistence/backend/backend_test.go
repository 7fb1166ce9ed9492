package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/logger"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	return config.Config{
		Backend:       backend,
		SQLitePath:    filepath.Join(t.TempDir(), "fittrack.db"),
		UserID:        "local",
		TimeZone:      "UTC",
		RemoteURL:     "http://127.0.0.1:1",
		StepThreshold: 1.2,
	}
}

func TestOpenSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendSQLite)

	b, err := Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	user, err := b.ResolveUser(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, "local", user)

	svc := b.ActivityService(cfg, logger.Discard())
	day, err := svc.UpdateTodaysSteps(ctx, user, 1000)
	require.NoError(t, err)
	require.Equal(t, 40, day.Calories)
	require.NotNil(t, b.Users)
}

func TestOpenMemoryBackendUsesConfiguredConstants(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.CaloriesPerStep = 0.05

	b, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	day, err := b.ActivityService(cfg, nil).UpdateTodaysSteps(ctx, "u", 1000)
	require.NoError(t, err)
	require.Equal(t, 50, day.Calories)
}

func TestRemoteBackendRequiresCredentials(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"unauthorized","detail":"authentication failed: invalid username or password"}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, config.BackendRemote)
	cfg.RemoteURL = srv.URL

	b, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.Nil(t, b.Users)

	_, err = b.ResolveUser(ctx, cfg)
	require.ErrorIs(t, err, domain.ErrAuthentication)

	cfg.RemoteUsername, cfg.RemotePassword = "walker", "nope"
	_, err = b.ResolveUser(ctx, cfg)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), testConfig(t, "floppy"), nil)
	require.Error(t, err)
}
