package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type runResult struct {
	stdout string
	stderr string
}

func newDB(t *testing.T) string {
	t.Helper()
	t.Setenv("FITTRACK_BACKEND", "sqlite")
	t.Setenv("REDIS_ADDR", "")
	return filepath.Join(t.TempDir(), "fittrack.db")
}

func run(t *testing.T, db string, args ...string) (runResult, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--db", db, "--user", "cli-user"}, args...))
	err := root.Execute()
	return runResult{stdout: stdout.String(), stderr: stderr.String()}, err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	res, err := run(t, db, args...)
	require.NoError(t, err, res.stderr)
	return res.stdout
}

func TestRootHelp(t *testing.T) {
	var buf bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "steps")
	require.Contains(t, buf.String(), "export")
}

func TestStepsAndEntries(t *testing.T) {
	db := newDB(t)

	out := mustRun(t, db, "steps", "set", "5000")
	require.Contains(t, out, "Steps:    5000")
	require.Contains(t, out, "Calories: 200 kcal")
	require.Contains(t, out, "Distance: 3.81 km")

	out = mustRun(t, db, "steps", "add", "250")
	require.Contains(t, out, "Steps:    5250")

	out = mustRun(t, db, "entry", "add", "--activity", "Yoga", "--calories", "150", "--duration", "30")
	require.Contains(t, out, "Calories: 360 kcal")
	require.Contains(t, out, "Yoga")

	out = mustRun(t, db, "today")
	require.Contains(t, out, "Steps:    5250 / 10000")

	out = mustRun(t, db, "entry", "list", "--activity", "yo")
	require.Contains(t, out, "Yoga")
	require.Contains(t, out, "30")
}

func TestStepsRejectsBadInput(t *testing.T) {
	db := newDB(t)

	_, err := run(t, db, "steps", "set", "lots")
	require.Error(t, err)

	_, err = run(t, db, "steps", "set", "200000")
	require.Error(t, err)
	require.Contains(t, describeError(err), "Invalid input:")

	_, err = run(t, db, "entry", "add", "--activity", "Y", "--calories", "9000")
	require.Error(t, err)
	msg := describeError(err)
	require.Contains(t, msg, "Activity")
	require.Contains(t, msg, "Calories")
}

func TestProfileSetIsPartial(t *testing.T) {
	db := newDB(t)

	mustRun(t, db, "profile", "set", "--weight", "72.5", "--gender", "f")
	out := mustRun(t, db, "profile", "set", "--step-goal", "8000")
	require.Contains(t, out, "Step goal: 8000")
	require.Contains(t, out, "Weight:    72.5 kg")
	require.Contains(t, out, "Gender:    female")
	require.Contains(t, out, "Age:       -")

	_, err := run(t, db, "profile", "set", "--age", "0")
	require.Error(t, err)
	require.Contains(t, describeError(err), "Age must be between 1 and 150")
}

func TestExportHistoryAndReset(t *testing.T) {
	db := newDB(t)
	mustRun(t, db, "steps", "set", "1000")

	out := mustRun(t, db, "export")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Date,Steps,Calories,Distance (km),Manual Entries", lines[0])
	require.True(t, strings.HasSuffix(lines[1], ",1000,40,0.76,0"), lines[1])

	file := filepath.Join(t.TempDir(), "export.csv")
	mustRun(t, db, "export", "-o", file)
	written, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, out, string(written))

	out = mustRun(t, db, "history")
	require.Contains(t, out, "DATE")
	require.Contains(t, out, "1000")

	out = mustRun(t, db, "weekly")
	require.Contains(t, out, "1 days recorded")
	require.Contains(t, out, "Average steps:    1000")

	_, err = run(t, db, "reset")
	require.Error(t, err)

	mustRun(t, db, "profile", "set", "--step-goal", "12000")
	mustRun(t, db, "reset", "--yes")
	require.Contains(t, mustRun(t, db, "history"), "No activity recorded")
	require.Contains(t, mustRun(t, db, "profile", "show"), "Step goal: 12000")
}

func TestTrackCountsStepsFromRecording(t *testing.T) {
	db := newDB(t)
	mustRun(t, db, "steps", "set", "100")

	samples := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(samples, []byte("x,y,z\n0,0,1\n0,0,3\n0,0,1\n0,0,1.5\n"), 0o600))

	out := mustRun(t, db, "track", "--samples", samples)
	require.Contains(t, out, "Detected 2 steps")
	require.Contains(t, out, "Steps:    102")
}

// heldReader serves data once, then reports that it was drained and blocks like an idle terminal.
type heldReader struct {
	data    []byte
	drained chan struct{}
	release chan struct{}
}

func (r *heldReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-r.release
	return 0, io.EOF
}

func TestTrackKeepsStepsWhenInterrupted(t *testing.T) {
	db := newDB(t)
	mustRun(t, db, "steps", "set", "100")

	in := &heldReader{
		data:    []byte("0,0,5\n0,0,0\n0,0,5\n0,0,0\n0,0,5\n"),
		drained: make(chan struct{}),
		release: make(chan struct{}),
	}
	t.Cleanup(func() { close(in.release) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetIn(in)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--db", db, "--user", "cli-user", "track", "--samples", "-"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	select {
	case <-in.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("samples were never read")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("track did not stop after interrupt")
	}
	require.Contains(t, stdout.String(), "Detected 5 steps")
	require.Contains(t, mustRun(t, db, "today"), "Steps:    105")
}

func TestTrackWithoutSourceFallsBack(t *testing.T) {
	db := newDB(t)

	res, err := run(t, db, "track")
	require.NoError(t, err)
	require.Contains(t, res.stderr, "Step tracking unavailable")
	require.Contains(t, res.stdout, "Steps:    0")
}

func TestUnknownBackendFails(t *testing.T) {
	db := newDB(t)

	_, err := run(t, db, "--backend", "floppy", "today")
	require.Error(t, err)
	require.Contains(t, describeError(err), "unknown backend")
}
