package statuslog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(ctx context.Context) (map[string]string, error)

func (f sourceFunc) Status(ctx context.Context) (map[string]string, error) { return f(ctx) }

type pointSink struct {
	mu     sync.Mutex
	points []*write.Point
	errs   chan error
}

func (p *pointSink) WritePoint(pt *write.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = append(p.points, pt)
}

func (p *pointSink) Errors() <-chan error { return p.errs }

var status = map[string]string{
	"response.timestamp_utc": "2026-03-01 12:00:00.000000",
	"mount.is_connected":     "true",
	"mount.altitude_degs":    "45.000000",
	"mount.azimuth_degs":     "179.500000",
	"mount.is_slewing":       "false",
}

func TestLogPath(t *testing.T) {
	got := LogPath("logs", time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("logs", "07Mar2026MountStatus.log"), got)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "connected=true alt=45.000 az=179.500 moving=false", Summarize(status))
	got := Summarize(map[string]string{"mount.is_connected": "false"})
	assert.True(t, strings.HasPrefix(got, "connected=false ERROR "), got)
	assert.True(t, strings.HasPrefix(Summarize(nil), "connected=unknown ERROR "))
}

func TestFields(t *testing.T) {
	want := map[string]interface{}{
		"mount.is_connected":  true,
		"mount.altitude_degs": 45.0,
		"mount.azimuth_degs":  179.5,
		"mount.is_slewing":    false,
	}
	if diff := cmp.Diff(want, Fields(status)); diff != "" {
		t.Errorf("Fields: got(+)/want(-):\n%s", diff)
	}
}

func TestTick(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "dome.txt")
	require.NoError(t, os.WriteFile(statusFile, []byte("OPEN\n"), 0o644))

	now := time.Date(2026, 3, 1, 8, 30, 15, 0, time.Local)
	calls := 0
	src := sourceFunc(func(ctx context.Context) (map[string]string, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("connection refused")
		}
		return status, nil
	})
	sink := &pointSink{}
	l := New(src, Config{Dir: dir, StatusFile: statusFile}, sink)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Tick(context.Background()))
	require.NoError(t, l.Tick(context.Background()))

	data, err := os.ReadFile(LogPath(dir, now))
	require.NoError(t, err)
	want := "2026-03-01 08:30:15 - Mount Status: connected=true alt=45.000 az=179.500 moving=false From File: OPEN\n" +
		"2026-03-01 08:30:15 - Mount Status: ERROR connection refused From File: OPEN\n"
	assert.Equal(t, want, string(data))

	require.Len(t, sink.points, 1)
	assert.Equal(t, "mount.status", sink.points[0].Name())
	assert.Len(t, sink.points[0].FieldList(), 4)
}

func TestTickMissingStatusFile(t *testing.T) {
	dir := t.TempDir()
	l := New(sourceFunc(func(ctx context.Context) (map[string]string, error) { return status, nil }),
		Config{Dir: dir, StatusFile: filepath.Join(dir, "missing.txt")}, nil)

	require.NoError(t, l.Tick(context.Background()))
	data, err := os.ReadFile(LogPath(dir, l.now()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "From File: ERROR open ")
}

func TestTickUnwritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	l := New(sourceFunc(func(ctx context.Context) (map[string]string, error) { return status, nil }), Config{Dir: dir}, nil)
	assert.Error(t, l.Tick(context.Background()))
}

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var mu sync.Mutex
	polls := 0
	src := sourceFunc(func(ctx context.Context) (map[string]string, error) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		return status, nil
	})
	sink := &pointSink{errs: make(chan error, 1)}
	sink.errs <- errors.New("influx unavailable")
	l := New(src, Config{Dir: dir, Interval: 5 * time.Millisecond}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return polls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	data, err := os.ReadFile(LogPath(dir, time.Now()))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, strings.Count(string(data), "\n"), 3)
}
