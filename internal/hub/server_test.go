package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1xm/slew_interface/slewtest"
)

type fakeRunner struct {
	mu       sync.Mutex
	plans    []slewtest.Plan
	running  bool
	canceled int
}

func (f *fakeRunner) Start(ctx context.Context, plan slewtest.Plan) (context.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil, slewtest.ErrBusy
	}
	f.running = true
	f.plans = append(f.plans, plan)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.running = false
		f.canceled++
	}, nil
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRunner) started() []slewtest.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slewtest.Plan(nil), f.plans...)
}

func TestExecute(t *testing.T) {
	runner := &fakeRunner{}
	s := NewServer(context.Background(), newHub(), runner)

	require.NoError(t, s.Execute(Command{Command: "run", Test: "alt"}))
	assert.ErrorIs(t, s.Execute(Command{Command: "slew", Altitude: 30, Azimuth: 200}), slewtest.ErrBusy)
	require.NoError(t, s.Execute(Command{Command: "cancel"}))
	assert.ErrorIs(t, s.Execute(Command{Command: "cancel"}), ErrNotRunning)
	require.NoError(t, s.Execute(Command{Command: "slew", Altitude: 30, Azimuth: 200}))

	assert.Error(t, s.Execute(Command{Command: "run", Test: "spin"}))
	assert.Error(t, s.Execute(Command{Command: "dance"}))

	plans := runner.started()
	require.Len(t, plans, 2)
	assert.Equal(t, slewtest.AltitudeFullSpeed, plans[0])
	assert.Equal(t, slewtest.NormalSlew(30, 200), plans[1])
	assert.Equal(t, 1, runner.canceled)
}

func TestStatusHandler(t *testing.T) {
	h := newHub()
	runner := &fakeRunner{running: true}
	s := NewServer(context.Background(), h, runner)
	h.Progress(33, 44)

	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Running)
	require.NotNil(t, st.Position)
	assert.Equal(t, 44.0, st.Position.Azimuth)
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(context.Background(), newHub(), &fakeRunner{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("slew_tests_total 0\n"))
	})
	rr := httptest.NewRecorder()
	s.Router(metrics).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "slew_tests_total 0\n", rr.Body.String())
}

func TestSocket(t *testing.T) {
	h := newHub()
	runner := &fakeRunner{}
	s := NewServer(context.Background(), h, runner)
	srv := httptest.NewServer(s.Router(nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.False(t, st.Running)

	require.NoError(t, conn.WriteJSON(Command{Command: "run", Test: "diagonal"}))
	require.Eventually(t, func() bool { return len(runner.started()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, slewtest.DiagonalFullSpeed, runner.started()[0])

	h.Progress(20, 10)
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, EventProgress, e.Type)
	require.NotNil(t, e.Position)
	assert.Equal(t, 20.0, e.Position.Altitude)

	require.NoError(t, conn.WriteJSON(Command{Command: "run", Test: "az"}))
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, EventError, e.Type)
	assert.Equal(t, slewtest.ErrBusy.Error(), e.Error)
}
