package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type body struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func serve(t *testing.T, endpoint http.HandlerFunc) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var b body
	require.NoError(t, json.NewDecoder(w.Body).Decode(&b))
	return w.Code, b
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "goroutines", Timeout: time.Second, Func: passing})
	h.AddLiveness(Check{Name: "stuck", Timeout: time.Second, Func: failing("deadlock")})

	code, b := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", b.Status)
	assert.Empty(t, b.Checks)

	for range 3 {
		h.liveness[1].run(context.Background())
	}

	code, b = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, map[string]string{"stuck": "deadlock"}, b.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		store      CheckFunc
		backend    CheckFunc
		wantCode   int
		wantStatus string
		wantChecks []string
	}{
		{
			name: "all healthy", ready: true, store: passing, backend: passing,
			wantCode: http.StatusOK, wantStatus: "ok",
		},
		{
			name: "not marked ready", ready: false, store: passing, backend: passing,
			wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy",
			wantChecks: []string{"_readiness"},
		},
		{
			name: "store down", ready: true, store: failing("connection refused"), backend: passing,
			wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy",
			wantChecks: []string{"store"},
		},
		{
			name: "backend down", ready: true, store: passing, backend: failing("dial tcp: timeout"),
			wantCode: http.StatusOK, wantStatus: "degraded",
			wantChecks: []string{"backend"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(WithThresholds(1, 1))
			h.AddReadiness(Check{Name: "store", Timeout: time.Second, Func: tt.store})
			h.AddReadiness(Check{Name: "backend", Timeout: time.Second, Severity: Degraded, Func: tt.backend})
			h.SetReady(tt.ready)
			for _, p := range h.readiness {
				p.run(context.Background())
			}

			code, b := serve(t, h.ReadyEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, b.Status)
			var names []string
			for name := range b.Checks {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.wantChecks, names)
			assert.Equal(t, tt.wantCode == http.StatusOK, h.IsReady())
		})
	}
}

func TestThresholds(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var fail atomic.Bool
	h := New(WithThresholds(2, 2), WithLogger(zap.New(core)))
	h.AddReadiness(Check{Name: "store", Timeout: time.Second, Func: func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}})
	h.SetReady(true)
	p := h.readiness[0]
	ctx := context.Background()

	fail.Store(true)
	p.run(ctx)
	assert.True(t, h.IsReady(), "one failure is below the threshold")
	p.run(ctx)
	assert.False(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Check unhealthy").Len())

	fail.Store(false)
	p.run(ctx)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	p.run(ctx)
	assert.True(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Check recovered").Len())
}

func TestCheckTimeout(t *testing.T) {
	h := New(WithThresholds(1, 1))
	h.AddReadiness(Check{Name: "slow", Timeout: 10 * time.Millisecond, Func: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	h.SetReady(true)
	h.readiness[0].run(context.Background())

	code, b := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, b.Checks["slow"], "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New(WithThresholds(1, 1))
	h.AddReadiness(Check{Name: "store", Timeout: time.Second, Func: func(context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}})
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()

	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), settled+1)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1<<20)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))

	want := errors.New("unreachable")
	err := PingCheck(pingFunc(func(context.Context) error { return want }))(context.Background())
	assert.ErrorIs(t, err, want)
}
