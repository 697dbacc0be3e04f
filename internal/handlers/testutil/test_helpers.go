package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campusalert/internal/api"
	"github.com/charlesng35/campusalert/internal/app"
	"github.com/charlesng35/campusalert/internal/classifier"
	sharedtestutil "github.com/charlesng35/campusalert/internal/database/testutil"
	"github.com/charlesng35/campusalert/internal/delivery"
	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/middleware"
	"github.com/charlesng35/campusalert/internal/monitoring"
	"github.com/charlesng35/campusalert/internal/monitoring/checks"
	"github.com/charlesng35/campusalert/internal/realtime"
	"github.com/charlesng35/campusalert/internal/services"
	"github.com/charlesng35/campusalert/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	Clock     *clockwork.FakeClock
	Engine    *dispatch.Engine
	Hub       *realtime.Hub
	Warnings  *services.WarningService
	Profiles  *services.ProfileService
	Relevance *services.RelevanceService
	Gateway   *RecordingGateway
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	now       time.Time
	quota     int
	rateLimit int
	hub       bool
}

// WithNow starts the fake clock at now.
func WithNow(now time.Time) EnvOption {
	return func(cfg *envConfig) { cfg.now = now }
}

// WithDailyQuota sets the instant-send quota of the engine.
func WithDailyQuota(quota int) EnvOption {
	return func(cfg *envConfig) { cfg.quota = quota }
}

// WithRateLimit limits warning submissions per client per minute.
func WithRateLimit(requests int) EnvOption {
	return func(cfg *envConfig) { cfg.rateLimit = requests }
}

// WithHubDelivery forwards recorded notifications to the realtime hub.
func WithHubDelivery() EnvOption {
	return func(cfg *envConfig) { cfg.hub = true }
}

// RecordingGateway captures sent notifications and can be told to fail.
type RecordingGateway struct {
	mu   sync.Mutex
	sent []dispatch.Notification
	err  error
	next dispatch.Gateway
}

// Send records n, or returns the configured failure.
func (g *RecordingGateway) Send(ctx context.Context, n dispatch.Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, n)
	if g.next != nil {
		return g.next.Send(ctx, n)
	}
	return nil
}

// Fail makes subsequent sends return err; nil restores success.
func (g *RecordingGateway) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Sent returns the IDs of delivered notifications in order.
func (g *RecordingGateway) Sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.sent))
	for _, n := range g.sent {
		ids = append(ids, n.ID)
	}
	return ids
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := envConfig{
		now:   time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC),
		quota: dispatch.DefaultDailyQuota,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := clockwork.NewFakeClockAt(cfg.now)
	log := zap.NewNop()

	hub := realtime.NewHub(log)
	t.Cleanup(hub.Close)

	gateway := &RecordingGateway{}
	if cfg.hub {
		gateway.next = delivery.NewHubGateway(hub, realtime.StreamAlerts)
	}
	engine, err := dispatch.NewEngine(gateway, dispatch.Config{
		DailyQuota: cfg.quota,
		Clock:      clock,
		Logger:     log,
	})
	require.NoError(t, err)

	warningSvc, err := services.NewWarningService(db, engine, log)
	require.NoError(t, err)
	profileSvc, err := services.NewProfileService(db)
	require.NoError(t, err)
	relevanceSvc, err := services.NewRelevanceService(warningSvc, profileSvc, classifier.New(classifier.Config{Clock: clock}), services.RelevanceOptions{
		MinScore: 1,
		Clock:    clock,
	})
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterLiveness(checks.Realtime(hub, realtime.StreamAlerts))
	health.RegisterReadiness(checks.Database(db, time.Second))
	health.RegisterReadiness(checks.Dispatch(engine, 0))

	appCfg := &app.Config{}
	appCfg.Delivery.Stream = realtime.StreamAlerts
	appCfg.Monitoring.Prometheus.Enabled = true
	appCfg.Monitoring.Prometheus.Endpoint = "/metrics"

	var limiter *middleware.RateLimiter
	if cfg.rateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.rateLimit, time.Minute, clock)
	}

	router, err := api.NewRouter(api.Dependencies{
		Config:      appCfg,
		Warnings:    warningSvc,
		Profiles:    profileSvc,
		Relevance:   relevanceSvc,
		Dispatch:    engine,
		Hub:         hub,
		Health:      health,
		RateLimiter: limiter,
		Logger:      log,
	})
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		Clock:     clock,
		Engine:    engine,
		Hub:       hub,
		Warnings:  warningSvc,
		Profiles:  profileSvc,
		Relevance: relevanceSvc,
		Gateway:   gateway,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON-encoding body when present.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
