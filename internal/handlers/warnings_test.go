package handlers_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/campusalert/internal/handlers/testutil"
)

type submitPayload struct {
	Warning struct {
		ID           string     `json:"id"`
		Category     string     `json:"category"`
		Title        string     `json:"title"`
		IncidentAt   *time.Time `json:"incident_at"`
		RawTimestamp string     `json:"raw_timestamp"`
		Location     *struct {
			Lat  float64 `json:"lat"`
			Long float64 `json:"long"`
		} `json:"location"`
		DispatchAction string `json:"dispatch_action"`
		DispatchState  string `json:"dispatch_state"`
	} `json:"warning"`
	Dispatch struct {
		Action    string `json:"action"`
		State     string `json:"state"`
		Priority  string `json:"priority"`
		SendError string `json:"send_error"`
	} `json:"dispatch"`
}

func submit(t *testing.T, env *testutil.Env, body map[string]any) submitPayload {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/warnings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)

	var out submitPayload
	testutil.DecodeInto(t, resp.Data, &out)
	return out
}

func TestWarningHandler_SubmitRecentAssaultSendsNow(t *testing.T) {
	env := testutil.NewEnv(t)
	now := env.Clock.Now()

	out := submit(t, env, map[string]any{
		"id":                  "w-1",
		"category":            "Assault",
		"incident_timestamp":  now.Add(-10 * time.Minute).Format(time.RFC3339),
		"location":            map[string]float64{"lat": 51.3782, "long": -2.3264},
		"warning_description": "Student attacked outside the library",
	})

	require.Equal(t, "w-1", out.Warning.ID)
	require.Equal(t, "assault", out.Warning.Category)
	require.NotEmpty(t, out.Warning.Title)
	require.NotNil(t, out.Warning.Location)
	require.Equal(t, "SEND_NOW", out.Dispatch.Action)
	require.Equal(t, "SENT", out.Dispatch.State)
	require.Equal(t, "high", out.Dispatch.Priority)
	require.Equal(t, "SENT", out.Warning.DispatchState)
	require.Equal(t, []string{"w-1"}, env.Gateway.Sent())
}

func TestWarningHandler_SubmitOlderTheftIsQueued(t *testing.T) {
	env := testutil.NewEnv(t)

	out := submit(t, env, map[string]any{
		"id":                 "w-2",
		"category":           "theft",
		"incident_timestamp": env.Clock.Now().Add(-3 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, "ENQUEUE", out.Dispatch.Action)
	require.Equal(t, "QUEUED", out.Dispatch.State)
	require.Equal(t, "medium", out.Dispatch.Priority)
	require.Empty(t, env.Gateway.Sent())
	require.Equal(t, 1, env.Engine.Status().QueueDepth)
}

func TestWarningHandler_UnparseableTimestampIsDiscardedButStored(t *testing.T) {
	env := testutil.NewEnv(t)

	out := submit(t, env, map[string]any{
		"id":                 "w-3",
		"category":           "vandalism",
		"incident_timestamp": "sometime last night",
	})
	require.Equal(t, "DISCARD", out.Dispatch.Action)
	require.Equal(t, "DISCARDED", out.Dispatch.State)
	require.Nil(t, out.Warning.IncidentAt)
	require.Equal(t, "sometime last night", out.Warning.RawTimestamp)

	w := env.Request(http.MethodGet, "/api/warnings/w-3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestWarningHandler_FailedInstantSendFallsBackToQueue(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Gateway.Fail(errors.New("push service down"))

	out := submit(t, env, map[string]any{
		"id":                 "w-4",
		"category":           "mugging",
		"incident_timestamp": env.Clock.Now().Add(-5 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, "SEND_NOW", out.Dispatch.Action)
	require.Equal(t, "QUEUED", out.Dispatch.State)
	require.Contains(t, out.Dispatch.SendError, "push service down")
	require.Equal(t, 1, env.Engine.Status().QueueDepth)
}

func TestWarningHandler_SubmitRejectsBadInput(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/warnings", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/warnings", map[string]any{
		"category":            "theft",
		"warning_description": strings.Repeat("x", 4001),
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "warning description")
}

func TestWarningHandler_DuplicateIDConflicts(t *testing.T) {
	env := testutil.NewEnv(t)
	body := map[string]any{"id": "dup", "category": "general"}

	w := env.Request(http.MethodPost, "/api/warnings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/warnings", body)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestWarningHandler_GetMissingWarning(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/warnings/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "warning not found", resp.Error.Message)
}

func TestWarningHandler_SubmissionsAreRateLimited(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(1))

	w := env.Request(http.MethodPost, "/api/warnings", map[string]any{"category": "general"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = env.Request(http.MethodPost, "/api/warnings", map[string]any{"category": "general"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	env.Clock.Advance(time.Minute)
	w = env.Request(http.MethodPost, "/api/warnings", map[string]any{"category": "general"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Reads are not throttled.
	for i := 0; i < 3; i++ {
		w = env.Request(http.MethodGet, "/api/dispatch/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}
