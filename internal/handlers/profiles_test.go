package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/campusalert/internal/handlers/testutil"
	"github.com/charlesng35/campusalert/internal/services"
	"github.com/charlesng35/campusalert/internal/warnings"
)

var campusHome = warnings.Location{Lat: 51.3782, Long: -2.3264}

func putProfile(t *testing.T, env *testutil.Env, userID string, body map[string]any) services.Profile {
	t.Helper()
	w := env.Request(http.MethodPut, "/api/users/"+userID+"/profile", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out services.Profile
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &out)
	return out
}

func TestProfileHandler_PutAndGet(t *testing.T) {
	env := testutil.NewEnv(t)

	saved := putProfile(t, env, "student-1", map[string]any{
		"home":               map[string]float64{"lat": campusHome.Lat, "long": campusHome.Long},
		"frequent_locations": []map[string]float64{{"lat": 51.38, "long": -2.33}},
		"gender":             "female",
		"owns_laptop":        true,
	})
	require.Equal(t, "student-1", saved.UserID)
	require.NotNil(t, saved.Home)
	require.Len(t, saved.FrequentLocations, 1)
	require.True(t, saved.OwnsLaptop)

	w := env.Request(http.MethodGet, "/api/users/student-1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got services.Profile
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &got)
	require.Equal(t, "student-1", got.UserID)
	require.InDelta(t, campusHome.Lat, got.Home.Lat, 1e-9)
	require.Equal(t, "FEMALE", got.Gender)

	// A second PUT replaces the profile.
	replaced := putProfile(t, env, "student-1", map[string]any{"owns_bicycle": true})
	require.Nil(t, replaced.Home)
	require.True(t, replaced.OwnsBicycle)
	require.False(t, replaced.OwnsLaptop)
}

func TestProfileHandler_GetUnknownUser(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/users/ghost/profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "profile not found", testutil.DecodeResponse(t, w).Error.Message)
}

func TestProfileHandler_PutValidatesCoordinates(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPut, "/api/users/student-2/profile", map[string]any{
		"home": map[string]float64{"lat": 123, "long": 0},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Contains(t, resp.Error.Message, "home.lat must be at most 90")

	w = env.Request(http.MethodPut, "/api/users/student-2/profile", map[string]any{"gender": "robot"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "gender must be MALE, FEMALE or UNKNOWN")
}

type rankedPayload struct {
	Warning struct {
		ID string `json:"id"`
	} `json:"warning"`
	Score int `json:"score"`
}

func TestProfileHandler_WarningsRankedByRelevance(t *testing.T) {
	env := testutil.NewEnv(t)
	now := env.Clock.Now()

	putProfile(t, env, "student-3", map[string]any{
		"home":        map[string]float64{"lat": campusHome.Lat, "long": campusHome.Long},
		"owns_laptop": true,
	})

	far := campusHome.Offset(5000, 0)
	for _, body := range []map[string]any{
		{"id": "near-assault", "category": "assault", "incident_timestamp": now.Add(-20 * time.Minute).Format(time.RFC3339), "location": campusHome},
		{"id": "far-theft", "category": "theft", "incident_timestamp": now.Add(-2 * time.Hour).Format(time.RFC3339), "location": far, "warning_description": "laptop taken"},
		{"id": "ancient", "category": "assault", "incident_timestamp": now.AddDate(0, -3, 0).Format(time.RFC3339), "location": campusHome},
	} {
		w := env.Request(http.MethodPost, "/api/warnings", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.Request(http.MethodGet, "/api/users/student-3/warnings", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var ranked []rankedPayload
	testutil.DecodeInto(t, resp.Data, &ranked)
	require.Len(t, ranked, 2)
	require.Equal(t, 2, resp.Meta.Total)
	require.Equal(t, "near-assault", ranked[0].Warning.ID)
	require.Equal(t, "far-theft", ranked[1].Warning.ID)
	require.Greater(t, ranked[0].Score, ranked[1].Score)

	w = env.Request(http.MethodGet, "/api/users/ghost/warnings", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
