package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campusalert/internal/classifier"
	"github.com/charlesng35/campusalert/internal/database/testutil"
	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/models"
	"github.com/charlesng35/campusalert/internal/warnings"
	"github.com/charlesng35/campusalert/pkg/validator"
)

type stubDispatcher struct {
	outcome   dispatch.Outcome
	err       error
	submitted []warnings.Warning
}

func (s *stubDispatcher) Submit(ctx context.Context, w warnings.Warning) (dispatch.Outcome, error) {
	s.submitted = append(s.submitted, w)
	if s.err != nil {
		return dispatch.Outcome{}, s.err
	}
	out := s.outcome
	out.Notification.ID = w.ID
	return out, nil
}

func newEngine(t *testing.T, now time.Time, sent *[]dispatch.Notification) *dispatch.Engine {
	t.Helper()
	engine, err := dispatch.NewEngine(dispatch.GatewayFunc(func(ctx context.Context, n dispatch.Notification) error {
		*sent = append(*sent, n)
		return nil
	}), dispatch.Config{Clock: clockwork.NewFakeClockAt(now), Logger: zap.NewNop()})
	require.NoError(t, err)
	return engine
}

func newWarningService(t *testing.T, db *gorm.DB, d Dispatcher) *WarningService {
	t.Helper()
	svc, err := NewWarningService(db, d, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestNewWarningServiceRequiresDependencies(t *testing.T) {
	_, err := NewWarningService(nil, &stubDispatcher{}, nil)
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err = NewWarningService(db, nil, nil)
	require.Error(t, err)
}

func TestWarningServiceSubmitDispatchesAndRecordsOutcome(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Now().UTC().Truncate(time.Second)

	var sent []dispatch.Notification
	svc := newWarningService(t, db, newEngine(t, now, &sent))

	row, outcome, err := svc.Submit(context.Background(), warnings.Submission{
		Category:           "Assault",
		IncidentTimestamp:  now.Add(-10 * time.Minute).Format(time.RFC3339),
		Location:           &warnings.Location{Lat: 51.38, Long: -2.33},
		WarningDescription: "Student attacked near the library",
	})
	require.NoError(t, err)
	require.NotEmpty(t, row.ID)
	require.Equal(t, dispatch.ActionSendNow, outcome.Action)
	require.Equal(t, dispatch.StateSent, outcome.Notification.State)
	require.Len(t, sent, 1)
	require.Equal(t, row.ID, sent[0].ID)

	stored, err := svc.Get(context.Background(), row.ID)
	require.NoError(t, err)
	require.Equal(t, "assault", stored.Category)
	require.Equal(t, "SEND_NOW", stored.DispatchAction)
	require.Equal(t, "SENT", stored.DispatchState)
	require.NotNil(t, stored.IncidentAt)
	require.True(t, now.Add(-10*time.Minute).Equal(*stored.IncidentAt))
}

func TestWarningServiceKeepsUnparseableTimestamp(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dispatcher := &stubDispatcher{outcome: dispatch.Outcome{
		Action:       dispatch.ActionDiscard,
		Notification: dispatch.Notification{State: dispatch.StateDiscarded},
	}}
	svc := newWarningService(t, db, dispatcher)

	row, outcome, err := svc.Submit(context.Background(), warnings.Submission{
		ID:                "client-1",
		Category:          "arson",
		IncidentTimestamp: "last tuesday",
	})
	require.NoError(t, err)
	require.Equal(t, "client-1", row.ID)
	require.Equal(t, dispatch.ActionDiscard, outcome.Action)

	require.Len(t, dispatcher.submitted, 1)
	require.Equal(t, warnings.CategoryGeneral, dispatcher.submitted[0].Category)
	require.False(t, dispatcher.submitted[0].HasIncidentTime())

	stored, err := svc.Get(context.Background(), "client-1")
	require.NoError(t, err)
	require.Nil(t, stored.IncidentAt)
	require.Equal(t, "last tuesday", stored.RawTimestamp)
	require.Equal(t, "DISCARDED", stored.DispatchState)
}

func TestWarningServiceRejectsInvalidAndDuplicateSubmissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dispatcher := &stubDispatcher{outcome: dispatch.Outcome{Action: dispatch.ActionEnqueue}}
	svc := newWarningService(t, db, dispatcher)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err := svc.Submit(context.Background(), warnings.Submission{ID: string(long)})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "id", verrs[0].Field)

	_, _, err = svc.Submit(context.Background(), warnings.Submission{ID: "dup"})
	require.NoError(t, err)
	_, _, err = svc.Submit(context.Background(), warnings.Submission{ID: "dup"})
	require.ErrorIs(t, err, ErrWarningExists)
	require.Len(t, dispatcher.submitted, 1)
}

func TestWarningServiceSurfacesDispatchErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dispatcher := &stubDispatcher{err: context.Canceled}
	svc := newWarningService(t, db, dispatcher)

	row, _, err := svc.Submit(context.Background(), warnings.Submission{Category: "theft"})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, row)
}

func TestWarningServiceDispatchesAfterClientCancels(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Now().UTC().Truncate(time.Second)

	var sent []dispatch.Notification
	svc := newWarningService(t, db, newEngine(t, now, &sent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, db.Callback().Create().After("gorm:commit_or_rollback_transaction").Register("test:client_disconnect", func(*gorm.DB) {
		cancel()
	}))

	row, outcome, err := svc.Submit(ctx, warnings.Submission{
		Category:          "mugging",
		IncidentTimestamp: now.Add(-5 * time.Minute).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.Equal(t, dispatch.ActionSendNow, outcome.Action)
	require.Len(t, sent, 1)
	require.Equal(t, row.ID, sent[0].ID)

	stored, err := svc.Get(context.Background(), row.ID)
	require.NoError(t, err)
	require.Equal(t, "SENT", stored.DispatchState)
}

func TestWarningServiceGetMissing(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newWarningService(t, db, &stubDispatcher{})

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrWarningNotFound)
	_, err = svc.Get(context.Background(), "  ")
	require.True(t, errors.Is(err, ErrWarningNotFound))
}

func TestWarningServiceListSince(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newWarningService(t, db, &stubDispatcher{})
	now := time.Now().UTC().Truncate(time.Second)

	for id, incident := range map[string]time.Time{
		"recent": now.Add(-2 * time.Hour),
		"old":    now.AddDate(0, 0, -40),
	} {
		require.NoError(t, db.Create(models.NewWarning(warnings.Warning{ID: id, Category: warnings.CategoryTheft, IncidentAt: incident}, "")).Error)
	}
	require.NoError(t, db.Create(models.NewWarning(warnings.Warning{ID: "undated", Category: warnings.CategoryGeneral}, "???")).Error)

	rows, err := svc.ListSince(context.Background(), now.AddDate(0, -1, 0))
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	require.ElementsMatch(t, []string{"recent", "undated"}, ids)
}

func TestProfileServiceUpsertAndGet(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrProfileNotFound)

	saved, err := svc.Upsert(context.Background(), "user-1", Profile{
		Home:              &Coordinates{Lat: 51.37, Long: -2.32},
		FrequentLocations: []Coordinates{{Lat: 51.38, Long: -2.33}},
		Gender:            "female",
		OwnsLaptop:        true,
	})
	require.NoError(t, err)
	require.Equal(t, warnings.GenderFemale, saved.Gender)

	loaded, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, saved, loaded)

	_, err = svc.Upsert(context.Background(), "user-1", Profile{OwnsCar: true})
	require.NoError(t, err)

	loaded, err = svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Nil(t, loaded.Home)
	require.Empty(t, loaded.FrequentLocations)
	require.True(t, loaded.OwnsCar)
	require.False(t, loaded.OwnsLaptop)
	require.Equal(t, warnings.GenderUnknown, loaded.Gender)

	var count int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProfileServiceValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), "user-1", Profile{Home: &Coordinates{Lat: 91}})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "home.lat", verrs[0].Field)

	_, err = svc.Upsert(context.Background(), "user-1", Profile{Gender: "other"})
	require.ErrorAs(t, err, &verrs)

	_, err = svc.Upsert(context.Background(), " ", Profile{})
	require.Error(t, err)
}

func TestProfileConversionRoundTrip(t *testing.T) {
	domain := warnings.UserProfile{
		ID:                "user-9",
		LastKnown:         &warnings.Location{Lat: 1, Long: 2},
		FrequentLocations: []warnings.Location{{Lat: 3, Long: 4}},
		Gender:            warnings.GenderMale,
		OwnsBicycle:       true,
	}
	require.Equal(t, domain, ProfileFromDomain(domain).Domain())
}

func TestRelevanceServiceRanksRecentWarnings(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Now().UTC().Truncate(time.Second)
	clock := clockwork.NewFakeClockAt(now)

	ws := newWarningService(t, db, &stubDispatcher{outcome: dispatch.Outcome{Action: dispatch.ActionEnqueue}})
	ps, err := NewProfileService(db)
	require.NoError(t, err)
	rs, err := NewRelevanceService(ws, ps, classifier.New(classifier.Config{Clock: clock}), RelevanceOptions{MinScore: 1, Clock: clock})
	require.NoError(t, err)

	home := warnings.Location{Lat: 51.3782, Long: -2.3264}
	_, err = ps.Upsert(context.Background(), "user-1", Profile{Home: &Coordinates{Lat: home.Lat, Long: home.Long}})
	require.NoError(t, err)

	far := home.Offset(200, 0)
	submissions := []warnings.Submission{
		{ID: "assault-home", Category: "assault", IncidentTimestamp: now.Add(-30 * time.Minute).Format(time.RFC3339), Location: &home},
		{ID: "theft-far", Category: "theft", IncidentTimestamp: now.Add(-5 * time.Hour).Format(time.RFC3339), Location: &far},
		{ID: "general-undated", Category: "general"},
		{ID: "vandalism-old", Category: "vandalism", IncidentTimestamp: now.AddDate(0, 0, -40).Format(time.RFC3339), Location: &home},
	}
	for _, sub := range submissions {
		_, _, err := ws.Submit(context.Background(), sub)
		require.NoError(t, err)
	}

	ranked, err := rs.ForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "assault-home", ranked[0].Warning.ID)
	require.Equal(t, 5, ranked[0].Score)
	require.Equal(t, "theft-far", ranked[1].Warning.ID)
	require.Equal(t, 1, ranked[1].Score)

	_, err = rs.ForUser(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestRelevanceServiceWindowIsOneCalendarMonth(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	ws := newWarningService(t, db, &stubDispatcher{outcome: dispatch.Outcome{Action: dispatch.ActionDiscard}})
	ps, err := NewProfileService(db)
	require.NoError(t, err)

	home := warnings.Location{Lat: 51.3782, Long: -2.3264}
	_, err = ps.Upsert(context.Background(), "user-1", Profile{Home: &Coordinates{Lat: home.Lat, Long: home.Long}})
	require.NoError(t, err)

	for id, incident := range map[string]time.Time{
		"thirty-and-a-half-days": time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		"before-cutoff":          time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
	} {
		_, _, err := ws.Submit(context.Background(), warnings.Submission{
			ID:                id,
			Category:          "vandalism",
			IncidentTimestamp: incident.Format(time.RFC3339),
			Location:          &home,
		})
		require.NoError(t, err)
	}

	rank := func(lookback time.Duration) []string {
		rs, err := NewRelevanceService(ws, ps, classifier.New(classifier.Config{Clock: clock}), RelevanceOptions{
			MinScore: 1,
			Lookback: lookback,
			Clock:    clock,
		})
		require.NoError(t, err)
		ranked, err := rs.ForUser(context.Background(), "user-1")
		require.NoError(t, err)
		ids := make([]string, 0, len(ranked))
		for _, r := range ranked {
			ids = append(ids, r.Warning.ID)
		}
		return ids
	}

	require.Equal(t, []string{"thirty-and-a-half-days"}, rank(0))
	require.Empty(t, rank(7*24*time.Hour))
}
