package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"raceday-api/apperror"
	"raceday-api/gpx"
	"raceday-api/metrics"
	"raceday-api/models"
	"raceday-api/repositories"
	"raceday-api/storage"
)

const bucketURL = "https://routes.s3.eu-central-1.amazonaws.com"

type eventFixture struct {
	db      *gorm.DB
	store   *storage.MemoryStore
	metrics *metrics.Metrics
	svc     *EventService
}

func newEventFixture(t *testing.T) *eventFixture {
	db := setupTestDB(t)
	store := storage.NewMemoryStore(bucketURL)
	m := metrics.New()
	return &eventFixture{
		db:      db,
		store:   store,
		metrics: m,
		svc:     NewEventService(repositories.NewEventRepository(db), store, m),
	}
}

func (f *eventFixture) count(t *testing.T, model any) int64 {
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

// counterValue sums every series of the named counter.
func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func validFields() EventFields {
	return EventFields{EventName: "Stage 1", EventTime: "2025-06-01T09:00:00Z"}
}

func TestEventService_CreateWithUpload(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.svc.CreateWithUpload(ctx, EventFields{
		EventName:        "Lovćen Gran Fondo",
		EventTime:        "2025-06-01T09:00:00+02:00",
		EventDescription: strPtr(""),
		EventStart:       strPtr("42.4,18.8"),
	}, sampleRouteFile("Lovćen Loop.gpx"))
	require.NoError(t, err)

	require.NotNil(t, event.Route)
	key, ok := f.store.KeyFromURL(*event.Route)
	require.True(t, ok)
	assert.True(t, f.store.Has(key))
	assert.Regexp(t, `-lovcen-loop\.gpx$`, key)

	assert.Nil(t, event.EventDescription)
	assert.Equal(t, "42.4,18.8", *event.EventStart)
	assert.Equal(t, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), event.EventTime)

	stored, err := f.svc.Get(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RouteDetails)
	want := gpx.StatsFromBytes([]byte(sampleGPX))
	assert.Equal(t, want.DistanceM, stored.RouteDetails.DistanceM)
	assert.Equal(t, 50, stored.RouteDetails.AscentM)
	assert.Equal(t, 30, stored.RouteDetails.DescentM)
	assert.Equal(t, models.DefaultRouteName, stored.RouteDetails.RouteName)
	assert.Equal(t, *event.Route, *stored.RouteDetails.RouteURL)

	assert.Equal(t, 1.0, counterValue(t, f.metrics, "events_created_total"))
	assert.Zero(t, counterValue(t, f.metrics, "gpx_parse_failures_total"))
}

func TestEventService_CreateWithUpload_CustomRouteName(t *testing.T) {
	f := newEventFixture(t)
	file := sampleRouteFile("x.gpx")
	file.RouteName = "  Queen stage  "

	event, err := f.svc.CreateWithUpload(context.Background(), validFields(), file)
	require.NoError(t, err)
	assert.Equal(t, "Queen stage", event.RouteDetails.RouteName)
}

func TestEventService_CreateWithUpload_UnparseableFileKeepsZeroStats(t *testing.T) {
	f := newEventFixture(t)

	event, err := f.svc.CreateWithUpload(context.Background(), validFields(),
		&RouteFile{Filename: "broken.gpx", Data: []byte("<gpx><trk>")})
	require.NoError(t, err)

	require.NotNil(t, event.RouteDetails)
	assert.Zero(t, event.RouteDetails.DistanceM)
	assert.Zero(t, event.RouteDetails.AscentM)
	assert.Zero(t, event.RouteDetails.DescentM)
	assert.Equal(t, 1.0, counterValue(t, f.metrics, "gpx_parse_failures_total"))
}

func TestEventService_CreateWithUpload_Validation(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		fields  EventFields
		file    *RouteFile
		message string
	}{
		{"missing name", EventFields{EventTime: "2025-06-01T09:00:00Z"}, sampleRouteFile("a.gpx"), "event_name and event_time are required"},
		{"missing time", EventFields{EventName: "x"}, sampleRouteFile("a.gpx"), "event_name and event_time are required"},
		{"blank name", EventFields{EventName: "   ", EventTime: "2025-06-01T09:00:00Z"}, sampleRouteFile("a.gpx"), "event_name and event_time are required"},
		{"missing file", validFields(), nil, "route GPX file is required"},
		{"empty file", validFields(), &RouteFile{Filename: "a.gpx"}, "route GPX file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateWithUpload(ctx, tt.fields, tt.file)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.EqualError(t, err, tt.message)
		})
	}

	_, err := f.svc.CreateWithUpload(ctx, EventFields{EventName: "x", EventTime: "tomorrow"}, sampleRouteFile("a.gpx"))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	listed, err := f.store.List(ctx, storage.RoutesPrefix)
	require.NoError(t, err)
	assert.Empty(t, listed, "validation failures must not upload")
	assert.Zero(t, f.count(t, &models.Event{}))
}

func TestEventService_CreateWithUpload_UploadFailureWritesNothing(t *testing.T) {
	f := newEventFixture(t)
	f.store.UploadErr = errors.New("s3 down")

	_, err := f.svc.CreateWithUpload(context.Background(), validFields(), sampleRouteFile("a.gpx"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrValidation)

	assert.Zero(t, f.count(t, &models.Event{}))
	assert.Zero(t, f.count(t, &models.Route{}))
}

func TestEventService_CreateWithUpload_TransactionFailureRollsBack(t *testing.T) {
	f := newEventFixture(t)
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_routes", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "routes" {
			_ = tx.AddError(errors.New("injected"))
		}
	})
	require.NoError(t, err)

	_, err = f.svc.CreateWithUpload(context.Background(), validFields(), sampleRouteFile("a.gpx"))
	require.Error(t, err)

	assert.Zero(t, f.count(t, &models.Event{}))
	assert.Zero(t, f.count(t, &models.Route{}))

	// The uploaded object is left behind for the sweep.
	listed, err := f.store.List(context.Background(), storage.RoutesPrefix)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestEventService_CreateWithRoute(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.svc.CreateWithRoute(ctx, validFields(), strPtr("https://www.komoot.com/tour/1"))
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.Nil(t, event.RouteID)
	assert.Zero(t, f.count(t, &models.Route{}))

	for _, route := range []*string{nil, strPtr(""), strPtr("  ")} {
		_, err := f.svc.CreateWithRoute(ctx, validFields(), route)
		require.ErrorIs(t, err, apperror.ErrValidation)
		assert.EqualError(t, err, "route is required")
	}
}

func TestEventService_NameLimitCountsCharacters(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	fields := validFields()
	fields.EventName = strings.Repeat("Ž", 100)
	event, err := f.svc.CreateWithRoute(ctx, fields, strPtr("https://example.com/r"))
	require.NoError(t, err)
	assert.Equal(t, fields.EventName, event.EventName)

	fields.EventName = strings.Repeat("Ž", 101)
	_, err = f.svc.CreateWithRoute(ctx, fields, strPtr("https://example.com/r"))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-06-01T09:00:00Z", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{"2025-06-01T09:00:00.250+02:00", time.Date(2025, 6, 1, 7, 0, 0, 250_000_000, time.UTC)},
		{"2025-06-01T09:00:30", time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)},
		{" 2025-06-01T09:00 ", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{"2025-06-01 09:00", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{"2025-06-01 09:00:15", time.Date(2025, 6, 1, 9, 0, 15, 0, time.UTC)},
		{"2025-06-01 09:00:00+02:00", time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseEventTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), tt.in)
	}

	for _, bad := range []string{"", "2025-06-01", "01.06.2025 09:00", "2025-13-01T09:00:00Z"} {
		_, err := ParseEventTime(bad)
		assert.ErrorIs(t, err, apperror.ErrValidation, bad)
	}
}

func TestEventService_Update(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	fields := validFields()
	fields.EventDescription = strPtr("old description")
	event, err := f.svc.CreateWithRoute(ctx, fields, strPtr("https://example.com/r"))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, event.ID, UpdateEventInput{
		EventName:        strPtr("Renamed"),
		EventTime:        strPtr(""),
		EventDescription: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.EventName)
	assert.True(t, event.EventTime.Equal(updated.EventTime))
	assert.Nil(t, updated.EventDescription)
	assert.Equal(t, "https://example.com/r", *updated.Route)

	_, err = f.svc.Update(ctx, event.ID, UpdateEventInput{EventName: strPtr("")})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.EqualError(t, err, "No updates provided")

	_, err = f.svc.Update(ctx, event.ID+99, UpdateEventInput{EventName: strPtr("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Update(ctx, event.ID, UpdateEventInput{EventTime: strPtr("soon")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestEventService_UpdateReplacesRouteFile(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.svc.CreateWithUpload(ctx, validFields(), sampleRouteFile("old.gpx"))
	require.NoError(t, err)
	oldKey, _ := f.store.KeyFromURL(*event.Route)

	updated, err := f.svc.Update(ctx, event.ID, UpdateEventInput{
		File: &RouteFile{Filename: "new.gpx", Data: []byte(`<gpx><trk><trkseg>
			<trkpt lat="42" lon="19"><ele>10</ele></trkpt>
			<trkpt lat="42.01" lon="19"><ele>30</ele></trkpt>
		</trkseg></trk></gpx>`)},
	})
	require.NoError(t, err)

	newKey, ok := f.store.KeyFromURL(*updated.Route)
	require.True(t, ok)
	assert.NotEqual(t, oldKey, newKey)
	assert.True(t, f.store.Has(newKey))
	assert.False(t, f.store.Has(oldKey))
	assert.Equal(t, 20, updated.RouteDetails.AscentM)
	assert.Equal(t, int64(1), f.count(t, &models.Route{}))
	assert.Equal(t, 1.0, counterValue(t, f.metrics, "route_files_deleted_total"))
}

func TestEventService_UpdateWithFileForMissingEventUploadsNothing(t *testing.T) {
	f := newEventFixture(t)

	_, err := f.svc.Update(context.Background(), 404, UpdateEventInput{File: sampleRouteFile("a.gpx")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	listed, err := f.store.List(context.Background(), storage.RoutesPrefix)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEventService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket route file is deleted", func(t *testing.T) {
		f := newEventFixture(t)
		event, err := f.svc.CreateWithUpload(ctx, validFields(), sampleRouteFile("a.gpx"))
		require.NoError(t, err)
		key, _ := f.store.KeyFromURL(*event.Route)

		require.NoError(t, f.svc.Delete(ctx, event.ID))

		assert.Equal(t, []string{key}, f.store.Deleted())
		assert.False(t, f.store.Has(key))
		assert.Zero(t, f.count(t, &models.Event{}))
		assert.Zero(t, f.count(t, &models.Route{}))
	})

	t.Run("no route means no storage call", func(t *testing.T) {
		f := newEventFixture(t)
		event := &models.Event{EventName: "x", EventTime: time.Now()}
		require.NoError(t, f.db.Create(event).Error)

		require.NoError(t, f.svc.Delete(ctx, event.ID))
		assert.Empty(t, f.store.Deleted())
	})

	t.Run("foreign route URL is left alone", func(t *testing.T) {
		f := newEventFixture(t)
		event, err := f.svc.CreateWithRoute(ctx, validFields(), strPtr("https://other-bucket.s3.eu-central-1.amazonaws.com/routes/a.gpx"))
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, event.ID))
		assert.Empty(t, f.store.Deleted())
	})

	t.Run("storage failure does not fail the delete", func(t *testing.T) {
		f := newEventFixture(t)
		event, err := f.svc.CreateWithUpload(ctx, validFields(), sampleRouteFile("a.gpx"))
		require.NoError(t, err)
		f.store.DeleteErr = errors.New("access denied")

		require.NoError(t, f.svc.Delete(ctx, event.ID))
		assert.Zero(t, f.count(t, &models.Event{}))
		assert.Zero(t, counterValue(t, f.metrics, "route_files_deleted_total"))
	})

	t.Run("missing event", func(t *testing.T) {
		f := newEventFixture(t)
		assert.ErrorIs(t, f.svc.Delete(ctx, 1), apperror.ErrNotFound)
	})

	t.Run("registrations go with the event", func(t *testing.T) {
		f := newEventFixture(t)
		event, err := f.svc.CreateWithRoute(ctx, validFields(), strPtr("https://example.com/r"))
		require.NoError(t, err)
		regs := repositories.NewRegistrationRepository(f.db, "global")
		require.NoError(t, regs.Create(ctx, &models.Registration{EventID: event.ID, Name: "A", Surname: "B", Email: "a@example.com"}))

		require.NoError(t, f.svc.Delete(ctx, event.ID))
		assert.Zero(t, f.count(t, &models.Registration{}))
	})
}
