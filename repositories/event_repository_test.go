package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceday-api/apperror"
	"raceday-api/models"
)

func TestEventRepository_CreateWithRoute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	url := "https://bucket.test/routes/2024/05/1-abcd1234-stage.gpx"
	event := &models.Event{EventName: "Stage 1", EventTime: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), Route: &url}
	route := &models.Route{DistanceM: 1200, AscentM: 50, DescentM: 30, RouteURL: &url}

	require.NoError(t, repo.CreateWithRoute(ctx, event, route))

	require.NotZero(t, event.ID)
	require.NotNil(t, event.RouteID)
	assert.Equal(t, route.ID, *event.RouteID)
	assert.Equal(t, models.DefaultRouteName, route.RouteName)

	stored, err := repo.Get(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RouteDetails)
	assert.Equal(t, 1200, stored.RouteDetails.DistanceM)
	assert.Equal(t, url, *stored.Route)
}

func TestEventRepository_CreateWithRoute_RollsBackOnRouteFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	failInsertsInto(t, db, "routes")

	event := &models.Event{EventName: "Stage 1", EventTime: time.Now()}
	err := repo.CreateWithRoute(context.Background(), event, &models.Route{DistanceM: 10})
	require.Error(t, err)
	assert.Zero(t, event.ID)

	var events, routes int64
	require.NoError(t, db.Model(&models.Event{}).Count(&events).Error)
	require.NoError(t, db.Model(&models.Route{}).Count(&routes).Error)
	assert.Zero(t, events)
	assert.Zero(t, routes)
}

func TestEventRepository_CreateWithoutRoute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	event := &models.Event{EventName: "Gravel day", EventTime: time.Now(), Route: strPtr("https://www.strava.com/routes/1")}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotZero(t, event.ID)
	assert.Nil(t, event.RouteID)

	var routes int64
	require.NoError(t, db.Model(&models.Route{}).Count(&routes).Error)
	assert.Zero(t, routes)
}

func TestEventRepository_ListOrderedByTime(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedEvent(t, db, "late", base.Add(48*time.Hour))
	seedEvent(t, db, "early", base)
	seedEvent(t, db, "middle", base.Add(24*time.Hour))

	events, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"early", "middle", "late"},
		[]string{events[0].EventName, events[1].EventName, events[2].EventName})
}

func TestEventRepository_ListEmpty(t *testing.T) {
	events, err := NewEventRepository(setupTestDB(t)).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEventRepository_GetMissing(t *testing.T) {
	_, err := NewEventRepository(setupTestDB(t)).Get(context.Background(), 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEventRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	event := seedEvent(t, db, "old", time.Now())
	require.NoError(t, db.Model(event).Update("event_description", "desc").Error)

	updated, err := repo.Update(context.Background(), event.ID, map[string]any{
		"event_name":        "new",
		"event_description": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.EventName)
	assert.Nil(t, updated.EventDescription)

	_, err = repo.Update(context.Background(), event.ID+100, map[string]any{"event_name": "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEventRepository_ReplaceRoute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	oldURL := "https://bucket.test/routes/old.gpx"
	event := &models.Event{EventName: "Stage", EventTime: time.Now(), Route: &oldURL}
	oldRoute := &models.Route{DistanceM: 1, RouteURL: &oldURL}
	require.NoError(t, repo.CreateWithRoute(ctx, event, oldRoute))

	newURL := "https://bucket.test/routes/new.gpx"
	updated, previous, err := repo.ReplaceRoute(ctx, event.ID, map[string]any{"event_name": "Stage renamed"},
		&models.Route{DistanceM: 2, RouteURL: &newURL})
	require.NoError(t, err)

	assert.Equal(t, oldURL, *previous.Route)
	assert.Equal(t, "Stage renamed", updated.EventName)
	assert.Equal(t, newURL, *updated.Route)
	require.NotNil(t, updated.RouteDetails)
	assert.Equal(t, 2, updated.RouteDetails.DistanceM)

	var count int64
	require.NoError(t, db.Model(&models.Route{}).Where("id = ?", oldRoute.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEventRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	url := "https://bucket.test/routes/a.gpx"
	event := &models.Event{EventName: "Stage", EventTime: time.Now(), Route: &url}
	require.NoError(t, repo.CreateWithRoute(ctx, event, &models.Route{RouteURL: &url}))
	other := seedEvent(t, db, "other", time.Now())

	regs := NewRegistrationRepository(db, "global")
	require.NoError(t, regs.Create(ctx, &models.Registration{EventID: event.ID, Name: "A", Surname: "B", Email: "a@example.com"}))
	require.NoError(t, regs.Create(ctx, &models.Registration{EventID: other.ID, Name: "C", Surname: "D", Email: "c@example.com"}))

	deleted, err := repo.Delete(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, url, *deleted.Route)

	var events, routes, registrations int64
	db.Model(&models.Event{}).Count(&events)
	db.Model(&models.Route{}).Count(&routes)
	db.Model(&models.Registration{}).Count(&registrations)
	assert.Equal(t, int64(1), events)
	assert.Zero(t, routes)
	assert.Equal(t, int64(1), registrations)

	_, err = repo.Delete(ctx, event.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEventRepository_ReferencedRouteURLs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	a := "https://bucket.test/routes/a.gpx"
	require.NoError(t, repo.CreateWithRoute(ctx, &models.Event{EventName: "a", EventTime: time.Now(), Route: &a}, &models.Route{RouteURL: &a}))
	require.NoError(t, repo.Create(ctx, &models.Event{EventName: "b", EventTime: time.Now(), Route: strPtr("https://elsewhere.test/b")}))
	seedEvent(t, db, "c", time.Now())

	refs, err := repo.ReferencedRouteURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.Contains(t, refs, a)
	assert.Contains(t, refs, "https://elsewhere.test/b")
}
