package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"raceday-api/apperror"
	"raceday-api/gpx"
	"raceday-api/metrics"
	"raceday-api/models"
	"raceday-api/repositories"
	"raceday-api/storage"
)

// EventFields are the scalar event attributes shared by both create paths.
type EventFields struct {
	EventName        string
	EventTime        string
	EventDescription *string
	EventStart       *string
}

// RouteFile is an uploaded GPX file.
type RouteFile struct {
	Filename    string
	ContentType string
	Data        []byte
	// RouteName labels the Route row; defaults to models.DefaultRouteName.
	RouteName string
}

// UpdateEventInput describes a partial update. Nil fields are left alone;
// empty EventName or EventTime are ignored, while an empty description or
// start clears the column.
type UpdateEventInput struct {
	EventName        *string
	EventTime        *string
	EventDescription *string
	EventStart       *string
	File             *RouteFile
}

type EventService struct {
	events  *repositories.EventRepository
	store   storage.RouteStore
	metrics *metrics.Metrics
}

func NewEventService(events *repositories.EventRepository, store storage.RouteStore, m *metrics.Metrics) *EventService {
	return &EventService{events: events, store: store, metrics: m}
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	return s.events.List(ctx)
}

func (s *EventService) Get(ctx context.Context, id uint) (*models.Event, error) {
	return s.events.Get(ctx, id)
}

// CreateWithRoute creates an event whose route is an external URL.
func (s *EventService) CreateWithRoute(ctx context.Context, fields EventFields, route *string) (*models.Event, error) {
	event, err := newEvent(fields)
	if err != nil {
		return nil, err
	}
	if route == nil || strings.TrimSpace(*route) == "" {
		return nil, apperror.ValidationField("route", "route is required")
	}
	event.Route = route

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	s.metrics.EventCreated(metrics.SourceJSON)
	return event, nil
}

// CreateWithUpload stores the GPX file, derives its statistics and creates
// the event and its Route in one transaction. The file is uploaded before
// any database work; if the transaction then fails the object is left for
// the orphan sweep.
func (s *EventService) CreateWithUpload(ctx context.Context, fields EventFields, file *RouteFile) (*models.Event, error) {
	event, err := newEvent(fields)
	if err != nil {
		return nil, err
	}
	if file == nil || len(file.Data) == 0 {
		return nil, apperror.ValidationField("route", "route GPX file is required")
	}

	route, err := s.storeRoute(ctx, file)
	if err != nil {
		return nil, err
	}
	event.Route = route.RouteURL

	if err := s.events.CreateWithRoute(ctx, event, route); err != nil {
		slog.ErrorContext(ctx, "event creation rolled back, route file left in storage",
			"route_url", *route.RouteURL, "error", err)
		return nil, err
	}

	s.metrics.EventCreated(metrics.SourceUpload)
	return event, nil
}

// storeRoute uploads the file and builds the unsaved Route row for it.
func (s *EventService) storeRoute(ctx context.Context, file *RouteFile) (*models.Route, error) {
	obj, err := s.store.Upload(ctx, storage.UploadInput{
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Body:        file.Data,
	})
	if err != nil {
		return nil, err
	}

	res := gpx.Analyze(file.Data)
	if !res.Parsed() {
		slog.WarnContext(ctx, "route file could not be parsed, storing zero statistics",
			"key", obj.Key, "error", res.Err)
		s.metrics.GPXParseFailed()
	}

	name := strings.TrimSpace(file.RouteName)
	if name == "" {
		name = models.DefaultRouteName
	}

	url := obj.URL
	return &models.Route{
		RouteName: name,
		DistanceM: res.Stats.DistanceM,
		AscentM:   res.Stats.AscentM,
		DescentM:  res.Stats.DescentM,
		RouteURL:  &url,
	}, nil
}

func (s *EventService) Update(ctx context.Context, id uint, in UpdateEventInput) (*models.Event, error) {
	updates := map[string]any{}

	if in.EventName != nil && strings.TrimSpace(*in.EventName) != "" {
		name := strings.TrimSpace(*in.EventName)
		if utf8.RuneCountInString(name) > 100 {
			return nil, apperror.ValidationField("event_name", "event_name must be at most 100 characters")
		}
		updates["event_name"] = name
	}
	if in.EventTime != nil && strings.TrimSpace(*in.EventTime) != "" {
		t, err := ParseEventTime(*in.EventTime)
		if err != nil {
			return nil, err
		}
		updates["event_time"] = t
	}
	if in.EventDescription != nil {
		updates["event_description"] = nullIfEmpty(in.EventDescription)
	}
	if in.EventStart != nil {
		updates["event_start"] = nullIfEmpty(in.EventStart)
	}

	hasFile := in.File != nil && len(in.File.Data) > 0
	if len(updates) == 0 && !hasFile {
		return nil, apperror.Validation("No updates provided")
	}

	if !hasFile {
		return s.events.Update(ctx, id, updates)
	}

	// Fail unknown ids before uploading anything.
	if _, err := s.events.Get(ctx, id); err != nil {
		return nil, err
	}

	route, err := s.storeRoute(ctx, in.File)
	if err != nil {
		return nil, err
	}

	updated, previous, err := s.events.ReplaceRoute(ctx, id, updates, route)
	if err != nil {
		return nil, err
	}

	if previous.Route != nil && *previous.Route != *route.RouteURL {
		s.deleteRouteFile(ctx, *previous.Route, metrics.ReasonReplaced)
	}
	return updated, nil
}

// Delete removes the event with its registrations and owned route, then the
// route file when it lives in our bucket. A failed file delete is logged; the
// database change stands.
func (s *EventService) Delete(ctx context.Context, id uint) error {
	deleted, err := s.events.Delete(ctx, id)
	if err != nil {
		return err
	}

	if deleted.Route != nil {
		s.deleteRouteFile(ctx, *deleted.Route, metrics.ReasonEventDelete)
	}
	return nil
}

func (s *EventService) deleteRouteFile(ctx context.Context, url, reason string) {
	key, ok := s.store.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete route file", "key", key, "reason", reason, "error", err)
		return
	}
	s.metrics.RouteFileDeleted(reason)
}

func newEvent(fields EventFields) (*models.Event, error) {
	name := strings.TrimSpace(fields.EventName)
	if name == "" || strings.TrimSpace(fields.EventTime) == "" {
		return nil, apperror.Validation("event_name and event_time are required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return nil, apperror.ValidationField("event_name", "event_name must be at most 100 characters")
	}

	at, err := ParseEventTime(fields.EventTime)
	if err != nil {
		return nil, err
	}

	return &models.Event{
		EventName:        name,
		EventTime:        at,
		EventDescription: nullIfEmpty(fields.EventDescription),
		EventStart:       nullIfEmpty(fields.EventStart),
	}, nil
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseEventTime accepts RFC 3339 timestamps, and local date-times without a
// zone (as sent by datetime-local inputs) which are taken as UTC. A space may
// stand in for the T separator.
func ParseEventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.ValidationField("event_time",
		fmt.Sprintf("event_time %q is not a valid timestamp", raw))
}

func nullIfEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
