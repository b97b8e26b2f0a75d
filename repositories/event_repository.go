package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"raceday-api/apperror"
	"raceday-api/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns every event ordered by start time.
func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	events := []models.Event{}
	err := r.db.WithContext(ctx).
		Order("event_time ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Get loads one event together with its route statistics.
func (r *EventRepository) Get(ctx context.Context, id uint) (*models.Event, error) {
	return findEvent(r.db.WithContext(ctx).Preload("RouteDetails"), id)
}

func findEvent(db *gorm.DB, id uint) (*models.Event, error) {
	var event models.Event
	if err := db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("failed to load event %d: %w", id, err)
	}
	return &event, nil
}

// Create inserts an event whose route is an external URL; no Route row is
// written.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Omit("RouteDetails").Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// CreateWithRoute inserts the event, then the route, then links the two, all
// in one transaction. On any error nothing is persisted.
func (r *EventRepository) CreateWithRoute(ctx context.Context, event *models.Event, route *models.Route) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event.RouteID = nil
		if err := tx.Omit("RouteDetails").Create(event).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		if route.RouteName == "" {
			route.RouteName = models.DefaultRouteName
		}
		if err := tx.Create(route).Error; err != nil {
			return fmt.Errorf("insert route: %w", err)
		}

		if err := tx.Model(event).Update("route_id", route.ID).Error; err != nil {
			return fmt.Errorf("link event to route: %w", err)
		}
		event.RouteID = &route.ID
		event.RouteDetails = route
		return nil
	})
	if err != nil {
		event.ID = 0
		event.RouteID = nil
		event.RouteDetails = nil
		return fmt.Errorf("failed to create event with route: %w", err)
	}
	return nil
}

// Update applies column updates to an existing event and returns the fresh
// row.
func (r *EventRepository) Update(ctx context.Context, id uint, updates map[string]any) (*models.Event, error) {
	var updated *models.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(event).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update event %d: %w", id, err)
		}
		updated, err = findEvent(tx.Preload("RouteDetails"), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReplaceRoute stores a new Route for the event, points the event at it,
// applies any other updates and drops the previously owned Route row. The
// event as it was before the change is returned so the caller can clean up
// the old file.
func (r *EventRepository) ReplaceRoute(ctx context.Context, id uint, updates map[string]any, route *models.Route) (updated, previous *models.Event, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, err = findEvent(tx, id)
		if err != nil {
			return err
		}

		if route.RouteName == "" {
			route.RouteName = models.DefaultRouteName
		}
		if err := tx.Create(route).Error; err != nil {
			return fmt.Errorf("insert route: %w", err)
		}

		changes := make(map[string]any, len(updates)+2)
		for k, v := range updates {
			changes[k] = v
		}
		changes["route"] = route.RouteURL
		changes["route_id"] = route.ID

		if err := tx.Model(&models.Event{ID: id}).Updates(changes).Error; err != nil {
			return fmt.Errorf("update event %d: %w", id, err)
		}

		if previous.HasUploadedRoute() {
			if err := tx.Delete(&models.Route{}, *previous.RouteID).Error; err != nil {
				return fmt.Errorf("delete previous route: %w", err)
			}
		}

		updated, err = findEvent(tx.Preload("RouteDetails"), id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, previous, nil
}

// Delete removes the event, its registrations and its owned Route row in one
// transaction and returns the deleted event.
func (r *EventRepository) Delete(ctx context.Context, id uint) (*models.Event, error) {
	var deleted *models.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, id)
		if err != nil {
			return err
		}

		// Registrations first; not every driver enforces the cascade.
		if err := tx.Where("event_id = ?", id).Delete(&models.Registration{}).Error; err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if err := tx.Delete(&models.Event{}, id).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if event.HasUploadedRoute() {
			if err := tx.Delete(&models.Route{}, *event.RouteID).Error; err != nil {
				return fmt.Errorf("delete route: %w", err)
			}
		}

		deleted = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ReferencedRouteURLs returns every route file URL still reachable from an
// event or a Route row.
func (r *EventRepository) ReferencedRouteURLs(ctx context.Context) (map[string]struct{}, error) {
	var eventURLs, routeURLs []string

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Event{}).Where("route IS NOT NULL").Pluck("route", &eventURLs).Error; err != nil {
		return nil, fmt.Errorf("failed to load event route URLs: %w", err)
	}
	if err := db.Model(&models.Route{}).Where("route_url IS NOT NULL").Pluck("route_url", &routeURLs).Error; err != nil {
		return nil, fmt.Errorf("failed to load route URLs: %w", err)
	}

	refs := make(map[string]struct{}, len(eventURLs)+len(routeURLs))
	for _, u := range eventURLs {
		refs[u] = struct{}{}
	}
	for _, u := range routeURLs {
		refs[u] = struct{}{}
	}
	return refs, nil
}
