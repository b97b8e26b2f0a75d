package models

import (
	"time"
)

type Event struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	EventName        string    `json:"event_name" gorm:"column:event_name;not null;size:100"`
	EventTime        time.Time `json:"event_time" gorm:"column:event_time;not null;index"`
	EventDescription *string   `json:"event_description" gorm:"column:event_description;size:500"`
	Route            *string   `json:"route" gorm:"column:route;size:500"`
	EventStart       *string   `json:"event_start" gorm:"column:event_start;size:100"` // free-form, usually "lat,lon"
	RouteID          *uint     `json:"route_id" gorm:"column:route_id;index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	RouteDetails *Route `json:"route_details,omitempty" gorm:"foreignKey:RouteID;constraint:OnDelete:SET NULL"`
}

func (Event) TableName() string {
	return "events"
}

// HasUploadedRoute reports whether the event owns a Route row created from
// an uploaded GPX file.
func (e *Event) HasUploadedRoute() bool {
	return e.RouteID != nil
}
