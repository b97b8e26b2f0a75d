package models

import (
	"time"
)

// Route holds the statistics derived from an uploaded GPX file. Rows are
// written once together with their event and never recomputed.
type Route struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RouteName string    `json:"route_name" gorm:"column:route_name;not null;size:200"`
	DistanceM int       `json:"distance_m" gorm:"column:distance_m;not null"`
	AscentM   int       `json:"ascent_m" gorm:"column:ascent_m;not null"`
	DescentM  int       `json:"descent_m" gorm:"column:descent_m;not null"`
	RouteURL  *string   `json:"route_url" gorm:"column:route_url;size:500"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Route) TableName() string {
	return "routes"
}

const DefaultRouteName = "route"
