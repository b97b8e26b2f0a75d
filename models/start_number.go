package models

import "fmt"

// StartNumberCounter is the store-side sequence start numbers are drawn
// from. Scope is either GlobalStartNumberScope or EventStartNumberScope(id).
type StartNumberCounter struct {
	Scope string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}

func (StartNumberCounter) TableName() string {
	return "start_number_counters"
}

const GlobalStartNumberScope = "global"

func EventStartNumberScope(eventID uint) string {
	return fmt.Sprintf("event:%d", eventID)
}
