package models

import (
	"time"
)

type Registration struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EventID     uint      `json:"event_id" gorm:"column:event_id;not null;index;uniqueIndex:uk_event_registrations_event_email,priority:1;uniqueIndex:uk_event_registrations_event_start_number,priority:1"`
	Name        string    `json:"name" gorm:"not null;size:50"`
	Surname     string    `json:"surname" gorm:"not null;size:80"`
	Email       string    `json:"email" gorm:"not null;size:100;uniqueIndex:uk_event_registrations_event_email,priority:2"`
	Phone       *string   `json:"phone" gorm:"size:25"`
	Gender      *string   `json:"gender" gorm:"size:10"`
	BirthYear   *int      `json:"birth_year" gorm:"column:birth_year"`
	Club        *string   `json:"club" gorm:"size:100"`
	Country     *string   `json:"country" gorm:"size:50"`
	City        *string   `json:"city" gorm:"size:50"`
	StartNumber int64     `json:"start_number" gorm:"column:start_number;not null;uniqueIndex:uk_event_registrations_event_start_number,priority:2"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Event *Event `json:"-" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (Registration) TableName() string {
	return "event_registrations"
}

// RegistrationDTO is the public shape of a registration: optional text
// fields are never null.
type RegistrationDTO struct {
	ID          uint      `json:"id"`
	EventID     uint      `json:"event_id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Gender      string    `json:"gender"`
	BirthYear   *int      `json:"birth_year"`
	Club        string    `json:"club"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	StartNumber int64     `json:"start_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Registration) ToDTO() RegistrationDTO {
	return RegistrationDTO{
		ID:          r.ID,
		EventID:     r.EventID,
		Name:        r.Name,
		Surname:     r.Surname,
		Email:       r.Email,
		Phone:       deref(r.Phone),
		Gender:      deref(r.Gender),
		BirthYear:   r.BirthYear,
		Club:        deref(r.Club),
		Country:     deref(r.Country),
		City:        deref(r.City),
		StartNumber: r.StartNumber,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
