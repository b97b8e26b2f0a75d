package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"raceday-api/apperror"
	"raceday-api/metrics"
	"raceday-api/models"
	"raceday-api/repositories"
	"raceday-api/utils"
)

type RegistrationInput struct {
	EventID   uint
	Name      string
	Surname   string
	Email     string
	Phone     *string
	Gender    *string
	BirthYear *int
	Club      *string
	Country   *string
	City      *string
}

// RegistrationNotifier is told about every stored registration.
type RegistrationNotifier interface {
	SendRegistrationConfirmation(reg *models.Registration, event *models.Event) error
}

type RegistrationService struct {
	registrations *repositories.RegistrationRepository
	events        *repositories.EventRepository
	notifier      RegistrationNotifier
	metrics       *metrics.Metrics
	now           func() time.Time

	wg sync.WaitGroup
}

// NewRegistrationService builds the service; notifier may be nil.
func NewRegistrationService(
	registrations *repositories.RegistrationRepository,
	events *repositories.EventRepository,
	notifier RegistrationNotifier,
	m *metrics.Metrics,
) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		events:        events,
		notifier:      notifier,
		metrics:       m,
		now:           time.Now,
	}
}

func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*models.RegistrationDTO, error) {
	reg, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, err
	}
	s.metrics.RegistrationCreated()
	slog.InfoContext(ctx, "registration stored", "event_id", reg.EventID, "start_number", reg.StartNumber)

	s.notify(reg)

	dto := reg.ToDTO()
	return &dto, nil
}

func (s *RegistrationService) validate(in RegistrationInput) (*models.Registration, error) {
	if in.EventID == 0 {
		return nil, apperror.ValidationField("eventId", "eventId is required and must be integer")
	}

	name := strings.TrimSpace(in.Name)
	surname := strings.TrimSpace(in.Surname)
	email := strings.TrimSpace(in.Email)

	switch {
	case name == "":
		return nil, apperror.ValidationField("name", "name is required")
	case surname == "":
		return nil, apperror.ValidationField("surname", "surname is required")
	case email == "":
		return nil, apperror.ValidationField("email", "email is required")
	case utf8.RuneCountInString(name) > 50:
		return nil, apperror.ValidationField("name", "name must be at most 50 characters")
	case utf8.RuneCountInString(surname) > 80:
		return nil, apperror.ValidationField("surname", "surname must be at most 80 characters")
	case utf8.RuneCountInString(email) > 100:
		return nil, apperror.ValidationField("email", "email must be at most 100 characters")
	}

	if !utils.IsValidEmail(email) {
		return nil, apperror.ValidationField("email", "Invalid email")
	}
	if in.Phone != nil && *in.Phone != "" && !utils.IsValidPhone(*in.Phone) {
		return nil, apperror.ValidationField("phone", "Invalid phone")
	}
	if in.BirthYear != nil && !utils.IsValidBirthYear(*in.BirthYear, s.now()) {
		return nil, apperror.ValidationField("birth_year", "birth_year must be between 1925 and current year")
	}

	for _, f := range []struct {
		name  string
		value *string
		max   int
	}{
		{"gender", in.Gender, 10},
		{"club", in.Club, 100},
		{"country", in.Country, 50},
		{"city", in.City, 50},
	} {
		if f.value != nil && utf8.RuneCountInString(*f.value) > f.max {
			return nil, apperror.ValidationField(f.name, f.name+" is too long")
		}
	}

	return &models.Registration{
		EventID:   in.EventID,
		Name:      name,
		Surname:   surname,
		Email:     email,
		Phone:     in.Phone,
		Gender:    in.Gender,
		BirthYear: in.BirthYear,
		Club:      in.Club,
		Country:   in.Country,
		City:      in.City,
	}, nil
}

// notify sends the confirmation in the background; the registration is
// already committed, so failures are only logged.
func (s *RegistrationService) notify(reg *models.Registration) {
	if s.notifier == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		event, err := s.events.Get(ctx, reg.EventID)
		if err != nil {
			slog.Warn("confirmation email skipped", "registration_id", reg.ID, "error", err)
			return
		}
		if err := s.notifier.SendRegistrationConfirmation(reg, event); err != nil {
			slog.Warn("failed to send confirmation email", "registration_id", reg.ID, "error", err)
		}
	}()
}

// Wait blocks until pending confirmation emails have been handed off.
func (s *RegistrationService) Wait() {
	s.wg.Wait()
}

// ListByEvent returns an event's registrations in start number order.
func (s *RegistrationService) ListByEvent(ctx context.Context, eventID uint) ([]models.RegistrationDTO, error) {
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]models.RegistrationDTO, 0, len(regs))
	for i := range regs {
		out = append(out, regs[i].ToDTO())
	}
	return out, nil
}
