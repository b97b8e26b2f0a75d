package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raceday-api/apperror"
	"raceday-api/config"
	"raceday-api/models"
)

type RegistrationRepository struct {
	db    *gorm.DB
	scope string
}

// NewRegistrationRepository allocates start numbers per scope, either
// config.StartNumberScopeGlobal or config.StartNumberScopeEvent.
func NewRegistrationRepository(db *gorm.DB, scope string) *RegistrationRepository {
	if scope != config.StartNumberScopeEvent {
		scope = config.StartNumberScopeGlobal
	}
	return &RegistrationRepository{db: db, scope: scope}
}

func (r *RegistrationRepository) counterScope(eventID uint) string {
	if r.scope == config.StartNumberScopeEvent {
		return models.EventStartNumberScope(eventID)
	}
	return models.GlobalStartNumberScope
}

// Create assigns the next start number and inserts the registration in the
// same transaction. The counter row is locked by the increment, so concurrent
// registrations in one scope are serialized by the database.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	scope := r.counterScope(reg.EventID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Event{}).Where("id = ?", reg.EventID).Count(&count).Error; err != nil {
			return fmt.Errorf("check event: %w", err)
		}
		if count == 0 {
			return apperror.NotFound("event", reg.EventID)
		}

		number, err := nextStartNumber(tx, scope)
		if err != nil {
			return err
		}
		reg.StartNumber = number

		if err := tx.Omit("Event").Create(reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("email is already registered for this event")
			}
			return fmt.Errorf("insert registration: %w", err)
		}
		return nil
	})
	if err != nil {
		reg.ID = 0
		reg.StartNumber = 0
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func nextStartNumber(tx *gorm.DB, scope string) (int64, error) {
	counter := models.StartNumberCounter{Scope: scope}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return 0, fmt.Errorf("ensure start number counter: %w", err)
	}

	res := tx.Model(&models.StartNumberCounter{}).
		Where("scope = ?", scope).
		UpdateColumn("value", gorm.Expr("value + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("increment start number counter: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("start number counter %q not found", scope)
	}

	if err := tx.Where("scope = ?", scope).Take(&counter).Error; err != nil {
		return 0, fmt.Errorf("read start number counter: %w", err)
	}
	return counter.Value, nil
}

// ListByEvent returns an event's registrations ordered by start number.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID uint) ([]models.Registration, error) {
	db := r.db.WithContext(ctx)

	if _, err := findEvent(db, eventID); err != nil {
		return nil, err
	}

	regs := []models.Registration{}
	if err := db.Where("event_id = ?", eventID).Order("start_number ASC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}
