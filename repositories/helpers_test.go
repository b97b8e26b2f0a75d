package repositories

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"raceday-api/database"
	"raceday-api/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Initialize("sqlite", dsn, database.Options{MaxOpenConns: 1, IdleTimeout: time.Hour})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// failInsertsInto makes every INSERT into table fail before it reaches the
// database.
func failInsertsInto(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			_ = tx.AddError(errors.New("injected insert failure"))
		}
	})
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func seedEvent(t *testing.T, db *gorm.DB, name string, at time.Time) *models.Event {
	t.Helper()
	event := &models.Event{EventName: name, EventTime: at}
	require.NoError(t, db.Create(event).Error)
	return event
}
