package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"raceday-api/database"
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

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="42.0" lon="19.0"><ele>100</ele></trkpt>
    <trkpt lat="42.001" lon="19.001"><ele>150</ele></trkpt>
    <trkpt lat="42.002" lon="19.002"><ele>120</ele></trkpt>
  </trkseg></trk>
</gpx>`

func sampleRouteFile(name string) *RouteFile {
	return &RouteFile{Filename: name, ContentType: "application/gpx+xml", Data: []byte(strings.TrimSpace(sampleGPX))}
}
