package services

import (
	"testing"
	"time"

	"stayhub-backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB runs the real transactional code paths against an in-memory
// SQLite database. A single connection keeps the :memory: database alive and
// shared across the test's transactions.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Admin{},
		&models.Room{},
		&models.RoomCalendar{},
		&models.Booking{},
		&models.BookingRoom{},
	))
	return db
}

func seedRoom(t *testing.T, db *gorm.DB, number string, price float64) models.Room {
	t.Helper()
	room := models.Room{
		RoomNumber:   number,
		Name:         "Room " + number,
		Type:         "Standard",
		Status:       "Available",
		Price:        price,
		MaxOccupancy: 2,
		Version:      1,
	}
	require.NoError(t, db.Create(&room).Error)
	return room
}

// nextYear gives tests a year safely in the future so past-date rules never
// interfere.
func nextYear() int {
	return time.Now().UTC().Year() + 1
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func readYearMap(t *testing.T, cal *CalendarService, roomID uint, year int) map[string]models.DateEntry {
	t.Helper()
	days, err := cal.ReadYear(cal.DB, roomID, year)
	require.NoError(t, err)
	return days
}
