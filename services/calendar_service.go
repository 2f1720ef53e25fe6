package services

import (
	"errors"
	"fmt"
	"time"

	"stayhub-backend/models"
	"stayhub-backend/utils"

	mysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CalendarService reads and writes per-room, per-year availability documents.
// Its write path composes inside the caller's transaction: MergeWriteYear
// never opens a transaction of its own, so a booking row and its calendar
// claims always commit (or abort) together.
type CalendarService struct {
	DB *gorm.DB
}

func NewCalendarService(db *gorm.DB) *CalendarService {
	return &CalendarService{DB: db}
}

// YearDays is one calendar-year slice of a requested stay: the day-keys a
// range covers within a single year partition, in order.
type YearDays struct {
	Year int
	Days []string
}

// lockForUpdate adds a row lock on dialects that support it. SQLite, used in
// tests, rejects FOR UPDATE and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DatesInRange expands the half-open interval [checkIn, checkOut) into
// ordered day-keys grouped by calendar year. An empty or reversed range is
// rejected with ErrInvalidRange.
func (s *CalendarService) DatesInRange(checkIn, checkOut time.Time) ([]YearDays, error) {
	from := Day(checkIn)
	to := Day(checkOut)
	if !to.After(from) {
		return nil, fmt.Errorf("%w: check_out must be after check_in", ErrInvalidRange)
	}

	var groups []YearDays
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DayKeyLayout)
		if n := len(groups); n > 0 && groups[n-1].Year == d.Year() {
			groups[n-1].Days = append(groups[n-1].Days, key)
			continue
		}
		groups = append(groups, YearDays{Year: d.Year(), Days: []string{key}})
	}
	return groups, nil
}

// ReadYear returns the full day-key map for (roomID, year), or an empty map
// when no partition exists yet. Runs on whatever handle the caller passes;
// pass a transaction to read inside it.
func (s *CalendarService) ReadYear(tx *gorm.DB, roomID uint, year int) (map[string]models.DateEntry, error) {
	var cal models.RoomCalendar
	err := tx.Where("room_id = ? AND year = ?", roomID, year).First(&cal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]models.DateEntry{}, nil
		}
		return nil, fmt.Errorf("read calendar %d/%d: %w", roomID, year, err)
	}
	return cal.DayMap()
}

// ReadYearLocked is ReadYear with a FOR UPDATE row lock, for callers that
// re-check and then write inside the same transaction.
func (s *CalendarService) ReadYearLocked(tx *gorm.DB, roomID uint, year int) (map[string]models.DateEntry, error) {
	return s.ReadYear(lockForUpdate(tx), roomID, year)
}

// MergeWriteYear applies a partial update to a year partition inside the
// caller's transaction. A nil entry deletes the day-key (back to available);
// day-keys not mentioned are untouched.
func (s *CalendarService) MergeWriteYear(tx *gorm.DB, roomID uint, year int, updates map[string]*models.DateEntry) error {
	if len(updates) == 0 {
		return nil
	}

	var cal models.RoomCalendar
	err := lockForUpdate(tx).Where("room_id = ? AND year = ?", roomID, year).First(&cal).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("read calendar %d/%d: %w", roomID, year, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cal = models.RoomCalendar{RoomID: roomID, Year: year}
	}

	days, mapErr := cal.DayMap()
	if mapErr != nil {
		return fmt.Errorf("decode calendar %d/%d: %w", roomID, year, mapErr)
	}

	for key, entry := range updates {
		if entry == nil {
			delete(days, key)
			continue
		}
		days[key] = *entry
	}

	if err := cal.SetDayMap(days); err != nil {
		return fmt.Errorf("encode calendar %d/%d: %w", roomID, year, err)
	}
	if cal.ID == 0 {
		// Concurrent first-writers race to insert the (room, year) row. The
		// unique index fails the loser with a duplicate key, which is
		// reclassified as retryable so the retried transaction merges into
		// the winner's row.
		if err := tx.Create(&cal).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: calendar %d/%d insert race", utils.ErrWriteConflict, roomID, year)
			}
			return err
		}
		return nil
	}
	return tx.Model(&models.RoomCalendar{}).Where("id = ?", cal.ID).Update("days", cal.Days).Error
}

const mysqlErrDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}
