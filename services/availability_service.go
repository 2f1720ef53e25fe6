package services

import (
	"errors"
	"fmt"
	"time"

	"stayhub-backend/models"
	"stayhub-backend/utils"

	"gorm.io/gorm"
)

// Calendar operations accepted by the validator and the admin update path.
const (
	OpBook        = "book"
	OpBlock       = "block"
	OpUnblock     = "unblock"
	OpMaintenance = "maintenance"
)

// DateIssue describes one date that blocks (or merely flags) an operation.
type DateIssue struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Reason      string `json:"reason"`
	CanOverride bool   `json:"canOverride"`
}

// ValidationResult is the dry-run answer: Valid means no hard conflicts.
// Warnings are idempotent no-ops the caller may ignore.
type ValidationResult struct {
	Valid     bool        `json:"valid"`
	Conflicts []DateIssue `json:"conflicts"`
	Warnings  []DateIssue `json:"warnings"`
}

// ChangeResult is the outcome of an applied availability update.
type ChangeResult struct {
	Success   bool        `json:"success"`
	Conflicts []DateIssue `json:"conflicts,omitempty"`
}

// AvailabilityService validates and applies blocking/unblocking/maintenance
// changes on room calendars. Validation never mutates state; the update path
// re-validates inside its transaction before writing.
type AvailabilityService struct {
	DB       *gorm.DB
	Calendar *CalendarService
}

func NewAvailabilityService(db *gorm.DB, cal *CalendarService) *AvailabilityService {
	return &AvailabilityService{DB: db, Calendar: cal}
}

func validOperation(op string) bool {
	switch op {
	case OpBook, OpBlock, OpUnblock, OpMaintenance:
		return true
	}
	return false
}

// ValidateChange reports whether applying op to the given dates would
// conflict with existing bookings or past-date rules, without writing
// anything. Business conflicts come back in the result; only malformed input
// or a missing room produce an error.
func (s *AvailabilityService) ValidateChange(roomID uint, dates []time.Time, op string) (*ValidationResult, error) {
	if !validOperation(op) {
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidRange, op)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no dates provided", ErrInvalidRange)
	}
	if err := s.ensureRoom(roomID); err != nil {
		return nil, err
	}
	return s.validate(s.DB, roomID, dates, op, false)
}

func (s *AvailabilityService) ensureRoom(roomID uint) error {
	var room models.Room
	if err := s.DB.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: room %d", ErrRoomNotFound, roomID)
		}
		return err
	}
	return nil
}

// validate runs the scan on the given handle so the update path can reuse it
// inside its transaction. forUpdate makes the year reads take row locks:
// without them the re-validation would run on a snapshot and a booking
// committed after the snapshot could be overwritten by the later locked merge.
func (s *AvailabilityService) validate(tx *gorm.DB, roomID uint, dates []time.Time, op string, forUpdate bool) (*ValidationResult, error) {
	today := Day(time.Now().UTC())
	years := map[int]map[string]models.DateEntry{}

	readYear := s.Calendar.ReadYear
	if forUpdate {
		readYear = s.Calendar.ReadYearLocked
	}

	// Resolve which booked entries still belong to active bookings.
	refs := map[string]bool{}
	for _, d := range dates {
		year := d.Year()
		if _, ok := years[year]; !ok {
			dayMap, err := readYear(tx, roomID, year)
			if err != nil {
				return nil, err
			}
			years[year] = dayMap
		}
		if entry, ok := years[year][Day(d).Format(models.DayKeyLayout)]; ok && entry.BookingRef != "" {
			refs[entry.BookingRef] = false
		}
	}
	if len(refs) > 0 {
		keys := make([]string, 0, len(refs))
		for ref := range refs {
			keys = append(keys, ref)
		}
		var active []models.Booking
		err := tx.Where("reference_code IN ?", keys).
			Where("status IN ?", []string{models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusCheckedIn}).
			Find(&active).Error
		if err != nil {
			return nil, err
		}
		for _, b := range active {
			refs[b.ReferenceCode] = true
		}
	}

	result := &ValidationResult{Conflicts: []DateIssue{}, Warnings: []DateIssue{}}
	for _, d := range dates {
		day := Day(d)
		dateStr := day.Format("2006-01-02")
		entry, exists := years[day.Year()][day.Format(models.DayKeyLayout)]

		// Past dates are immutable for every operation, no override.
		if day.Before(today) {
			result.Conflicts = append(result.Conflicts, DateIssue{
				Date: dateStr, Reason: "past dates cannot be modified",
			})
			continue
		}

		if exists && entry.Status == models.DateStatusBooked {
			if refs[entry.BookingRef] {
				if op != OpUnblock {
					result.Conflicts = append(result.Conflicts, DateIssue{
						Date:   dateStr,
						Reason: fmt.Sprintf("date is booked by booking %s", entry.BookingRef),
					})
				}
			} else {
				result.Warnings = append(result.Warnings, DateIssue{
					Date: dateStr, Reason: "booked entry references an inactive booking", CanOverride: true,
				})
			}
			continue
		}

		switch op {
		case OpBook:
			if exists {
				result.Conflicts = append(result.Conflicts, DateIssue{
					Date: dateStr, Reason: fmt.Sprintf("date is %s", entry.Status),
				})
			}
		case OpBlock:
			if exists && entry.Status == models.DateStatusBlocked {
				result.Warnings = append(result.Warnings, DateIssue{
					Date: dateStr, Reason: "date is already blocked", CanOverride: true,
				})
			}
		case OpMaintenance:
			if exists && entry.Status == models.DateStatusMaintenance {
				result.Warnings = append(result.Warnings, DateIssue{
					Date: dateStr, Reason: "date is already under maintenance", CanOverride: true,
				})
			}
		case OpUnblock:
			if !exists {
				result.Warnings = append(result.Warnings, DateIssue{
					Date: dateStr, Reason: "date is already available", CanOverride: true,
				})
			}
		}
	}

	result.Valid = len(result.Conflicts) == 0
	return result, nil
}

// UpdateAvailability applies block/unblock/maintenance to the given dates in
// a single transaction spanning every affected year, so a change crossing a
// year boundary commits whole or not at all. Booking is not an admin
// operation here; the booking path owns the booked transition.
func (s *AvailabilityService) UpdateAvailability(roomID uint, dates []time.Time, op, reason, actor string) (*ChangeResult, error) {
	if op == OpBook || !validOperation(op) {
		return nil, fmt.Errorf("%w: operation %q not allowed", ErrInvalidRange, op)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no dates provided", ErrInvalidRange)
	}
	if err := s.ensureRoom(roomID); err != nil {
		return nil, err
	}

	var result *ChangeResult
	err := utils.WithRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			// Re-validate under row locks: the dry run is advisory and a
			// booking may have claimed a day since.
			check, err := s.validate(tx, roomID, dates, op, true)
			if err != nil {
				return err
			}
			if !check.Valid {
				result = &ChangeResult{Success: false, Conflicts: check.Conflicts}
				return nil
			}

			now := time.Now().UTC()
			updates := map[int]map[string]*models.DateEntry{}
			for _, d := range dates {
				day := Day(d)
				year := day.Year()
				if _, ok := updates[year]; !ok {
					updates[year] = map[string]*models.DateEntry{}
				}
				key := day.Format(models.DayKeyLayout)
				switch op {
				case OpUnblock:
					updates[year][key] = nil
				case OpBlock:
					updates[year][key] = &models.DateEntry{
						Status: models.DateStatusBlocked, Reason: reason, BlockedBy: actor, BlockedAt: &now,
					}
				case OpMaintenance:
					updates[year][key] = &models.DateEntry{
						Status: models.DateStatusMaintenance, Reason: reason, BlockedBy: actor, BlockedAt: &now,
					}
				}
			}

			for year, yearUpdates := range updates {
				if op == OpUnblock {
					// Unblock releases blocks and maintenance only. Booked
					// days leave only through cancellation or check-out.
					current, err := s.Calendar.ReadYearLocked(tx, roomID, year)
					if err != nil {
						return err
					}
					for key := range yearUpdates {
						if entry, ok := current[key]; ok && entry.Status == models.DateStatusBooked {
							delete(yearUpdates, key)
						}
					}
				}
				if err := s.Calendar.MergeWriteYear(tx, roomID, year, yearUpdates); err != nil {
					return err
				}
			}
			result = &ChangeResult{Success: true}
			return nil
		})
	}, 3, 50*time.Millisecond)
	if err != nil {
		return nil, mapRetryErr(err)
	}
	return result, nil
}
