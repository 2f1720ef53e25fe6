package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"stayhub-backend/models"
	"stayhub-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingService atomically creates bookings with their calendar claims, and
// reverses them on cancellation or check-out. A booking row and every day it
// claims commit in one transaction, whatever years the stay spans.
type BookingService struct {
	DB       *gorm.DB
	Calendar *CalendarService
	Events   *EventPublisher
}

func NewBookingService(db *gorm.DB, cal *CalendarService, events *EventPublisher) *BookingService {
	return &BookingService{DB: db, Calendar: cal, Events: events}
}

// CreateBookingInput carries everything needed to create a booking. Status
// defaults to Confirmed; the payment path passes its own payment fields.
type CreateBookingInput struct {
	RoomIDs    []uint
	CheckIn    time.Time
	CheckOut   time.Time
	GuestName  string
	GuestEmail string
	Adults     int
	Children   int

	Status          string
	PaymentMethod   string
	PaymentStatus   string
	PaymentIntentID string
	TransactionID   string
}

func dedupeRoomIDs(ids []uint) []uint {
	seen := map[uint]struct{}{}
	var out []uint
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// CreateBooking claims every requested room-date and writes the booking in a
// single transaction. If any target day is unavailable the whole transaction
// aborts with the conflicting dates; no partial claim survives. Store-level
// write conflicts are retried up to the attempt budget, then surfaced as
// unavailable.
func (s *BookingService) CreateBooking(input CreateBookingInput) (*models.Booking, error) {
	roomIDs := dedupeRoomIDs(input.RoomIDs)
	if len(roomIDs) == 0 {
		return nil, fmt.Errorf("%w: no rooms requested", ErrInvalidRange)
	}
	if input.GuestEmail == "" {
		return nil, fmt.Errorf("%w: guest email is required", ErrInvalidRange)
	}

	groups, err := s.Calendar.DatesInRange(input.CheckIn, input.CheckOut)
	if err != nil {
		return nil, err
	}
	checkIn := Day(input.CheckIn)
	checkOut := Day(input.CheckOut)
	if checkIn.Before(Day(time.Now().UTC())) {
		return nil, fmt.Errorf("%w: check_in is in the past", ErrInvalidRange)
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)

	status := input.Status
	if status == "" {
		status = models.BookingStatusConfirmed
	}
	adults := input.Adults
	if adults <= 0 {
		adults = 1
	}
	children := input.Children
	if children < 0 {
		children = 0
	}

	ref := uuid.NewString()
	var bookingID uint

	txErr := utils.WithRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			// One payment intent funds at most one booking, checked under
			// lock inside the same transaction that creates the row.
			if input.PaymentIntentID != "" {
				var dup models.Booking
				derr := lockForUpdate(tx).Where("payment_intent_id = ?", input.PaymentIntentID).First(&dup).Error
				if derr == nil {
					return fmt.Errorf("%w: %s", ErrIntentAlreadyUsed, input.PaymentIntentID)
				}
				if !errors.Is(derr, gorm.ErrRecordNotFound) {
					return derr
				}
			}

			var rooms []models.Room
			for _, rid := range roomIDs {
				var room models.Room
				if err := tx.First(&room, rid).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: room %d", ErrRoomNotFound, rid)
					}
					return err
				}
				rooms = append(rooms, room)
			}

			// Re-check every target day under lock before claiming anything.
			var conflicts []string
			for _, room := range rooms {
				for _, group := range groups {
					dayMap, err := s.Calendar.ReadYearLocked(tx, room.ID, group.Year)
					if err != nil {
						return err
					}
					for _, key := range group.Days {
						if entry, taken := dayMap[key]; taken && entry.BookingRef != ref {
							conflicts = append(conflicts, fmt.Sprintf("%d-%s", group.Year, key))
						}
					}
				}
			}
			if len(conflicts) > 0 {
				sort.Strings(conflicts)
				return &DateConflictError{Dates: conflicts}
			}

			var totalCost float64
			for _, room := range rooms {
				totalCost += room.Price * float64(nights)
			}

			booking := models.Booking{
				ReferenceCode:   ref,
				GuestName:       input.GuestName,
				GuestEmail:      input.GuestEmail,
				CheckInDate:     checkIn,
				CheckOutDate:    checkOut,
				Nights:          nights,
				Adults:          adults,
				Children:        children,
				TotalCost:       totalCost,
				Status:          status,
				PaymentMethod:   input.PaymentMethod,
				PaymentStatus:   input.PaymentStatus,
				PaymentIntentID: input.PaymentIntentID,
				TransactionID:   input.TransactionID,
			}
			if err := tx.Create(&booking).Error; err != nil {
				return fmt.Errorf("create booking: %w", err)
			}
			bookingID = booking.ID

			for _, room := range rooms {
				br := models.BookingRoom{
					BookingID:     booking.ID,
					RoomID:        room.ID,
					Nights:        nights,
					PricePerNight: room.Price,
					Status:        "Reserved",
				}
				if err := tx.Create(&br).Error; err != nil {
					return fmt.Errorf("create booking_room for room %d: %w", room.ID, err)
				}

				for _, group := range groups {
					updates := map[string]*models.DateEntry{}
					for _, key := range group.Days {
						updates[key] = &models.DateEntry{
							Status:     models.DateStatusBooked,
							BookingRef: ref,
							GuestEmail: input.GuestEmail,
						}
					}
					if err := s.Calendar.MergeWriteYear(tx, room.ID, group.Year, updates); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}, 3, 50*time.Millisecond)
	if txErr != nil {
		return nil, mapRetryErr(txErr)
	}

	var booking models.Booking
	if err := s.DB.Preload("Rooms").First(&booking, bookingID).Error; err != nil {
		return nil, err
	}

	s.Events.publishAsync(EventBookingCreated, map[string]any{
		"booking_id": booking.ReferenceCode,
		"rooms":      roomIDs,
		"check_in":   checkIn.Format("2006-01-02"),
		"check_out":  checkOut.Format("2006-01-02"),
		"guest":      booking.GuestEmail,
		"total_cost": booking.TotalCost,
	})
	return &booking, nil
}

// CancelBooking marks the booking cancelled and releases exactly the
// day-keys it owns. A day whose stored booking reference differs is left
// untouched; with the claim invariant intact this never legitimately
// triggers, but it keeps a stale cancellation from clobbering a re-booked
// date.
func (s *BookingService) CancelBooking(ref, actor, reason string) error {
	txErr := utils.WithRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			booking, err := s.loadForUpdate(tx, ref)
			if err != nil {
				return err
			}
			switch booking.Status {
			case models.BookingStatusCancelled:
				return ErrAlreadyCancelled
			case models.BookingStatusCheckedOut, models.BookingStatusExpired, models.BookingStatusFailed:
				return fmt.Errorf("%w: status %s", ErrNotCancellable, booking.Status)
			}

			now := time.Now().UTC()
			err = tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(map[string]interface{}{
				"status":              models.BookingStatusCancelled,
				"cancelled_at":        now,
				"cancelled_by":        actor,
				"cancellation_reason": reason,
			}).Error
			if err != nil {
				return err
			}

			return s.releaseDates(tx, booking)
		})
	}, 3, 50*time.Millisecond)
	if txErr != nil {
		return mapRetryErr(txErr)
	}

	s.Events.publishAsync(EventBookingCancelled, map[string]any{
		"booking_id": ref,
		"actor":      actor,
		"reason":     reason,
	})
	return nil
}

// CheckInBooking moves a confirmed booking to checked-in.
func (s *BookingService) CheckInBooking(ref string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		booking, err := s.loadForUpdate(tx, ref)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusConfirmed {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, booking.Status)
		}
		now := time.Now().UTC()
		return tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(map[string]interface{}{
			"status":        models.BookingStatusCheckedIn,
			"checked_in_at": now,
		}).Error
	})
}

// CheckoutBooking completes a stay and releases the booking's remaining
// day-keys through the same owner-checked path as cancellation.
func (s *BookingService) CheckoutBooking(ref string) error {
	txErr := utils.WithRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			booking, err := s.loadForUpdate(tx, ref)
			if err != nil {
				return err
			}
			if booking.Status != models.BookingStatusCheckedIn && booking.Status != models.BookingStatusConfirmed {
				return fmt.Errorf("%w: status %s", ErrNotCancellable, booking.Status)
			}
			err = tx.Model(&models.Booking{}).Where("id = ?", booking.ID).
				Update("status", models.BookingStatusCheckedOut).Error
			if err != nil {
				return err
			}
			return s.releaseDates(tx, booking)
		})
	}, 3, 50*time.Millisecond)
	return mapRetryErr(txErr)
}

func (s *BookingService) loadForUpdate(tx *gorm.DB, ref string) (*models.Booking, error) {
	var booking models.Booking
	err := lockForUpdate(tx).Where("reference_code = ?", ref).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, ref)
		}
		return nil, err
	}
	return &booking, nil
}

// releaseDates frees every day-key whose stored owner is this booking,
// recomputed from the booking's own stored dates. Runs inside the caller's
// transaction.
func (s *BookingService) releaseDates(tx *gorm.DB, booking *models.Booking) error {
	groups, err := s.Calendar.DatesInRange(booking.CheckInDate, booking.CheckOutDate)
	if err != nil {
		// A corrupt stored range has nothing to release; operators need to
		// see the booking whose days could not be freed.
		log.Printf("booking %s has an unreleasable date range [%s, %s): %v",
			booking.ReferenceCode,
			booking.CheckInDate.Format("2006-01-02"),
			booking.CheckOutDate.Format("2006-01-02"),
			err)
		return nil
	}

	var bookingRooms []models.BookingRoom
	if err := tx.Where("booking_id = ?", booking.ID).Find(&bookingRooms).Error; err != nil {
		return err
	}

	for _, br := range bookingRooms {
		for _, group := range groups {
			dayMap, err := s.Calendar.ReadYearLocked(tx, br.RoomID, group.Year)
			if err != nil {
				return err
			}
			updates := map[string]*models.DateEntry{}
			for _, key := range group.Days {
				if entry, ok := dayMap[key]; ok &&
					entry.Status == models.DateStatusBooked &&
					entry.BookingRef == booking.ReferenceCode {
					updates[key] = nil
				}
			}
			if err := s.Calendar.MergeWriteYear(tx, br.RoomID, group.Year, updates); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetByReference loads one booking with its room rows.
func (s *BookingService) GetByReference(ref string) (*models.Booking, error) {
	var booking models.Booking
	err := s.DB.Preload("Rooms").Preload("Rooms.Room").Where("reference_code = ?", ref).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, ref)
		}
		return nil, err
	}
	return &booking, nil
}

// ListBookings returns all bookings, newest first.
func (s *BookingService) ListBookings() ([]models.Booking, error) {
	var list []models.Booking
	err := s.DB.Preload("Rooms").Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	for i := range list {
		if list[i].Rooms == nil {
			list[i].Rooms = []models.BookingRoom{}
		}
	}
	return list, nil
}
