package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"stayhub-backend/models"
	"stayhub-backend/utils"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// GatewayIntent is the engine's view of a payment intent at the gateway.
type GatewayIntent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

// Gateway intent statuses the reconciler cares about.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
)

// PaymentGateway abstracts the payment provider. The production
// implementation wraps Stripe; tests substitute a fake.
type PaymentGateway interface {
	CreateIntent(amount int64, currency, idempotencyKey string, metadata map[string]string) (*GatewayIntent, error)
	RetrieveIntent(id string) (*GatewayIntent, error)
}

// PaymentService drives the payment-to-booking flow: idempotent intent
// creation with a server-computed amount, booking commit after the gateway
// confirms, and an asynchronous webhook fallback that transitions booking
// status forward-only.
type PaymentService struct {
	DB       *gorm.DB
	Gateway  PaymentGateway
	Bookings *BookingService
	Calendar *CalendarService
	Events   *EventPublisher
	Redis    *redis.Client // nil disables event dedupe; transitions stay idempotent
	Currency string
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, bookings *BookingService, cal *CalendarService, events *EventPublisher, rdb *redis.Client) *PaymentService {
	return &PaymentService{
		DB:       db,
		Gateway:  gateway,
		Bookings: bookings,
		Calendar: cal,
		Events:   events,
		Redis:    rdb,
		Currency: utils.EnvOrDefault("PAYMENT_CURRENCY", "thb"),
	}
}

// IntentResult is the createPaymentIntent response.
type IntentResult struct {
	ClientSecret     string  `json:"clientSecret"`
	PaymentIntentID  string  `json:"paymentIntentId"`
	CalculatedAmount int64   `json:"calculatedAmount"` // minor units
	TotalCost        float64 `json:"totalCost"`
	Currency         string  `json:"currency"`
}

// IdempotencyKey derives the gateway idempotency key deterministically from
// the client-supplied transaction id, so client retries of the same logical
// purchase reuse one charge.
func IdempotencyKey(transactionID string) string {
	return "booking-intent-" + transactionID
}

// stayQuote is the authoritative server-side pricing of a stay.
type stayQuote struct {
	Total    float64
	Amount   int64 // minor units
	Capacity int   // summed max occupancy of the rooms
}

// quoteStay recomputes the charge for a stay from stored room prices. The
// same quote prices new intents and verifies paid ones.
func (s *PaymentService) quoteStay(roomIDs []uint, checkIn, checkOut time.Time) (*stayQuote, error) {
	roomIDs = dedupeRoomIDs(roomIDs)
	if len(roomIDs) == 0 {
		return nil, fmt.Errorf("%w: no rooms requested", ErrInvalidRange)
	}
	if _, err := s.Calendar.DatesInRange(checkIn, checkOut); err != nil {
		return nil, err
	}

	nights := int(Day(checkOut).Sub(Day(checkIn)).Hours() / 24)
	quote := &stayQuote{}
	for _, rid := range roomIDs {
		var room models.Room
		if err := s.DB.First(&room, rid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: room %d", ErrRoomNotFound, rid)
			}
			return nil, err
		}
		quote.Total += room.Price * float64(nights)
		quote.Capacity += room.MaxOccupancy
	}
	quote.Amount = int64(math.Round(quote.Total * 100))
	return quote, nil
}

// CreatePaymentIntent prices the stay from authoritative room prices and
// creates (or, on retry, re-fetches) the gateway intent. The client never
// supplies the amount.
func (s *PaymentService) CreatePaymentIntent(roomIDs []uint, checkIn, checkOut time.Time, guests int, transactionID string) (*IntentResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidRange)
	}

	quote, err := s.quoteStay(roomIDs, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if guests > 0 && guests > quote.Capacity {
		return nil, fmt.Errorf("%w: %d guests exceed the rooms' capacity of %d", ErrInvalidRange, guests, quote.Capacity)
	}

	intent, err := s.Gateway.CreateIntent(quote.Amount, s.Currency, IdempotencyKey(transactionID), map[string]string{
		"transaction_id": transactionID,
		"check_in":       Day(checkIn).Format("2006-01-02"),
		"check_out":      Day(checkOut).Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	return &IntentResult{
		ClientSecret:     intent.ClientSecret,
		PaymentIntentID:  intent.ID,
		CalculatedAmount: quote.Amount,
		TotalCost:        quote.Total,
		Currency:         s.Currency,
	}, nil
}

// ConfirmResult is the confirmBookingFromPayment response. When
// RequiresReconciliation is set the payment went through but the booking
// write did not; the caller must surface it, never drop it.
type ConfirmResult struct {
	BookingRef             string `json:"bookingId,omitempty"`
	PaymentIntentID        string `json:"paymentIntentId"`
	PaymentStatus          string `json:"paymentStatus"`
	RequiresReconciliation bool   `json:"requiresReconciliation,omitempty"`
	Detail                 string `json:"detail,omitempty"`
}

// ConfirmBookingFromPayment verifies the intent with the gateway and commits
// the booking. A gateway decline fails cleanly with no booking. A booking
// failure after a confirmed payment returns a partial-success result plus
// ErrPartialFailure, and emits a reconcile event for manual follow-up.
func (s *PaymentService) ConfirmBookingFromPayment(intentID string, details CreateBookingInput) (*ConfirmResult, error) {
	if intentID == "" {
		return nil, fmt.Errorf("%w: payment intent id is required", ErrInvalidRange)
	}

	intent, err := s.Gateway.RetrieveIntent(intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if intent.Status != IntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent status %s", ErrPaymentFailed, intent.Status)
	}

	// One intent funds at most one booking: a replayed confirmation returns
	// the booking already committed for this intent, whatever details the
	// replay carries.
	var existing models.Booking
	err = s.DB.Where("payment_intent_id = ?", intentID).First(&existing).Error
	if err == nil {
		return &ConfirmResult{
			BookingRef:      existing.ReferenceCode,
			PaymentIntentID: intentID,
			PaymentStatus:   IntentStatusSucceeded,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// The paid amount must match the server-side price of the submitted
	// stay, so a cheap intent cannot confirm an expensive booking.
	quote, err := s.quoteStay(details.RoomIDs, details.CheckIn, details.CheckOut)
	if err != nil {
		return nil, err
	}
	if intent.Amount != quote.Amount {
		return nil, fmt.Errorf("%w: paid amount %d does not match stay price %d", ErrPaymentFailed, intent.Amount, quote.Amount)
	}

	details.PaymentIntentID = intentID
	details.PaymentStatus = models.PaymentStatusPaid
	if details.PaymentMethod == "" {
		details.PaymentMethod = "card"
	}
	details.Status = models.BookingStatusConfirmed

	booking, err := s.Bookings.CreateBooking(details)
	if err != nil {
		// A concurrent confirmation of the same intent won the create; hand
		// back its booking instead of reporting a partial failure.
		if errors.Is(err, ErrIntentAlreadyUsed) {
			var winner models.Booking
			if lookupErr := s.DB.Where("payment_intent_id = ?", intentID).First(&winner).Error; lookupErr == nil {
				return &ConfirmResult{
					BookingRef:      winner.ReferenceCode,
					PaymentIntentID: intentID,
					PaymentStatus:   IntentStatusSucceeded,
				}, nil
			}
		}
		log.Printf("booking commit failed after confirmed payment %s: %v", intentID, err)
		s.Events.publishAsync(EventReconcileRequired, map[string]any{
			"payment_intent_id": intentID,
			"guest":             details.GuestEmail,
			"error":             err.Error(),
		})
		result := &ConfirmResult{
			PaymentIntentID:        intentID,
			PaymentStatus:          IntentStatusSucceeded,
			RequiresReconciliation: true,
			Detail:                 err.Error(),
		}
		return result, fmt.Errorf("%w: %v", ErrPartialFailure, err)
	}

	return &ConfirmResult{
		BookingRef:      booking.ReferenceCode,
		PaymentIntentID: intentID,
		PaymentStatus:   IntentStatusSucceeded,
	}, nil
}

// Gateway webhook event types handled by the reconciler.
const (
	GatewayEventSucceeded = "payment_intent.succeeded"
	GatewayEventFailed    = "payment_intent.payment_failed"
	GatewayEventCanceled  = "payment_intent.canceled"
)

// HandleGatewayEvent applies an out-of-band payment event to whatever
// booking references the intent. Processing is idempotent twice over: event
// ids are deduplicated when redis is available, and only forward transitions
// are applied, so replays and any arrival order are harmless. An event for
// an intent with no booking yet is a no-op; the synchronous path will read
// the gateway state itself.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, eventID, eventType, intentID string) error {
	if intentID == "" {
		return nil
	}
	if s.Redis != nil && eventID != "" {
		fresh, err := s.Redis.SetNX(ctx, "payment:event:"+eventID, 1, 24*time.Hour).Result()
		if err != nil {
			log.Printf("event dedupe unavailable for %s: %v", eventID, err)
		} else if !fresh {
			return nil
		}
	}

	var target, paymentStatus string
	switch eventType {
	case GatewayEventSucceeded:
		target = models.BookingStatusConfirmed
		paymentStatus = models.PaymentStatusPaid
	case GatewayEventFailed:
		target = models.BookingStatusFailed
		paymentStatus = models.PaymentStatusFailed
	case GatewayEventCanceled:
		target = models.BookingStatusExpired
		paymentStatus = models.PaymentStatusFailed
	default:
		return nil
	}

	txErr := utils.WithRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			var booking models.Booking
			err := lockForUpdate(tx).Where("payment_intent_id = ?", intentID).First(&booking).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}

			// Forward transitions only: a booking past pending never moves
			// backwards on a late or replayed event.
			if booking.Status != models.BookingStatusPending {
				return nil
			}

			err = tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(map[string]interface{}{
				"status":         target,
				"payment_status": paymentStatus,
			}).Error
			if err != nil {
				return err
			}

			if target != models.BookingStatusConfirmed {
				// The failed attempt must not keep its dates claimed.
				return s.Bookings.releaseDates(tx, &booking)
			}
			return nil
		})
	}, 3, 50*time.Millisecond)
	if txErr != nil {
		return mapRetryErr(txErr)
	}

	switch target {
	case models.BookingStatusConfirmed:
		s.Events.publishAsync(EventPaymentPaid, map[string]any{"payment_intent_id": intentID})
	default:
		s.Events.publishAsync(EventPaymentFailed, map[string]any{"payment_intent_id": intentID, "event": eventType})
	}
	return nil
}
