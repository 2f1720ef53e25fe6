// Package services holds the booking and availability engine. Sentinel errors
// defined here are shared across services so controllers can translate each
// failure into the right HTTP response with errors.Is.
package services

import (
	"errors"
	"fmt"
	"strings"

	"stayhub-backend/utils"
)

var (
	// ErrInvalidRange is returned for malformed or reversed date ranges and
	// for check-ins in the past. No transaction is opened.
	ErrInvalidRange = errors.New("invalid_date_range")

	// ErrRoomNotFound is returned when a referenced room does not exist.
	ErrRoomNotFound = errors.New("room_not_found")

	// ErrBookingNotFound is returned when a booking reference does not exist.
	ErrBookingNotFound = errors.New("booking_not_found")

	// ErrDateConflict is returned when a requested date is already booked or
	// otherwise unavailable. Use AsDateConflict to get the offending dates.
	ErrDateConflict = errors.New("date_conflict")

	// ErrAlreadyCancelled is returned when cancelling a cancelled booking.
	ErrAlreadyCancelled = errors.New("booking_already_cancelled")

	// ErrNotCancellable is returned when a booking is in a terminal state
	// other than cancelled (expired, checked-out).
	ErrNotCancellable = errors.New("booking_not_cancellable")

	// ErrVersionConflict is returned when a room write carries a stale
	// expected version. Never retried automatically: the correct new value
	// depends on caller intent, so the caller must re-read.
	ErrVersionConflict = errors.New("version_conflict")

	// ErrUnavailable is returned after the bounded retry budget for
	// store-level write conflicts is exhausted. Callers may retry.
	ErrUnavailable = errors.New("store_unavailable")

	// ErrPaymentFailed is returned when the gateway declined or errored
	// before any booking was created.
	ErrPaymentFailed = errors.New("payment_failed")

	// ErrPartialFailure marks the payment-succeeded/booking-commit-failed
	// outcome. It is surfaced alongside a result, never swallowed: the
	// customer's money has already moved.
	ErrPartialFailure = errors.New("payment_succeeded_booking_failed")

	// ErrIntentAlreadyUsed is returned when a payment intent has already
	// funded a booking. The payment path resolves it to the existing
	// booking so a replayed confirmation stays idempotent.
	ErrIntentAlreadyUsed = errors.New("payment_intent_already_used")
)

// DateConflictError carries the specific dates that blocked an operation.
type DateConflictError struct {
	Dates []string // YYYY-MM-DD
}

func (e *DateConflictError) Error() string {
	return fmt.Sprintf("date_conflict: %s", strings.Join(e.Dates, ", "))
}

// Is lets errors.Is(err, ErrDateConflict) match a DateConflictError.
func (e *DateConflictError) Is(target error) bool {
	return target == ErrDateConflict
}

// AsDateConflict extracts the conflicting dates from an error chain, if any.
func AsDateConflict(err error) (*DateConflictError, bool) {
	var dc *DateConflictError
	if errors.As(err, &dc) {
		return dc, true
	}
	return nil, false
}

// mapRetryErr translates an exhausted retryable store fault into
// ErrUnavailable; terminal errors pass through untouched.
func mapRetryErr(err error) error {
	if err == nil {
		return nil
	}
	if utils.Classify(err) == utils.ClassRetryable {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
