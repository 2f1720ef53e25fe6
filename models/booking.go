package models

import (
	"time"

	"gorm.io/gorm"
)

// Booking statuses. Terminal states are retained for audit, never deleted.
const (
	BookingStatusPending    = "Pending"
	BookingStatusConfirmed  = "Confirmed"
	BookingStatusCheckedIn  = "Checked-In"
	BookingStatusCheckedOut = "Checked-Out"
	BookingStatusCancelled  = "Cancelled"
	BookingStatusExpired    = "Expired"
	BookingStatusFailed     = "Failed"
)

// Payment statuses tracked on the booking record.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

type Booking struct {
	gorm.Model

	// ReferenceCode is the public booking id; calendar day entries store it
	// as the owner reference.
	ReferenceCode string `gorm:"column:reference_code;uniqueIndex;size:64" json:"reference_code"`

	GuestName  string `gorm:"column:guest_name;size:255" json:"guest_name"`
	GuestEmail string `gorm:"column:guest_email;size:255;index" json:"guest_email"`

	CheckInDate  time.Time `gorm:"column:check_in_date" json:"check_in_date"`
	CheckOutDate time.Time `gorm:"column:check_out_date" json:"check_out_date"`
	Nights       int       `gorm:"column:nights" json:"nights"`

	Adults   int `gorm:"column:adults;default:1" json:"adults"`
	Children int `gorm:"column:children;default:0" json:"children"`

	TotalCost float64 `gorm:"column:total_cost" json:"total_cost"`
	Status    string  `gorm:"column:status;size:32;index" json:"status"`

	PaymentMethod   string `gorm:"column:payment_method;size:32" json:"payment_method,omitempty"`
	PaymentStatus   string `gorm:"column:payment_status;size:32" json:"payment_status,omitempty"`
	PaymentIntentID string `gorm:"column:payment_intent_id;size:128;index" json:"payment_intent_id,omitempty"`
	TransactionID   string `gorm:"column:transaction_id;size:128" json:"transaction_id,omitempty"`

	CheckedInAt        *time.Time `gorm:"column:checked_in_at" json:"checked_in_at,omitempty"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        string     `gorm:"column:cancelled_by;size:150" json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;size:255" json:"cancellation_reason,omitempty"`

	Rooms []BookingRoom `gorm:"foreignKey:BookingID" json:"rooms"`
}

// IsActive reports whether the booking currently owns its calendar dates.
func (b *Booking) IsActive() bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCheckedIn:
		return true
	}
	return false
}

// BookingRoom joins a booking to each room it claims, with the per-room rate
// captured at booking time.
type BookingRoom struct {
	gorm.Model

	BookingID uint `gorm:"index;column:booking_id" json:"booking_id"`
	RoomID    uint `gorm:"index;column:room_id" json:"room_id"`

	Nights        int     `gorm:"column:nights;default:0" json:"nights"`
	PricePerNight float64 `gorm:"column:price_per_night" json:"price_per_night"`
	Status        string  `gorm:"column:status;size:64" json:"status,omitempty"`

	Room Room `gorm:"foreignKey:RoomID;references:ID" json:"room,omitempty"`
}
