package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Date entry statuses. A day-key absent from the map is available.
const (
	DateStatusBooked      = "booked"
	DateStatusBlocked     = "blocked"
	DateStatusMaintenance = "maintenance"
)

// DayKeyLayout renders a date as the MM-DD key used inside a year partition.
const DayKeyLayout = "01-02"

// DateEntry is the value stored under a day-key inside a year partition.
// BookingRef is the owning booking's reference code; a day transitions to
// booked only through the booking path and is released only by the owner.
type DateEntry struct {
	Status     string     `json:"status"`
	BookingRef string     `json:"bookingId,omitempty"`
	GuestEmail string     `json:"guestEmail,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	BlockedBy  string     `json:"blockedBy,omitempty"`
	BlockedAt  *time.Time `json:"blockedAt,omitempty"`
}

// RoomCalendar holds one room-year availability document: a sparse JSON map
// from "MM-DD" to DateEntry. One row per (room, year) is the contention unit
// for calendar writes.
type RoomCalendar struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoomID    uint           `gorm:"column:room_id;uniqueIndex:idx_room_year;not null" json:"roomId"`
	Year      int            `gorm:"column:year;uniqueIndex:idx_room_year;not null" json:"year"`
	Days      datatypes.JSON `gorm:"column:days" json:"days"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DayMap decodes the Days document. An empty column decodes to an empty map.
func (rc *RoomCalendar) DayMap() (map[string]DateEntry, error) {
	out := map[string]DateEntry{}
	if len(rc.Days) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(rc.Days, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetDayMap encodes the map back into the Days column.
func (rc *RoomCalendar) SetDayMap(days map[string]DateEntry) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}
	rc.Days = datatypes.JSON(raw)
	return nil
}
