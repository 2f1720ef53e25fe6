package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Room is the bookable unit. Mutable attributes are guarded by Version:
// every write must carry the version it read, and the write bumps it by one.
type Room struct {
	gorm.Model

	RoomNumber   string  `json:"roomNumber" gorm:"column:room_number;uniqueIndex;type:varchar(50)"`
	Name         string  `json:"name" gorm:"size:255"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Floor        string  `json:"floor" gorm:"type:varchar(10)"`
	Price        float64 `json:"price"`
	MaxOccupancy int     `json:"maxOccupancy" gorm:"column:max_occupancy"`
	Description  string  `json:"description" gorm:"type:text"`

	Amenities datatypes.JSON `json:"amenities,omitempty" gorm:"column:amenities"`
	Images    datatypes.JSON `json:"images,omitempty" gorm:"column:images"`

	Version   int64  `json:"version" gorm:"column:version;not null;default:1"`
	UpdatedBy string `json:"updatedBy,omitempty" gorm:"column:updated_by;size:150"`
}
