package services

import (
	"errors"
	"fmt"

	"stayhub-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoomService owns room attribute writes. Edits are optimistic: the caller
// sends the version it read, a mismatch rejects the write untouched, and the
// caller must re-read and retry by hand. This is deliberately a different
// mechanism from calendar day ownership: attribute edits are
// last-writer-wins-with-rejection, calendar claims are first-claimant-wins.
type RoomService struct {
	DB *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{DB: db}
}

// RoomPatch is the set of mutable room attributes. Nil fields are left as-is.
type RoomPatch struct {
	RoomNumber   *string         `json:"roomNumber,omitempty"`
	Name         *string         `json:"name,omitempty"`
	Type         *string         `json:"type,omitempty"`
	Status       *string         `json:"status,omitempty"`
	Floor        *string         `json:"floor,omitempty"`
	Price        *float64        `json:"price,omitempty"`
	MaxOccupancy *int            `json:"maxOccupancy,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Amenities    *datatypes.JSON `json:"amenities,omitempty"`
	Images       *datatypes.JSON `json:"images,omitempty"`
}

func (p *RoomPatch) apply(updates map[string]interface{}) {
	if p.RoomNumber != nil {
		updates["room_number"] = *p.RoomNumber
	}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Type != nil {
		updates["type"] = *p.Type
	}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if p.Floor != nil {
		updates["floor"] = *p.Floor
	}
	if p.Price != nil {
		updates["price"] = *p.Price
	}
	if p.MaxOccupancy != nil {
		updates["max_occupancy"] = *p.MaxOccupancy
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Amenities != nil {
		updates["amenities"] = *p.Amenities
	}
	if p.Images != nil {
		updates["images"] = *p.Images
	}
}

func (s *RoomService) Create(room *models.Room) error {
	if room.Version == 0 {
		room.Version = 1
	}
	return s.DB.Create(room).Error
}

func (s *RoomService) GetAll() ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.Order("room_number").Find(&rooms).Error
	return rooms, err
}

func (s *RoomService) GetByID(id uint) (*models.Room, error) {
	var room models.Room
	if err := s.DB.First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room %d", ErrRoomNotFound, id)
		}
		return nil, err
	}
	return &room, nil
}

// SaveRoom writes a patch guarded by the expected version. expectedVersion 0
// skips the check (trusted internal callers); any other mismatch fails with
// ErrVersionConflict and leaves the stored document unchanged. A successful
// write bumps the version and stamps the actor.
func (s *RoomService) SaveRoom(id uint, expectedVersion int64, patch RoomPatch, actor string) (*models.Room, error) {
	var saved models.Room
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := lockForUpdate(tx).First(&room, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: room %d", ErrRoomNotFound, id)
			}
			return err
		}

		if expectedVersion != 0 && room.Version != expectedVersion {
			return fmt.Errorf("%w: expected %d, stored %d", ErrVersionConflict, expectedVersion, room.Version)
		}

		updates := map[string]interface{}{
			"version":    room.Version + 1,
			"updated_by": actor,
		}
		patch.apply(updates)

		if err := tx.Model(&models.Room{}).Where("id = ?", room.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&saved, room.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *RoomService) Delete(id uint) error {
	result := s.DB.Delete(&models.Room{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: room %d", ErrRoomNotFound, id)
	}
	return nil
}
