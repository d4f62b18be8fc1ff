package models

import "gorm.io/gorm"

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomCleaning    RoomStatus = "cleaning"
	RoomMaintenance RoomStatus = "maintenance"
	RoomOutOfOrder  RoomStatus = "out-of-order"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomOccupied, RoomCleaning, RoomMaintenance, RoomOutOfOrder:
		return true
	}
	return false
}

type Room struct {
	gorm.Model
	Number      string  `json:"roomNumber" gorm:"size:10;not null;uniqueIndex" validate:"required,max=10"`
	Category    string  `json:"roomType" validate:"required"`
	Description string  `json:"description" gorm:"size:500"`
	Price       float64 `json:"price" validate:"gte=0"`
	Capacity    int     `json:"capacity" gorm:"default:1" validate:"gte=1"`
	Floor       int     `json:"floor"`

	// Status is derived by the synchronizer; Override is the only part set by hand.
	Status       RoomStatus  `json:"status" gorm:"size:16;not null;default:available"`
	Override     *RoomStatus `json:"override" gorm:"size:16"`
	OverrideNote string      `json:"overrideNote"`
}
