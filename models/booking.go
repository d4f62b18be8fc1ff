// Package models holds the persisted records shared by every component.
package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked-in"
	BookingCheckedOut BookingStatus = "checked-out"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no-show"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// Active bookings hold their room interval.
func (s BookingStatus) Active() bool { return s != BookingCancelled }

// BookingPaymentStatus is derived from the payment ledger, never set directly.
type BookingPaymentStatus string

const (
	PaymentPending       BookingPaymentStatus = "pending"
	PaymentPartiallyPaid BookingPaymentStatus = "partially_paid"
	PaymentPaid          BookingPaymentStatus = "paid"
)

type Booking struct {
	gorm.Model
	RoomID  uint `json:"room" gorm:"not null;index"`
	UserID  uint `json:"user" gorm:"not null;index"`
	GuestID uint `json:"guest" gorm:"index"`

	// CheckIn and CheckOut are UTC midnights; the stay is [CheckIn, CheckOut).
	CheckIn  time.Time `json:"checkInDate" gorm:"not null"`
	CheckOut time.Time `json:"checkOutDate" gorm:"not null"`

	Adults          int    `json:"adults" gorm:"default:1"`
	Children        int    `json:"children" gorm:"default:0"`
	SpecialRequests string `json:"specialRequests" gorm:"size:500"`
	Notes           string `json:"notes" gorm:"size:1000"`
	Source          string `json:"source" gorm:"default:walk-in"`

	Status        BookingStatus        `json:"status" gorm:"size:16;not null;default:confirmed;index"`
	TotalAmount   float64              `json:"totalAmount" gorm:"not null"`
	AmountPaid    float64              `json:"amountPaid" gorm:"default:0"`
	PaymentStatus BookingPaymentStatus `json:"paymentStatus" gorm:"size:16;not null;default:pending"`

	Services []ServiceCharge `json:"services" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	CheckedInAt        *time.Time `json:"checkedInAt"`
	CheckedOutAt       *time.Time `json:"checkedOutAt"`
	CancelledAt        *time.Time `json:"cancelledAt"`
	CancellationReason string     `json:"cancellationReason"`
}

// Nights is the number of nights in the stay, rounded up.
func (b *Booking) Nights() int {
	return Nights(b.CheckIn, b.CheckOut)
}

// Guests is the head count used for the capacity check.
func (b *Booking) Guests() int {
	return b.Adults + b.Children
}

// ServiceCharge is an extra billed on top of the room rate at creation time.
type ServiceCharge struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	BookingID uint    `json:"bookingID" gorm:"index"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" gorm:"default:1"`
	Price     float64 `json:"price"`
}

func (s ServiceCharge) Total() float64 {
	return float64(s.Quantity) * s.Price
}

// Nights counts nights between two instants, rounding a partial day up.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether the half-open intervals [a, b) and [c, d) overlap.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

// BookingTotal is one row of the per-status booking report.
type BookingTotal struct {
	Status      BookingStatus `json:"status"`
	Count       int64         `json:"count"`
	TotalAmount float64       `json:"totalAmount"`
}
