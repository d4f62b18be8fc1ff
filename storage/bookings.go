package storage

import (
	"context"
	"time"

	"github.com/hidenkeys/innkeeper/models"
	"gorm.io/gorm"
)

func (s *Store) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.conn(ctx).Preload("Services").First(&b, id).Error; err != nil {
		return nil, notFound(err, "no booking with the id of %d", id)
	}
	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	return duplicate(s.conn(ctx).Create(b).Error)
}

// OverlappingBookings returns the active bookings of roomID whose stay
// intersects [from, to).
func (s *Store) OverlappingBookings(ctx context.Context, roomID uint, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	err := s.conn(ctx).
		Where("room_id = ? AND status <> ?", roomID, models.BookingCancelled).
		Where("check_in < ? AND check_out > ?", to, from).
		Order("check_in ASC").
		Find(&out).Error
	return out, err
}

// TransitionBooking moves a booking from one status to another in a single
// conditional update. It reports false when the booking was no longer in
// status from.
func (s *Store) TransitionBooking(ctx context.Context, id uint, from, to models.BookingStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := s.conn(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UpdateBookingFields(ctx context.Context, id uint, fields map[string]any) error {
	res := s.conn(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "no booking with the id of %d", id)
	}
	return nil
}

// SetBookingPayment writes the derived payment view in one update.
func (s *Store) SetBookingPayment(ctx context.Context, id uint, paid float64, status models.BookingPaymentStatus) error {
	return s.conn(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"amount_paid": paid, "payment_status": status}).Error
}

// DeleteBooking is a logical delete.
func (s *Store) DeleteBooking(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&models.Booking{}, id).Error
}

// BookingsInRange returns bookings whose stay touches [start, end].
func (s *Store) BookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	var out []models.Booking
	err := s.conn(ctx).
		Where("check_in <= ? AND check_out >= ?", end, start).
		Order("check_in ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) BookingsForRoom(ctx context.Context, roomID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.conn(ctx).Where("room_id = ?", roomID).Order("check_in ASC").Find(&out).Error
	return out, err
}

// BookingTotals groups bookings by status.
func (s *Store) BookingTotals(ctx context.Context) ([]models.BookingTotal, error) {
	var out []models.BookingTotal
	err := s.conn(ctx).Model(&models.Booking{}).
		Select("status, count(*) AS count, coalesce(sum(total_amount), 0) AS total_amount").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}

func (s *Store) BookingsForGuest(ctx context.Context, guestID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := s.conn(ctx).Preload("Services").Where("guest_id = ?", guestID).Order("check_in DESC").Find(&out).Error
	return out, err
}
