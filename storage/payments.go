package storage

import (
	"context"

	"github.com/hidenkeys/innkeeper/models"
)

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	return duplicate(s.conn(ctx).Create(p).Error)
}

func (s *Store) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "no payment with the id of %d", id)
	}
	return &p, nil
}

func (s *Store) PaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, notFound(err, "no payment with reference %s", ref)
	}
	return &p, nil
}

func (s *Store) PaymentByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).Where("idempotency_key = ?", key).First(&p).Error; err != nil {
		return nil, notFound(err, "no payment with key %s", key)
	}
	return &p, nil
}

func (s *Store) PaymentsForBooking(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := s.conn(ctx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&out).Error
	return out, err
}

// ResolvePayment settles a pending entry. It reports false when the entry had
// already left pending, which makes replays no-ops.
func (s *Store) ResolvePayment(ctx context.Context, id uint, to models.PaymentStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := s.conn(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeletePayment(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&models.Payment{}, id).Error
}

// UpdatePaymentFields writes provider details onto an entry without touching
// its status.
func (s *Store) UpdatePaymentFields(ctx context.Context, id uint, fields map[string]any) error {
	return s.conn(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// PaymentTotals groups entries by status.
func (s *Store) PaymentTotals(ctx context.Context) ([]models.PaymentTotal, error) {
	var out []models.PaymentTotal
	err := s.conn(ctx).Model(&models.Payment{}).
		Select("status, count(*) AS count, coalesce(sum(amount), 0) AS total").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}
