// Package notify delivers best-effort side effects of committed state
// changes: domain events on the message bus and guest emails.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	BookingCreated   = "booking.created"
	BookingCheckedIn = "booking.checked_in"
	BookingCheckout  = "booking.checked_out"
	BookingCancelled = "booking.cancelled"
	BookingNoShow    = "booking.no_show"
	PaymentRecorded  = "payment.recorded"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
	TaskCreated      = "housekeeping.task_created"
)

type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"event"`
	OccurredAt time.Time      `json:"occurred_at"`
	BookingID  uint           `json:"booking_id,omitempty"`
	GuestID    uint           `json:"guest_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func NewEvent(name string, bookingID, guestID uint, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		BookingID:  bookingID,
		GuestID:    guestID,
		Data:       data,
	}
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Emit hands e to n and swallows the failure after logging it. A committed
// booking or payment is never undone because a notification failed.
func Emit(ctx context.Context, n Notifier, log *logrus.Logger, e Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		log.WithFields(logrus.Fields{
			"event":   e.Name,
			"booking": e.BookingID,
		}).WithError(err).Warn("notification failed")
	}
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log records events in the service log. It is the notifier used when no
// bus or mail server is configured.
type Log struct {
	Logger *logrus.Logger
}

func (l Log) Notify(_ context.Context, e Event) error {
	l.Logger.WithFields(logrus.Fields{
		"event":   e.Name,
		"id":      e.ID,
		"booking": e.BookingID,
	}).Info("domain event")
	return nil
}
