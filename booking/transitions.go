package booking

import (
	"context"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/hidenkeys/innkeeper/room"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// transitions lists the statuses reachable from each status.
// checked-out, cancelled and no-show are terminal.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingConfirmed: {models.BookingCheckedIn, models.BookingCancelled, models.BookingNoShow},
	models.BookingCheckedIn: {models.BookingCheckedOut, models.BookingCancelled},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to models.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// staffOnly transitions are operator actions at the desk.
var staffOnly = map[models.BookingStatus]bool{
	models.BookingCheckedIn:  true,
	models.BookingCheckedOut: true,
	models.BookingNoShow:     true,
}

var triggers = map[models.BookingStatus]room.Trigger{
	models.BookingCheckedIn:  room.TriggerCheckIn,
	models.BookingCheckedOut: room.TriggerCheckout,
	models.BookingCancelled:  room.TriggerCancel,
	models.BookingNoShow:     room.TriggerNoShow,
}

var events = map[models.BookingStatus]string{
	models.BookingCheckedIn:  notify.BookingCheckedIn,
	models.BookingCheckedOut: notify.BookingCheckout,
	models.BookingCancelled:  notify.BookingCancelled,
	models.BookingNoShow:     notify.BookingNoShow,
}

func (s *Service) CheckIn(ctx context.Context, actor models.Actor, id uint) (*models.Booking, error) {
	return s.Transition(ctx, actor, id, models.BookingCheckedIn, "")
}

func (s *Service) CheckOut(ctx context.Context, actor models.Actor, id uint) (*models.Booking, error) {
	return s.Transition(ctx, actor, id, models.BookingCheckedOut, "")
}

func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uint, reason string) (*models.Booking, error) {
	return s.Transition(ctx, actor, id, models.BookingCancelled, reason)
}

func (s *Service) NoShow(ctx context.Context, actor models.Actor, id uint) (*models.Booking, error) {
	return s.Transition(ctx, actor, id, models.BookingNoShow, "")
}

// Transition moves a booking to status to and then runs, in order, the room
// sync and (on checkout) the housekeeping request. The status write is
// conditional on the status read, so two racing transitions cannot both win.
// Asking for the status the booking already has is a conflict.
func (s *Service) Transition(ctx context.Context, actor models.Actor, id uint, to models.BookingStatus, reason string) (*models.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.Transition")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", int64(id)), attribute.String("to", string(to)))

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.checkTransition(actor, b, to, now); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	switch to {
	case models.BookingCheckedIn:
		fields["checked_in_at"] = now
	case models.BookingCheckedOut:
		fields["checked_out_at"] = now
	case models.BookingCancelled:
		fields["cancelled_at"] = now
		fields["cancellation_reason"] = reason
	}
	ok, err := s.store.TransitionBooking(ctx, id, b.Status, to, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("cannot change booking from %s to %s", current.Status, to)
	}

	s.log.WithFields(logrus.Fields{"booking": id, "from": b.Status, "to": to, "by": actor.UserID}).Info("booking transitioned")

	b, err = s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.afterTransition(ctx, b, to); err != nil {
		return nil, err
	}
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(events[to], b.ID, b.GuestID, map[string]any{
		"room":   b.RoomID,
		"reason": reason,
	}))
	return b, nil
}

// checkTransition runs every rule a status change must pass before anything
// is written.
func (s *Service) checkTransition(actor models.Actor, b *models.Booking, to models.BookingStatus, now time.Time) error {
	if !to.Valid() || to == models.BookingConfirmed {
		return apperr.Validation("unknown target status %q", to)
	}
	if !actor.CanManage(b.UserID) {
		return apperr.Unauthorized("user %d is not authorized to update booking %d", actor.UserID, b.ID)
	}
	if staffOnly[to] && !actor.Staff() {
		return apperr.Unauthorized("only staff may mark a booking %s", to)
	}
	if b.Status == to {
		return apperr.Conflict("booking %d is already %s", b.ID, to)
	}
	if !CanTransition(b.Status, to) {
		return apperr.Conflict("cannot change booking from %s to %s", b.Status, to)
	}
	return s.guard(actor, b, to, now)
}

func (s *Service) guard(actor models.Actor, b *models.Booking, to models.BookingStatus, now time.Time) error {
	switch to {
	case models.BookingCancelled:
		if actor.Staff() {
			return nil
		}
		if !now.Before(b.CheckIn.Add(-s.cfg.CancelCutoff)) {
			return apperr.Conflict("bookings can only be cancelled up to %s before check-in", s.cfg.CancelCutoff)
		}
	case models.BookingNoShow:
		if now.Before(b.CheckIn.Add(s.cfg.NoShowWindow)) {
			return apperr.Conflict("a no-show can only be recorded %s after check-in", s.cfg.NoShowWindow)
		}
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, b *models.Booking, to models.BookingStatus) error {
	if _, err := s.rooms.Sync(ctx, b.RoomID, triggers[to]); err != nil {
		return err
	}
	if to == models.BookingCheckedOut {
		if _, err := s.housekeeping.OnCheckout(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
