// Package room derives room status from bookings and housekeeping, and
// serves the room catalogue.
package room

import (
	"context"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/hidenkeys/innkeeper/room")

// Trigger names the event that caused a Sync.
type Trigger string

const (
	TriggerBookingCreated Trigger = "booking.created"
	TriggerBookingDeleted Trigger = "booking.deleted"
	TriggerCheckIn        Trigger = "booking.checked_in"
	TriggerCheckout       Trigger = "booking.checked_out"
	TriggerCancel         Trigger = "booking.cancelled"
	TriggerNoShow         Trigger = "booking.no_show"
	TriggerTask           Trigger = "housekeeping.task"
	TriggerOverride       Trigger = "room.override"
)

type Store interface {
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	CreateRoom(ctx context.Context, r *models.Room) error
	ListRooms(ctx context.Context, category, status string) ([]models.Room, error)
	RoomCategories(ctx context.Context) ([]string, error)
	SetRoomStatus(ctx context.Context, id uint, status models.RoomStatus) error
	SetRoomOverride(ctx context.Context, id uint, override *models.RoomStatus, note string) error
	CountCheckedIn(ctx context.Context, roomID uint) (int64, error)
	CountStaysOn(ctx context.Context, roomID uint, day time.Time) (int64, error)
	OpenTasks(ctx context.Context, roomID uint) ([]models.HousekeepingTask, error)
	BookingsForRoom(ctx context.Context, roomID uint) ([]models.Booking, error)
}

// Signals are the conditions that can hold for a room at the same time.
type Signals struct {
	Override     *models.RoomStatus
	ActiveStay   bool
	OpenCleaning bool
	Maintenance  bool
}

// Resolve picks the room status from signals. Precedence: admin override,
// then an active stay, then open cleaning, then delayed or maintenance work.
func Resolve(s Signals) models.RoomStatus {
	switch {
	case s.Override != nil:
		return *s.Override
	case s.ActiveStay:
		return models.RoomOccupied
	case s.OpenCleaning:
		return models.RoomCleaning
	case s.Maintenance:
		return models.RoomMaintenance
	default:
		return models.RoomAvailable
	}
}

type Synchronizer struct {
	store Store
	log   *logrus.Logger
	now   func() time.Time
}

func NewSynchronizer(store Store, log *logrus.Logger) *Synchronizer {
	return &Synchronizer{store: store, log: log, now: time.Now}
}

// Sync re-derives the status of roomID from current records and writes it in
// one update. It never reads the stored status.
func (s *Synchronizer) Sync(ctx context.Context, roomID uint, trigger Trigger) (models.RoomStatus, error) {
	ctx, span := tracer.Start(ctx, "room.Sync")
	defer span.End()
	span.SetAttributes(attribute.Int64("room.id", int64(roomID)), attribute.String("trigger", string(trigger)))

	sig, err := s.signals(ctx, roomID)
	if err != nil {
		return "", err
	}
	// The cleaning task for a checkout is created after this sync runs.
	if trigger == TriggerCheckout {
		sig.OpenCleaning = true
	}

	status := Resolve(sig)
	if err := s.store.SetRoomStatus(ctx, roomID, status); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{
		"room":    roomID,
		"trigger": trigger,
		"status":  status,
	}).Debug("room status synced")
	return status, nil
}

func (s *Synchronizer) signals(ctx context.Context, roomID uint) (Signals, error) {
	r, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return Signals{}, err
	}
	stays, err := s.store.CountStaysOn(ctx, roomID, models.Day(s.now()))
	if err != nil {
		return Signals{}, err
	}
	tasks, err := s.store.OpenTasks(ctx, roomID)
	if err != nil {
		return Signals{}, err
	}

	sig := Signals{Override: r.Override, ActiveStay: stays > 0}
	for _, t := range tasks {
		switch {
		case t.Status == models.TaskDelayed || t.Type == models.TaskMaintenance:
			sig.Maintenance = true
		case t.Type == models.TaskCleaning || t.Type == models.TaskDeepCleaning:
			sig.OpenCleaning = true
		}
	}
	return sig, nil
}

// SetOverride pins the room to maintenance or out-of-order, or clears the pin
// when status is nil. A room with a guest checked in cannot be pinned.
func (s *Synchronizer) SetOverride(ctx context.Context, actor models.Actor, roomID uint, status *models.RoomStatus, note string) (*models.Room, error) {
	if !actor.Admin() {
		return nil, apperr.Unauthorized("only admins may override room status")
	}
	if status != nil && *status != models.RoomMaintenance && *status != models.RoomOutOfOrder {
		return nil, apperr.Validation("override must be %q or %q", models.RoomMaintenance, models.RoomOutOfOrder)
	}
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if status != nil {
		stays, err := s.store.CountCheckedIn(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if stays > 0 {
			return nil, apperr.Conflict("room %d has a checked-in stay", roomID)
		}
	}
	if err := s.store.SetRoomOverride(ctx, roomID, status, note); err != nil {
		return nil, err
	}
	if _, err := s.Sync(ctx, roomID, TriggerOverride); err != nil {
		return nil, err
	}
	return s.store.GetRoom(ctx, roomID)
}
