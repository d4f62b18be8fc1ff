// Package housekeeping creates follow-up work for rooms and walks those tasks
// through their lifecycle, re-syncing the room after each step.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/hidenkeys/innkeeper/room"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/hidenkeys/innkeeper/housekeeping")

type Store interface {
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	CreateTask(ctx context.Context, t *models.HousekeepingTask) error
	GetTask(ctx context.Context, id uint) (*models.HousekeepingTask, error)
	TaskByKey(ctx context.Context, key string) (*models.HousekeepingTask, error)
	TransitionTask(ctx context.Context, id uint, from, to models.TaskStatus, fields map[string]any) (bool, error)
	ListTasks(ctx context.Context, roomID uint, status string) ([]models.HousekeepingTask, error)
}

type RoomSyncer interface {
	Sync(ctx context.Context, roomID uint, trigger room.Trigger) (models.RoomStatus, error)
}

// transitions lists the statuses reachable from each status.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskRequested:  {models.TaskAssigned, models.TaskDelayed, models.TaskCancelled},
	models.TaskAssigned:   {models.TaskInProgress, models.TaskDelayed, models.TaskCancelled},
	models.TaskInProgress: {models.TaskCompleted, models.TaskDelayed},
	models.TaskDelayed:    {models.TaskAssigned, models.TaskInProgress, models.TaskCancelled},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to models.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckoutKey identifies one checkout event; retries carry the same key.
func CheckoutKey(bookingID uint, checkedOutAt time.Time) string {
	return fmt.Sprintf("checkout:%d:%d", bookingID, checkedOutAt.Unix())
}

type Service struct {
	store    Store
	rooms    RoomSyncer
	notifier notify.Notifier
	log      *logrus.Logger
}

func NewService(store Store, rooms RoomSyncer, notifier notify.Notifier, log *logrus.Logger) *Service {
	return &Service{store: store, rooms: rooms, notifier: notifier, log: log}
}

// OnCheckout creates the single high-priority cleaning task for a finished
// stay. Calling it again for the same checkout returns the existing task.
func (s *Service) OnCheckout(ctx context.Context, b *models.Booking) (*models.HousekeepingTask, error) {
	ctx, span := tracer.Start(ctx, "housekeeping.OnCheckout")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", int64(b.ID)))

	if b.CheckedOutAt == nil {
		return nil, apperr.Conflict("booking %d has not been checked out", b.ID)
	}
	key := CheckoutKey(b.ID, *b.CheckedOutAt)

	existing, err := s.store.TaskByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	bookingID := b.ID
	t := &models.HousekeepingTask{
		RoomID:         b.RoomID,
		BookingID:      &bookingID,
		Type:           models.TaskCleaning,
		Status:         models.TaskRequested,
		Priority:       models.PriorityHigh,
		Notes:          fmt.Sprintf("Checkout cleaning for booking %d", b.ID),
		IdempotencyKey: &key,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return s.store.TaskByKey(ctx, key)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"task": t.ID, "room": t.RoomID, "booking": b.ID}).Info("checkout cleaning requested")
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.TaskCreated, b.ID, 0, map[string]any{
		"task": t.ID, "room": t.RoomID, "priority": t.Priority,
	}))
	return t, nil
}

type CreateInput struct {
	RoomID   uint                `json:"room" validate:"required"`
	Type     models.TaskType     `json:"type" validate:"required,oneof=cleaning deep-cleaning maintenance inspection"`
	Priority models.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high emergency"`
	Notes    string              `json:"notes" validate:"max=1000"`
}

// Create files a task by hand, e.g. a maintenance request from the desk.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.HousekeepingTask, error) {
	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may create housekeeping tasks")
	}
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRoom(ctx, in.RoomID); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	t := &models.HousekeepingTask{
		RoomID:      in.RoomID,
		Type:        in.Type,
		Status:      models.TaskRequested,
		Priority:    in.Priority,
		Notes:       in.Notes,
		RequestedBy: actor.UserID,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.resync(ctx, t.RoomID)
	return t, nil
}

// Assign hands the task to a housekeeper.
func (s *Service) Assign(ctx context.Context, actor models.Actor, taskID, userID uint) (*models.HousekeepingTask, error) {
	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may assign housekeeping tasks")
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleHousekeeper && u.Role != models.RoleAdmin {
		return nil, apperr.Validation("user %d is not on the housekeeping staff", userID)
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, models.TaskAssigned) {
		return nil, apperr.Conflict("cannot assign a task in status %s", t.Status)
	}
	return s.apply(ctx, t, models.TaskAssigned, map[string]any{"assigned_to": userID})
}

// Transition moves the task to status to. Housekeepers may only move tasks
// assigned to them.
func (s *Service) Transition(ctx context.Context, actor models.Actor, taskID uint, to models.TaskStatus) (*models.HousekeepingTask, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Staff():
	case actor.Role == models.RoleHousekeeper && t.AssignedTo != nil && *t.AssignedTo == actor.UserID:
	default:
		return nil, apperr.Unauthorized("not allowed to update task %d", taskID)
	}
	if to == models.TaskAssigned {
		return nil, apperr.Validation("use assign to hand out a task")
	}
	if !CanTransition(t.Status, to) {
		return nil, apperr.Conflict("cannot move task from %s to %s", t.Status, to)
	}

	now := time.Now().UTC()
	fields := map[string]any{}
	switch to {
	case models.TaskInProgress:
		fields["started_at"] = now
	case models.TaskCompleted:
		fields["completed_at"] = now
	}
	return s.apply(ctx, t, to, fields)
}

func (s *Service) apply(ctx context.Context, t *models.HousekeepingTask, to models.TaskStatus, fields map[string]any) (*models.HousekeepingTask, error) {
	ok, err := s.store.TransitionTask(ctx, t.ID, t.Status, to, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("task %d changed concurrently; retry", t.ID)
	}
	s.resync(ctx, t.RoomID)
	return s.store.GetTask(ctx, t.ID)
}

// resync is a side effect of a committed task change; a failure is logged.
func (s *Service) resync(ctx context.Context, roomID uint) {
	if _, err := s.rooms.Sync(ctx, roomID, room.TriggerTask); err != nil {
		s.log.WithField("room", roomID).WithError(err).Error("room sync after task change failed")
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*models.HousekeepingTask, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) List(ctx context.Context, roomID uint, status string) ([]models.HousekeepingTask, error) {
	if status != "" && transitions[models.TaskStatus(status)] == nil &&
		status != string(models.TaskCompleted) && status != string(models.TaskCancelled) {
		return nil, apperr.Validation("unknown task status %q", status)
	}
	return s.store.ListTasks(ctx, roomID, status)
}

// Stats counts tasks per status.
func (s *Service) Stats(ctx context.Context) (map[models.TaskStatus]int, error) {
	tasks, err := s.store.ListTasks(ctx, 0, "")
	if err != nil {
		return nil, err
	}
	out := map[models.TaskStatus]int{}
	for _, t := range tasks {
		out[t.Status]++
	}
	return out, nil
}
