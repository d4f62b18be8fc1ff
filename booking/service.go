package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/ledger"
	"github.com/hidenkeys/innkeeper/lock"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/hidenkeys/innkeeper/room"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/hidenkeys/innkeeper/booking")

type Store interface {
	AvailabilityStore
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	GetGuest(ctx context.Context, id uint) (*models.Guest, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	TransitionBooking(ctx context.Context, id uint, from, to models.BookingStatus, fields map[string]any) (bool, error)
	UpdateBookingFields(ctx context.Context, id uint, fields map[string]any) error
	DeleteBooking(ctx context.Context, id uint) error
	BookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	BookingsForRoom(ctx context.Context, roomID uint) ([]models.Booking, error)
	BookingTotals(ctx context.Context) ([]models.BookingTotal, error)
}

type Ledger interface {
	Recompute(ctx context.Context, bookingID uint) (ledger.Summary, error)
	HasUnrefundedCharges(ctx context.Context, bookingID uint) (bool, error)
}

type RoomSyncer interface {
	Sync(ctx context.Context, roomID uint, trigger room.Trigger) (models.RoomStatus, error)
}

type Housekeeping interface {
	OnCheckout(ctx context.Context, b *models.Booking) (*models.HousekeepingTask, error)
}

type Config struct {
	// CancelCutoff is how long before check-in a guest may still cancel.
	CancelCutoff time.Duration
	// NoShowWindow is how long after check-in a no-show may be recorded.
	NoShowWindow time.Duration
	LockTTL      time.Duration
}

type Service struct {
	store        Store
	checker      *Checker
	ledger       Ledger
	rooms        RoomSyncer
	housekeeping Housekeeping
	locker       lock.Locker
	notifier     notify.Notifier
	log          *logrus.Logger
	cfg          Config
	now          func() time.Time
}

func NewService(store Store, l Ledger, rooms RoomSyncer, hk Housekeeping, locker lock.Locker, notifier notify.Notifier, log *logrus.Logger, cfg Config) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	return &Service{
		store:        store,
		checker:      NewChecker(store),
		ledger:       l,
		rooms:        rooms,
		housekeeping: hk,
		locker:       locker,
		notifier:     notifier,
		log:          log,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *Service) Checker() *Checker { return s.checker }

type ServiceInput struct {
	Name     string  `json:"name" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Price    float64 `json:"price" validate:"gte=0"`
}

type CreateInput struct {
	RoomID  uint `json:"room" validate:"required"`
	GuestID uint `json:"guest"`
	// UserID lets staff book on behalf of an account; guests always book for
	// themselves.
	UserID          uint           `json:"user"`
	CheckIn         string         `json:"checkInDate" validate:"required"`
	CheckOut        string         `json:"checkOutDate" validate:"required"`
	Adults          int            `json:"adults" validate:"gte=1"`
	Children        int            `json:"children" validate:"gte=0"`
	SpecialRequests string         `json:"specialRequests" validate:"max=500"`
	Notes           string         `json:"notes" validate:"max=1000"`
	Source          string         `json:"source" validate:"omitempty,oneof=walk-in phone website online-travel-agency other"`
	Services        []ServiceInput `json:"services" validate:"dive"`
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the UTC midnight of
// that calendar date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q", s)
	}
	return models.Day(t), nil
}

func unavailable(r *models.Room, checkIn, checkOut time.Time) error {
	return apperr.Conflict("room %s is not available from %s to %s",
		r.Number, checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly))
}

// Create books a room. The availability check and the insert run under a
// per-room lock; the unique stay index rejects anything that slips past it
// with the same conflict.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("room.id", int64(in.RoomID)))

	if actor.UserID == 0 {
		return nil, apperr.Unauthorized("sign in to book a room")
	}
	if in.Adults == 0 {
		in.Adults = 1
	}
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	checkIn, err := ParseDate(in.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := ParseDate(in.CheckOut)
	if err != nil {
		return nil, err
	}
	if !checkIn.Before(checkOut) {
		return nil, apperr.Validation("check-out date must be after check-in date")
	}

	r, err := s.store.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if guests := in.Adults + in.Children; guests > r.Capacity {
		return nil, apperr.Validation("room %s holds %d guests, %d requested", r.Number, r.Capacity, guests)
	}
	if in.GuestID != 0 {
		if _, err := s.store.GetGuest(ctx, in.GuestID); err != nil {
			return nil, err
		}
	}
	userID := actor.UserID
	if actor.Staff() && in.UserID != 0 {
		userID = in.UserID
	}

	b := &models.Booking{
		RoomID:          r.ID,
		UserID:          userID,
		GuestID:         in.GuestID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Adults:          in.Adults,
		Children:        in.Children,
		SpecialRequests: in.SpecialRequests,
		Notes:           in.Notes,
		Source:          in.Source,
		Status:          models.BookingConfirmed,
		PaymentStatus:   models.PaymentPending,
	}
	total := float64(models.Nights(checkIn, checkOut)) * r.Price
	for _, sv := range in.Services {
		charge := models.ServiceCharge{Name: sv.Name, Quantity: sv.Quantity, Price: sv.Price}
		b.Services = append(b.Services, charge)
		total += charge.Total()
	}
	b.TotalAmount = total

	release, err := s.locker.Acquire(ctx, lock.RoomKey(r.ID), s.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, unavailable(r, checkIn, checkOut)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	conflict, err := s.checker.FindConflict(ctx, r.ID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, unavailable(r, checkIn, checkOut)
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, unavailable(r, checkIn, checkOut)
		}
		return nil, err
	}
	release()

	s.log.WithFields(logrus.Fields{"booking": b.ID, "room": r.Number, "total": b.TotalAmount}).Info("booking created")
	if _, err := s.rooms.Sync(ctx, r.ID, room.TriggerBookingCreated); err != nil {
		return nil, err
	}
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.BookingCreated, b.ID, b.GuestID, map[string]any{
		"room":        r.Number,
		"checkIn":     checkIn.Format(time.DateOnly),
		"checkOut":    checkOut.Format(time.DateOnly),
		"totalAmount": fmt.Sprintf("%.2f", b.TotalAmount),
	}))
	return b, nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, apperr.Unauthorized("not allowed to view booking %d", id)
	}
	return b, nil
}

// ListRange returns bookings whose stay touches [start, end]. Guests only see
// their own.
func (s *Service) ListRange(ctx context.Context, actor models.Actor, start, end time.Time) ([]models.Booking, error) {
	if end.Before(start) {
		return nil, apperr.Validation("end date must not be before start date")
	}
	all, err := s.store.BookingsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if actor.Staff() {
		return all, nil
	}
	own := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if b.UserID == actor.UserID {
			own = append(own, b)
		}
	}
	return own, nil
}

func (s *Service) ListByRoom(ctx context.Context, actor models.Actor, roomID uint) ([]models.Booking, error) {
	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may list room bookings")
	}
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.BookingsForRoom(ctx, roomID)
}

func (s *Service) Stats(ctx context.Context, actor models.Actor) ([]models.BookingTotal, error) {
	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may view booking stats")
	}
	return s.store.BookingTotals(ctx)
}

type UpdateInput struct {
	Status          *models.BookingStatus `json:"status"`
	Reason          string                `json:"cancellationReason" validate:"max=500"`
	Adults          *int                  `json:"adults" validate:"omitempty,gte=1"`
	Children        *int                  `json:"children" validate:"omitempty,gte=0"`
	SpecialRequests *string               `json:"specialRequests" validate:"omitempty,max=500"`
	Notes           *string               `json:"notes" validate:"omitempty,max=1000"`

	// Fixed at creation; present only so that attempts can be refused.
	RoomID      *uint    `json:"room"`
	UserID      *uint    `json:"user"`
	GuestID     *uint    `json:"guest"`
	CheckIn     *string  `json:"checkInDate"`
	CheckOut    *string  `json:"checkOutDate"`
	TotalAmount *float64 `json:"totalAmount"`
}

// Update edits the free-form fields of a booking. A status change goes
// through the same transition rules as the dedicated endpoints.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uint, in UpdateInput) (*models.Booking, error) {
	var forbidden []string
	if in.RoomID != nil {
		forbidden = append(forbidden, "room")
	}
	if in.UserID != nil {
		forbidden = append(forbidden, "user")
	}
	if in.GuestID != nil {
		forbidden = append(forbidden, "guest")
	}
	if in.CheckIn != nil || in.CheckOut != nil {
		forbidden = append(forbidden, "dates")
	}
	if in.TotalAmount != nil {
		forbidden = append(forbidden, "totalAmount")
	}
	if len(forbidden) > 0 {
		return nil, apperr.Validation("cannot change %s of an existing booking", strings.Join(forbidden, ", "))
	}
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, apperr.Unauthorized("not allowed to update booking %d", id)
	}
	// a rejected status change must not leave the other fields written
	if in.Status != nil {
		if err := s.checkTransition(actor, b, *in.Status, s.now().UTC()); err != nil {
			return nil, err
		}
	}

	fields := map[string]any{}
	adults, children := b.Adults, b.Children
	if in.Adults != nil {
		adults = *in.Adults
		fields["adults"] = adults
	}
	if in.Children != nil {
		children = *in.Children
		fields["children"] = children
	}
	if in.Adults != nil || in.Children != nil {
		r, err := s.store.GetRoom(ctx, b.RoomID)
		if err != nil {
			return nil, err
		}
		if adults+children > r.Capacity {
			return nil, apperr.Validation("room %s holds %d guests, %d requested", r.Number, r.Capacity, adults+children)
		}
	}
	if in.SpecialRequests != nil {
		fields["special_requests"] = *in.SpecialRequests
	}
	if in.Notes != nil {
		fields["notes"] = *in.Notes
	}
	if len(fields) > 0 {
		if err := s.store.UpdateBookingFields(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	if in.Status != nil {
		return s.Transition(ctx, actor, id, *in.Status, in.Reason)
	}
	return s.store.GetBooking(ctx, id)
}

// OverrideTotal is the one sanctioned change to a booking's total.
func (s *Service) OverrideTotal(ctx context.Context, actor models.Actor, id uint, total float64, reason string) (*models.Booking, error) {
	if !actor.Admin() {
		return nil, apperr.Unauthorized("only admins may override a booking total")
	}
	if total < 0 {
		return nil, apperr.Validation("total must not be negative")
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateBookingFields(ctx, id, map[string]any{"total_amount": total}); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Recompute(ctx, id); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"booking": id,
		"from":    b.TotalAmount,
		"to":      total,
		"by":      actor.UserID,
		"reason":  reason,
	}).Warn("booking total overridden")
	return s.store.GetBooking(ctx, id)
}

// Delete hides a booking. It is refused while the guest is checked in or
// while the ledger still holds money for it.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if !actor.Admin() {
		return apperr.Unauthorized("only admins may delete bookings")
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if b.Status == models.BookingCheckedIn {
		return apperr.Conflict("booking %d is checked in; check the guest out first", id)
	}
	held, err := s.ledger.HasUnrefundedCharges(ctx, id)
	if err != nil {
		return err
	}
	if held {
		return apperr.Conflict("booking %d has completed payments that are not refunded", id)
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	_, err = s.rooms.Sync(ctx, b.RoomID, room.TriggerBookingDeleted)
	return err
}
