package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/gateway"
	"github.com/hidenkeys/innkeeper/lock"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

var tracer = otel.Tracer("github.com/hidenkeys/innkeeper/ledger")

type Store interface {
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	SetBookingPayment(ctx context.Context, id uint, paid float64, status models.BookingPaymentStatus) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	PaymentByReference(ctx context.Context, ref string) (*models.Payment, error)
	PaymentByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	PaymentsForBooking(ctx context.Context, bookingID uint) ([]models.Payment, error)
	ResolvePayment(ctx context.Context, id uint, to models.PaymentStatus, fields map[string]any) (bool, error)
	UpdatePaymentFields(ctx context.Context, id uint, fields map[string]any) error
	DeletePayment(ctx context.Context, id uint) error
	PaymentTotals(ctx context.Context) ([]models.PaymentTotal, error)
}

type Config struct {
	Currency         string
	GatewayTimeout   time.Duration
	OverpayTolerance float64
	LockTTL          time.Duration
}

type Aggregator struct {
	store    Store
	gateway  gateway.Gateway
	locker   lock.Locker
	notifier notify.Notifier
	log      *logrus.Logger
	cfg      Config
}

func NewAggregator(store Store, gw gateway.Gateway, locker lock.Locker, notifier notify.Notifier, log *logrus.Logger, cfg Config) *Aggregator {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	return &Aggregator{store: store, gateway: gw, locker: locker, notifier: notifier, log: log, cfg: cfg}
}

type RecordInput struct {
	// Amount defaults to nights x room price, capped at the outstanding balance.
	Amount   *float64             `json:"amount" validate:"omitempty,gt=0"`
	Method   models.PaymentMethod `json:"paymentMethod" validate:"required"`
	Currency string               `json:"currency" validate:"omitempty,len=3"`
	Token    string               `json:"token"`
	Notes    string               `json:"notes" validate:"max=500"`
}

// Recompute rebuilds the booking's payment view from its ledger and stores it
// in a single update.
func (a *Aggregator) Recompute(ctx context.Context, bookingID uint) (Summary, error) {
	ctx, span := tracer.Start(ctx, "ledger.Recompute")
	defer span.End()

	b, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Summary{}, err
	}
	entries, err := a.store.PaymentsForBooking(ctx, bookingID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(b.TotalAmount, entries)
	if err := a.store.SetBookingPayment(ctx, bookingID, sum.Paid, sum.Status); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// RecordPayment appends a charge to the booking's ledger. Cash settles at
// once; other methods stay pending until the provider confirms.
func (a *Aggregator) RecordPayment(ctx context.Context, actor models.Actor, bookingID uint, in RecordInput) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", int64(bookingID)), attribute.String("method", string(in.Method)))

	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	if !in.Method.Valid() {
		return nil, apperr.Validation("unknown payment method %q", in.Method)
	}

	b, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, apperr.Unauthorized("not allowed to pay for booking %d", bookingID)
	}
	if b.Status == models.BookingCancelled || b.Status == models.BookingNoShow {
		return nil, apperr.Conflict("booking %d is %s", bookingID, b.Status)
	}

	release, err := a.acquire(ctx, lock.BookingKey(bookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := a.store.PaymentsForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	sum := Summarize(b.TotalAmount, entries)
	if sum.Status == models.PaymentPaid {
		return nil, apperr.Conflict("booking %d is already paid", bookingID)
	}

	var amount float64
	if in.Amount != nil {
		amount = round(*in.Amount)
	} else {
		r, err := a.store.GetRoom(ctx, b.RoomID)
		if err != nil {
			return nil, err
		}
		amount = round(float64(b.Nights()) * r.Price)
		if amount > sum.Outstanding {
			amount = sum.Outstanding
		}
	}
	if amount <= 0 {
		return nil, apperr.Validation("payment amount must be positive")
	}
	if sum.Paid+pendingCharges(entries)+amount > b.TotalAmount+a.cfg.OverpayTolerance {
		return nil, apperr.Conflict("payment of %.2f exceeds the outstanding balance of %.2f", amount, sum.Outstanding)
	}

	ref, err := NewReference("PAY")
	if err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = a.cfg.Currency
	}
	p := &models.Payment{
		BookingID:   bookingID,
		GuestID:     b.GuestID,
		Amount:      amount,
		Currency:    currency,
		Method:      in.Method,
		Type:        models.PaymentCharge,
		Status:      models.PaymentStatusPending,
		Reference:   ref,
		Notes:       in.Notes,
		ProcessedBy: actor.UserID,
	}
	if in.Method == models.MethodCash {
		now := time.Now().UTC()
		p.Status = models.PaymentStatusCompleted
		p.ProcessedAt = &now
	}
	if err := a.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	log := a.log.WithFields(logrus.Fields{"booking": bookingID, "reference": ref, "amount": amount})
	log.Info("payment recorded")
	notify.Emit(ctx, a.notifier, a.log, notify.NewEvent(notify.PaymentRecorded, bookingID, b.GuestID, paymentData(p)))

	if p.Status == models.PaymentStatusCompleted {
		if _, err := a.Recompute(ctx, bookingID); err != nil {
			return nil, err
		}
		notify.Emit(ctx, a.notifier, a.log, notify.NewEvent(notify.PaymentCompleted, bookingID, b.GuestID, paymentData(p)))
		return a.store.GetPayment(ctx, p.ID)
	}

	a.initialize(ctx, p, in.Token, log)
	return a.store.GetPayment(ctx, p.ID)
}

// initialize asks the provider to start the charge. Errors and timeouts leave
// the entry pending; a webhook or Verify resolves it later.
func (a *Aggregator) initialize(ctx context.Context, p *models.Payment, token string, log *logrus.Entry) {
	ch, err := gateway.WithTimeout(ctx, a.cfg.GatewayTimeout, func(ctx context.Context) (*gateway.Charge, error) {
		return a.gateway.Initialize(ctx, gateway.ChargeRequest{
			Reference: p.Reference,
			BookingID: p.BookingID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Token:     token,
		})
	})
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		log.Warn("gateway timed out initializing charge; left pending")
		return
	case err != nil:
		log.WithError(err).Warn("gateway rejected charge initialization; left pending")
		return
	}

	fields := map[string]any{"transaction_id": ch.ID}
	if len(ch.Raw) > 0 {
		fields["gateway_response"] = datatypes.JSON(ch.Raw)
	}
	if err := a.store.UpdatePaymentFields(ctx, p.ID, fields); err != nil {
		log.WithError(err).Error("storing gateway charge id failed")
		return
	}
	p.TransactionID = ch.ID

	if _, err := a.applyCharge(ctx, p, ch); err != nil {
		log.WithError(err).Error("resolving synchronous charge result failed")
	}
}

// applyCharge resolves a pending entry from a provider charge state.
func (a *Aggregator) applyCharge(ctx context.Context, p *models.Payment, ch *gateway.Charge) (bool, error) {
	switch ch.Status {
	case gateway.StatusSuccessful:
		return a.resolve(ctx, p, models.PaymentStatusCompleted, "")
	case gateway.StatusFailed:
		return a.resolve(ctx, p, models.PaymentStatusFailed, ch.FailureReason)
	default:
		return false, nil
	}
}

// resolve moves a pending entry to completed or failed. It reports false when
// the entry was already resolved, in which case nothing else happens.
func (a *Aggregator) resolve(ctx context.Context, p *models.Payment, to models.PaymentStatus, reason string) (bool, error) {
	now := time.Now().UTC()
	fields := map[string]any{"processed_at": now}
	if reason != "" {
		fields["failure_reason"] = reason
	}
	ok, err := a.store.ResolvePayment(ctx, p.ID, to, fields)
	if err != nil || !ok {
		return false, err
	}
	p.Status = to

	if to == models.PaymentStatusCompleted {
		if _, err := a.Recompute(ctx, p.BookingID); err != nil {
			return true, err
		}
	}

	event := notify.PaymentCompleted
	if to == models.PaymentStatusFailed {
		event = notify.PaymentFailed
	}
	data := paymentData(p)
	if reason != "" {
		data["reason"] = reason
	}
	notify.Emit(ctx, a.notifier, a.log, notify.NewEvent(event, p.BookingID, p.GuestID, data))
	a.log.WithFields(logrus.Fields{"reference": p.Reference, "status": to}).Info("payment resolved")
	return true, nil
}

type RefundInput struct {
	// Amount defaults to what is left to refund on the charge.
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
	Reason string   `json:"reason" validate:"max=500"`
}

// Refund appends a compensating entry against a completed charge. The charge
// itself is never edited.
func (a *Aggregator) Refund(ctx context.Context, actor models.Actor, paymentID uint, in RefundInput) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "ledger.Refund")
	defer span.End()

	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may issue refunds")
	}
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	orig, err := a.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	release, err := a.acquire(ctx, lock.BookingKey(orig.BookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	var amount float64
	if in.Amount != nil {
		amount = *in.Amount
	}
	refund, err := a.appendRefund(ctx, orig, amount, in.Reason, actor.UserID, nil)
	if err != nil {
		return nil, err
	}
	if _, err := a.Recompute(ctx, orig.BookingID); err != nil {
		return nil, err
	}
	notify.Emit(ctx, a.notifier, a.log, notify.NewEvent(notify.PaymentRefunded, orig.BookingID, orig.GuestID, paymentData(refund)))
	return refund, nil
}

// appendRefund validates and stores a refund entry. amount 0 means the
// remaining refundable amount.
func (a *Aggregator) appendRefund(ctx context.Context, orig *models.Payment, amount float64, reason string, by uint, key *string) (*models.Payment, error) {
	if orig.Type != models.PaymentCharge || orig.Status != models.PaymentStatusCompleted {
		return nil, apperr.Conflict("only completed charges can be refunded; %s is %s", orig.Reference, orig.Status)
	}
	entries, err := a.store.PaymentsForBooking(ctx, orig.BookingID)
	if err != nil {
		return nil, err
	}
	remaining := round(orig.Amount - refundedFor(orig.ID, entries))
	if remaining <= 0 {
		return nil, apperr.Conflict("payment %s is already fully refunded", orig.Reference)
	}
	if amount == 0 {
		amount = remaining
	}
	amount = round(amount)
	if amount > remaining {
		return nil, apperr.Conflict("refund of %.2f exceeds the refundable %.2f", amount, remaining)
	}

	ref, err := NewReference("REF")
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Payment refunded"
	}
	now := time.Now().UTC()
	origID := orig.ID
	refund := &models.Payment{
		BookingID:      orig.BookingID,
		GuestID:        orig.GuestID,
		Amount:         -amount,
		Currency:       orig.Currency,
		Method:         orig.Method,
		Type:           models.PaymentRefund,
		Status:         models.PaymentStatusRefunded,
		Reference:      ref,
		IdempotencyKey: key,
		RefundOf:       &origID,
		Notes:          reason,
		ProcessedBy:    by,
		ProcessedAt:    &now,
	}
	if err := a.store.CreatePayment(ctx, refund); err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"reference": ref, "refundOf": orig.Reference, "amount": amount}).Info("refund recorded")
	return refund, nil
}

// DeletePayment removes a pending or failed entry. Settled entries are part
// of the audit trail and cannot be deleted.
func (a *Aggregator) DeletePayment(ctx context.Context, actor models.Actor, id uint) error {
	if !actor.Admin() {
		return apperr.Unauthorized("only admins may delete payments")
	}
	p, err := a.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p.Settled() {
		return apperr.Conflict("cannot delete %s payment %s; record a refund instead", p.Status, p.Reference)
	}
	if err := a.store.DeletePayment(ctx, id); err != nil {
		return err
	}
	_, err = a.Recompute(ctx, p.BookingID)
	return err
}

// HasUnrefundedCharges reports whether the booking holds any completed charge
// that refunds do not fully cover.
func (a *Aggregator) HasUnrefundedCharges(ctx context.Context, bookingID uint) (bool, error) {
	entries, err := a.store.PaymentsForBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	for _, p := range entries {
		if p.Type == models.PaymentCharge && p.Status == models.PaymentStatusCompleted && !FullyRefunded(p, entries) {
			return true, nil
		}
	}
	return false, nil
}

// Verify asks the provider for the state of a pending charge and resolves it
// the way a webhook would.
func (a *Aggregator) Verify(ctx context.Context, actor models.Actor, paymentID uint) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "ledger.Verify")
	defer span.End()

	p, err := a.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b, err := a.store.GetBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, apperr.Unauthorized("not allowed to verify payment %d", paymentID)
	}
	if p.Status != models.PaymentStatusPending || p.TransactionID == "" {
		return p, nil
	}

	ch, err := gateway.WithTimeout(ctx, a.cfg.GatewayTimeout, func(ctx context.Context) (*gateway.Charge, error) {
		return a.gateway.Verify(ctx, p.TransactionID)
	})
	if err != nil {
		return nil, apperr.Gateway(err, "could not verify payment %s", p.Reference)
	}
	if _, err := a.applyCharge(ctx, p, ch); err != nil {
		return nil, err
	}
	return a.store.GetPayment(ctx, p.ID)
}

// Payments lists the ledger of a booking.
func (a *Aggregator) Payments(ctx context.Context, actor models.Actor, bookingID uint) ([]models.Payment, error) {
	b, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, apperr.Unauthorized("not allowed to view booking %d", bookingID)
	}
	return a.store.PaymentsForBooking(ctx, bookingID)
}

// Balance returns the payment view recomputed from the ledger without
// writing it.
func (a *Aggregator) Balance(ctx context.Context, actor models.Actor, bookingID uint) (Summary, error) {
	entries, err := a.Payments(ctx, actor, bookingID)
	if err != nil {
		return Summary{}, err
	}
	b, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(b.TotalAmount, entries), nil
}

func (a *Aggregator) Totals(ctx context.Context, actor models.Actor) ([]models.PaymentTotal, error) {
	if !actor.Staff() {
		return nil, apperr.Unauthorized("only staff may view payment totals")
	}
	return a.store.PaymentTotals(ctx)
}

func (a *Aggregator) acquire(ctx context.Context, key string) (func(), error) {
	release, err := a.locker.Acquire(ctx, key, a.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperr.Conflict("another payment for this booking is in progress; retry")
	}
	return release, err
}

func paymentData(p *models.Payment) map[string]any {
	return map[string]any{
		"reference": p.Reference,
		"amount":    p.Amount,
		"currency":  p.Currency,
		"method":    p.Method,
		"status":    p.Status,
	}
}
