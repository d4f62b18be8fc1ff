package ledger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/lock"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/sirupsen/logrus"
)

const SignatureHeader = "X-Payment-Signature"

const (
	EventCompleted = "payment.completed"
	EventFailed    = "payment.failed"
	EventRefunded  = "payment.refunded"
)

type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	// ID is the provider's event id, used to dedupe refunds when present.
	ID            string   `json:"id"`
	Reference     string   `json:"reference"`
	Amount        *float64 `json:"amount"`
	Currency      string   `json:"currency"`
	Reason        string   `json:"reason"`
	TransactionID string   `json:"transactionId"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex signature in constant time.
func VerifySignature(secret, body []byte, signature string) error {
	if signature == "" {
		return apperr.Signature("no signature provided")
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(secret) == 0 {
		return apperr.Signature("invalid signature")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return apperr.Signature("invalid signature")
	}
	return nil
}

// refundKey dedupes a refund delivery: the provider event id when given,
// otherwise the amount in cents.
func refundKey(d WebhookData) string {
	if d.ID != "" {
		return fmt.Sprintf("webhook:refund:%s:%s", d.Reference, d.ID)
	}
	var cents int64
	if d.Amount != nil {
		cents = int64(math.Round(math.Abs(*d.Amount) * 100))
	}
	return fmt.Sprintf("webhook:refund:%s:%d", d.Reference, cents)
}

// ResolveWebhook applies a verified provider event. Replays and unknown
// references are accepted without effect.
func (a *Aggregator) ResolveWebhook(ctx context.Context, ev WebhookEvent) error {
	ctx, span := tracer.Start(ctx, "ledger.ResolveWebhook")
	defer span.End()

	log := a.log.WithFields(logrus.Fields{"event": ev.Event, "reference": ev.Data.Reference})
	if ev.Data.Reference == "" {
		return apperr.Validation("webhook event has no reference")
	}

	p, err := a.store.PaymentByReference(ctx, ev.Data.Reference)
	if apperr.Is(err, apperr.KindNotFound) {
		log.Warn("webhook for unknown payment reference ignored")
		return nil
	}
	if err != nil {
		return err
	}

	switch ev.Event {
	case EventCompleted, EventFailed:
		if ev.Data.TransactionID != "" && p.TransactionID == "" {
			if err := a.store.UpdatePaymentFields(ctx, p.ID, map[string]any{"transaction_id": ev.Data.TransactionID}); err != nil {
				return err
			}
		}
		to := models.PaymentStatusCompleted
		if ev.Event == EventFailed {
			to = models.PaymentStatusFailed
		}
		ok, err := a.resolve(ctx, p, to, ev.Data.Reason)
		if err != nil {
			return err
		}
		if !ok {
			log.WithField("status", p.Status).Info("webhook replay ignored")
		}
		return nil

	case EventRefunded:
		return a.webhookRefund(ctx, p, ev.Data, log)

	default:
		log.Info("unhandled webhook event ignored")
		return nil
	}
}

func (a *Aggregator) webhookRefund(ctx context.Context, orig *models.Payment, d WebhookData, log *logrus.Entry) error {
	key := refundKey(d)
	if _, err := a.store.PaymentByIdempotencyKey(ctx, key); err == nil {
		log.Info("refund webhook replay ignored")
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	release, err := a.acquire(ctx, lock.BookingKey(orig.BookingID))
	if err != nil {
		return err
	}
	defer release()

	var amount float64
	if d.Amount != nil {
		amount = *d.Amount
		if amount < 0 {
			amount = -amount
		}
	}
	refund, err := a.appendRefund(ctx, orig, amount, d.Reason, 0, &key)
	switch {
	case apperr.Is(err, apperr.KindConflict):
		// the provider is authoritative; a refund we cannot apply is logged, not bounced
		log.WithError(err).Warn("refund webhook not applied")
		return nil
	case errors.Is(err, apperr.ErrDuplicate):
		log.Info("refund webhook replay ignored")
		return nil
	case err != nil:
		return err
	}

	if _, err := a.Recompute(ctx, orig.BookingID); err != nil {
		return err
	}
	notify.Emit(ctx, a.notifier, a.log, notify.NewEvent(notify.PaymentRefunded, orig.BookingID, orig.GuestID, paymentData(refund)))
	return nil
}
