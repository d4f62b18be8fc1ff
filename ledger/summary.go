// Package ledger keeps the append-only payment ledger of a booking and the
// paid/outstanding view derived from it.
package ledger

import (
	"math"

	"github.com/hidenkeys/innkeeper/models"
)

type Summary struct {
	Total       float64                     `json:"totalAmount"`
	Paid        float64                     `json:"paidAmount"`
	Outstanding float64                     `json:"outstanding"`
	Status      models.BookingPaymentStatus `json:"paymentStatus"`
}

// Summarize derives the payment view of a booking from its ledger. Only
// settled entries count; refunds carry negative amounts.
func Summarize(total float64, entries []models.Payment) Summary {
	var paid float64
	for i := range entries {
		if entries[i].Settled() {
			paid += entries[i].Amount
		}
	}
	paid = round(paid)

	s := Summary{Total: total, Paid: paid, Outstanding: round(math.Max(0, total-paid))}
	switch {
	case paid >= total:
		s.Status = models.PaymentPaid
	case paid > 0:
		s.Status = models.PaymentPartiallyPaid
	default:
		s.Status = models.PaymentPending
	}
	return s
}

// pendingCharges sums charges still awaiting the provider.
func pendingCharges(entries []models.Payment) float64 {
	var sum float64
	for _, p := range entries {
		if p.Type != models.PaymentRefund && p.Status == models.PaymentStatusPending {
			sum += p.Amount
		}
	}
	return round(sum)
}

// refundedFor sums the refunds recorded against a charge, as a positive value.
func refundedFor(chargeID uint, entries []models.Payment) float64 {
	var sum float64
	for _, p := range entries {
		if p.Type == models.PaymentRefund && p.RefundOf != nil && *p.RefundOf == chargeID && p.Settled() {
			sum -= p.Amount
		}
	}
	return round(sum)
}

// FullyRefunded reports whether the refunds against charge add up to at least
// its amount.
func FullyRefunded(charge models.Payment, entries []models.Payment) bool {
	return refundedFor(charge.ID, entries) >= charge.Amount
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
