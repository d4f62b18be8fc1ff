package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentType string

const (
	PaymentCharge PaymentType = "charge"
	PaymentRefund PaymentType = "refund"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "credit-card"
	MethodDebitCard    PaymentMethod = "debit-card"
	MethodBankTransfer PaymentMethod = "bank-transfer"
	MethodMobileMoney  PaymentMethod = "mobile-money"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodDebitCard, MethodBankTransfer, MethodMobileMoney, MethodOther:
		return true
	}
	return false
}

// Payment is one ledger entry. Charges carry a positive amount, refunds a
// negative one and a link to the charge they compensate. Settled entries are
// never edited.
type Payment struct {
	gorm.Model
	BookingID uint          `json:"booking" gorm:"not null;index"`
	GuestID   uint          `json:"guest" gorm:"index"`
	Amount    float64       `json:"amount" gorm:"not null"`
	Currency  string        `json:"currency" gorm:"size:3;default:USD"`
	Method    PaymentMethod `json:"paymentMethod" gorm:"size:32;not null"`
	Type      PaymentType   `json:"paymentType" gorm:"size:16;not null;default:charge"`
	Status    PaymentStatus `json:"status" gorm:"size:16;not null;default:pending;index"`

	// Reference is the external idempotency key, e.g. PAY-1A2B3C.
	Reference string `json:"paymentReference" gorm:"size:64;not null;uniqueIndex"`
	// IdempotencyKey dedupes refunds delivered by webhook.
	IdempotencyKey *string `json:"-" gorm:"size:128;uniqueIndex"`
	RefundOf       *uint   `json:"refundOf" gorm:"index"`

	TransactionID   string         `json:"transactionId"`
	FailureReason   string         `json:"failureReason"`
	Notes           string         `json:"notes" gorm:"size:500"`
	ProcessedBy     uint           `json:"processedBy"`
	ProcessedAt     *time.Time     `json:"processedAt"`
	GatewayResponse datatypes.JSON `json:"gatewayResponse,omitempty"`
}

// Settled entries count toward the paid amount.
func (p *Payment) Settled() bool {
	switch p.Type {
	case PaymentRefund:
		return p.Status == PaymentStatusRefunded
	default:
		return p.Status == PaymentStatusCompleted
	}
}

// PaymentTotal is one row of the per-status payment report.
type PaymentTotal struct {
	Status PaymentStatus `json:"status"`
	Count  int64         `json:"count"`
	Total  float64       `json:"total"`
}
