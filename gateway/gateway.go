// Package gateway talks to the external payment provider.
package gateway

import (
	"context"
	"errors"
	"math"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// ErrTimeout means the provider did not answer in time. The charge state is
// unknown and must be resolved later by webhook or verification.
var ErrTimeout = errors.New("payment gateway timed out")

type ChargeRequest struct {
	Reference string
	BookingID uint
	Amount    float64
	Currency  string
	// Token is the provider card or source token.
	Token string
}

type Charge struct {
	ID            string
	Reference     string
	Status        Status
	FailureReason string
	Raw           []byte
}

type Gateway interface {
	Initialize(ctx context.Context, req ChargeRequest) (*Charge, error)
	Verify(ctx context.Context, chargeID string) (*Charge, error)
}

// WithTimeout runs fn bounded by d. fn keeps running in the background when
// the deadline passes; its result is dropped.
func WithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) (*Charge, error)) (*Charge, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		ch  *Charge
		err error
	}
	done := make(chan result, 1)
	go func() {
		ch, err := fn(ctx)
		done <- result{ch, err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return r.ch, r.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Subunits converts an amount to the provider's smallest currency unit.
func Subunits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Offline never reaches a provider: every non-cash charge stays pending until
// a webhook or a manual verification resolves it.
type Offline struct{}

func (Offline) Initialize(_ context.Context, req ChargeRequest) (*Charge, error) {
	return &Charge{Reference: req.Reference, Status: StatusPending}, nil
}

func (Offline) Verify(_ context.Context, chargeID string) (*Charge, error) {
	return &Charge{ID: chargeID, Status: StatusPending}, nil
}
