package gateway

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

type Omise struct {
	client *omise.Client
}

func NewOmise(publicKey, secretKey string) (*Omise, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	return &Omise{client: c}, nil
}

func (o *Omise) Initialize(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ch := &omise.Charge{}
	op := &operations.CreateCharge{
		Amount:   Subunits(req.Amount),
		Currency: req.Currency,
		Card:     req.Token,
		Metadata: map[string]any{
			"booking_id": strconv.FormatUint(uint64(req.BookingID), 10),
			"reference":  req.Reference,
		},
	}
	if err := o.do(ctx, func() error { return o.client.Do(ch, op) }); err != nil {
		return nil, err
	}
	return fromOmise(ch, req.Reference), nil
}

func (o *Omise) Verify(ctx context.Context, chargeID string) (*Charge, error) {
	ch := &omise.Charge{}
	op := &operations.RetrieveCharge{ChargeID: chargeID}
	if err := o.do(ctx, func() error { return o.client.Do(ch, op) }); err != nil {
		return nil, err
	}
	ref, _ := ch.Metadata["reference"].(string)
	return fromOmise(ch, ref), nil
}

// do runs the blocking client call so that ctx cancellation returns early.
func (o *Omise) do(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fromOmise(ch *omise.Charge, ref string) *Charge {
	out := &Charge{ID: ch.ID, Reference: ref}
	switch ch.Status {
	case omise.ChargeSuccessful:
		out.Status = StatusSuccessful
	case omise.ChargeFailed, omise.ChargeReversed, "expired":
		out.Status = StatusFailed
	default:
		out.Status = StatusPending
	}
	if ch.FailureCode != nil {
		out.FailureReason = *ch.FailureCode
	}
	out.Raw, _ = json.Marshal(ch)
	return out
}
