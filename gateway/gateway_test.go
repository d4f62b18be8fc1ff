package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omise/omise-go"
)

func TestWithTimeoutReturnsResult(t *testing.T) {
	ch, err := WithTimeout(context.Background(), time.Second, func(context.Context) (*Charge, error) {
		return &Charge{ID: "chrg_1", Status: StatusSuccessful}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ch.ID != "chrg_1" {
		t.Fatalf("unexpected charge %+v", ch)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) (*Charge, error) {
		time.Sleep(200 * time.Millisecond)
		return &Charge{}, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatal("WithTimeout waited for the slow call")
	}
}

func TestWithTimeoutPassesErrors(t *testing.T) {
	boom := errors.New("card declined")
	_, err := WithTimeout(context.Background(), time.Second, func(context.Context) (*Charge, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSubunits(t *testing.T) {
	cases := map[float64]int64{100: 10000, 19.99: 1999, 0.1 + 0.2: 30}
	for in, want := range cases {
		if got := Subunits(in); got != want {
			t.Errorf("Subunits(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestOfflineLeavesPending(t *testing.T) {
	ch, err := Offline{}.Initialize(context.Background(), ChargeRequest{Reference: "PAY-1"})
	if err != nil {
		t.Fatal(err)
	}
	if ch.Status != StatusPending || ch.Reference != "PAY-1" {
		t.Fatalf("unexpected charge %+v", ch)
	}
}

var _ Gateway = (*Omise)(nil)

func TestOmiseCallStopsOnCancel(t *testing.T) {
	o, err := NewOmise("pkey_test_123", "skey_test_123")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	defer close(release)
	err = o.do(ctx, func() error {
		<-release
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFromOmiseMapsStatus(t *testing.T) {
	code := "insufficient_fund"
	cases := map[omise.ChargeStatus]Status{
		omise.ChargeSuccessful: StatusSuccessful,
		omise.ChargeFailed:     StatusFailed,
		omise.ChargeReversed:   StatusFailed,
		omise.ChargePending:    StatusPending,
	}
	for in, want := range cases {
		ch := &omise.Charge{Status: in, FailureCode: &code}
		ch.ID = "chrg_test_1"
		got := fromOmise(ch, "PAY-1")
		if got.Status != want || got.Reference != "PAY-1" || got.FailureReason != code {
			t.Errorf("fromOmise(%s) = %+v", in, got)
		}
	}
}
