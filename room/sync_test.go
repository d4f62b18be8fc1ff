package room

import (
	"context"
	"testing"
	"time"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/obs"
	"github.com/hidenkeys/innkeeper/storage/storagetest"
)

func ptr(s models.RoomStatus) *models.RoomStatus { return &s }

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name string
		sig  Signals
		want models.RoomStatus
	}{
		{"nothing", Signals{}, models.RoomAvailable},
		{"cleaning", Signals{OpenCleaning: true}, models.RoomCleaning},
		{"delayed work", Signals{Maintenance: true}, models.RoomMaintenance},
		{"cleaning beats delayed", Signals{OpenCleaning: true, Maintenance: true}, models.RoomCleaning},
		{"stay beats cleaning", Signals{ActiveStay: true, OpenCleaning: true}, models.RoomOccupied},
		{"override beats all", Signals{Override: ptr(models.RoomOutOfOrder), ActiveStay: true, OpenCleaning: true}, models.RoomOutOfOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.sig); got != tt.want {
				t.Fatalf("Resolve = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSyncFollowsRecords(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	r := storagetest.Room(t, s, "201", 100, 2)
	sync := NewSynchronizer(s, obs.Discard())

	in := time.Now().UTC()
	b := &models.Booking{RoomID: r.ID, UserID: 1, CheckIn: models.Day(in), CheckOut: models.Day(in).Add(48 * time.Hour)}
	if err := s.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	if got, _ := sync.Sync(ctx, r.ID, TriggerBookingCreated); got != models.RoomAvailable {
		t.Fatalf("confirmed booking should leave room available, got %s", got)
	}

	if _, err := s.TransitionBooking(ctx, b.ID, models.BookingConfirmed, models.BookingCheckedIn, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := sync.Sync(ctx, r.ID, TriggerCheckIn); got != models.RoomOccupied {
		t.Fatalf("check-in: got %s", got)
	}

	if _, err := s.TransitionBooking(ctx, b.ID, models.BookingCheckedIn, models.BookingCheckedOut, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := sync.Sync(ctx, r.ID, TriggerCheckout); got != models.RoomCleaning {
		t.Fatalf("checkout: got %s", got)
	}

	stored, _ := s.GetRoom(ctx, r.ID)
	if stored.Status != models.RoomCleaning {
		t.Fatalf("stored status %s", stored.Status)
	}

	// no task was actually created, so a later sync falls back to available
	if got, _ := sync.Sync(ctx, r.ID, TriggerTask); got != models.RoomAvailable {
		t.Fatalf("resync: got %s", got)
	}
}

func TestOccupiedOnlyDuringStay(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	r := storagetest.Room(t, s, "204", 100, 2)
	sync := NewSynchronizer(s, obs.Discard())

	// checked in early for a stay that starts in three days
	start := models.Day(time.Now()).AddDate(0, 0, 3)
	b := &models.Booking{RoomID: r.ID, UserID: 1, CheckIn: start, CheckOut: start.AddDate(0, 0, 2), Status: models.BookingCheckedIn}
	if err := s.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if got, _ := sync.Sync(ctx, r.ID, TriggerCheckIn); got != models.RoomAvailable {
		t.Fatalf("stay not started: got %s", got)
	}

	sync.now = func() time.Time { return start.Add(10 * time.Hour) }
	if got, _ := sync.Sync(ctx, r.ID, TriggerTask); got != models.RoomOccupied {
		t.Fatalf("first night: got %s", got)
	}

	// the check-out day is no longer covered
	sync.now = func() time.Time { return start.AddDate(0, 0, 2).Add(time.Hour) }
	if got, _ := sync.Sync(ctx, r.ID, TriggerTask); got != models.RoomAvailable {
		t.Fatalf("check-out day: got %s", got)
	}
}

func TestSetOverride(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	r := storagetest.Room(t, s, "202", 100, 2)
	sync := NewSynchronizer(s, obs.Discard())
	admin := models.Actor{UserID: 1, Role: models.RoleAdmin}

	if _, err := sync.SetOverride(ctx, models.Actor{Role: models.RoleReceptionist}, r.ID, ptr(models.RoomMaintenance), ""); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("receptionist override: %v", err)
	}
	if _, err := sync.SetOverride(ctx, admin, r.ID, ptr(models.RoomOccupied), ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("occupied is not an override: %v", err)
	}

	got, err := sync.SetOverride(ctx, admin, r.ID, ptr(models.RoomOutOfOrder), "burst pipe")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RoomOutOfOrder || got.OverrideNote != "burst pipe" {
		t.Fatalf("unexpected room %+v", got)
	}

	got, err = sync.SetOverride(ctx, admin, r.ID, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RoomAvailable || got.Override != nil {
		t.Fatalf("cleared override left %+v", got)
	}
}

func TestSetOverrideRefusedDuringStay(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	r := storagetest.Room(t, s, "203", 100, 2)
	sync := NewSynchronizer(s, obs.Discard())

	b := &models.Booking{RoomID: r.ID, UserID: 1, CheckIn: models.Day(time.Now()), CheckOut: models.Day(time.Now()).Add(24 * time.Hour), Status: models.BookingCheckedIn}
	if err := s.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	_, err := sync.SetOverride(ctx, models.Actor{Role: models.RoleAdmin}, r.ID, ptr(models.RoomMaintenance), "")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBookedDates(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	r := storagetest.Room(t, s, "204", 100, 2)

	jan := func(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }
	if err := s.CreateBooking(ctx, &models.Booking{RoomID: r.ID, UserID: 1, CheckIn: jan(10), CheckOut: jan(12)}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBooking(ctx, &models.Booking{RoomID: r.ID, UserID: 1, CheckIn: jan(20), CheckOut: jan(21), Status: models.BookingCancelled}); err != nil {
		t.Fatal(err)
	}

	dates, err := BookedDates(ctx, s, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-01-10", "2025-01-11"}
	if len(dates) != len(want) || dates[0] != want[0] || dates[1] != want[1] {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
}
