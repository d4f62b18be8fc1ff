// Package booking owns the reservation lifecycle: availability, creation and
// the status transitions with their ordered side effects.
package booking

import (
	"context"
	"time"

	"github.com/hidenkeys/innkeeper/models"
)

type AvailabilityStore interface {
	OverlappingBookings(ctx context.Context, roomID uint, from, to time.Time) ([]models.Booking, error)
}

// Checker answers whether a room is free for a half-open stay [checkIn, checkOut).
// A checkout and a check-in on the same day do not conflict.
type Checker struct {
	store AvailabilityStore
}

func NewChecker(store AvailabilityStore) *Checker {
	return &Checker{store: store}
}

// FindConflict returns the first active booking overlapping the stay, or nil.
func (c *Checker) FindConflict(ctx context.Context, roomID uint, checkIn, checkOut time.Time) (*models.Booking, error) {
	candidates, err := c.store.OverlappingBookings(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		b := &candidates[i]
		if b.Status.Active() && models.Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			return b, nil
		}
	}
	return nil, nil
}

func (c *Checker) IsAvailable(ctx context.Context, roomID uint, checkIn, checkOut time.Time) (bool, error) {
	b, err := c.FindConflict(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return b == nil, nil
}
